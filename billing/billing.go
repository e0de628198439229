// Package billing connects pubhost accounts to a payment provider.
//
// The Provider interface covers what the application needs: a customer per
// user, a hosted checkout for the paid plan, a self-service portal, and
// verified webhooks that report subscription changes. Stripe implements it.
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrIgnoredEvent is returned by ParseWebhook for verified events that do not
// affect subscriptions.
var ErrIgnoredEvent = errors.New("billing: event ignored")

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("billing: invalid webhook signature")

// Subscription is the provider-neutral state of a customer's subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PlanID             string
	Interval           string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// Event is a verified webhook notification. Exactly one of Subscription or
// SubscriptionID is set: some events carry the full subscription, others
// only reference it and the caller fetches it with FetchSubscription.
type Event struct {
	ID             string
	Type           string
	CustomerID     string
	Subscription   *Subscription
	SubscriptionID string
}

// Provider is a payment provider.
type Provider interface {
	// CreateCustomer registers a customer and returns its provider ID.
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	// CheckoutURL starts a hosted checkout for the paid plan.
	CheckoutURL(ctx context.Context, customerID, successURL, cancelURL string) (string, error)
	// PortalURL opens the hosted billing portal for an existing customer.
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseWebhook verifies and decodes a webhook request body.
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	// FetchSubscription loads a subscription by ID.
	FetchSubscription(ctx context.Context, id string) (*Subscription, error)
}
