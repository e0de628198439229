package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe implements Provider with the Stripe API.
type Stripe struct {
	api           *client.API
	priceID       string
	webhookSecret string
}

// NewStripe creates a Stripe provider. priceID is the recurring price of the
// paid plan.
func NewStripe(secretKey, webhookSecret, priceID string) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{api: sc, priceID: priceID, webhookSecret: webhookSecret}
}

// CreateCustomer implements Provider.
func (s *Stripe) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return c.ID, nil
}

// CheckoutURL implements Provider.
func (s *Stripe) CheckoutURL(ctx context.Context, customerID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.priceID), Quantity: stripe.Int64(1)},
		},
		BillingAddressCollection: stripe.String("auto"),
		CustomerUpdate: &stripe.CheckoutSessionCustomerUpdateParams{
			Address: stripe.String("auto"),
			Name:    stripe.String("auto"),
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// PortalURL implements Provider.
func (s *Stripe) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return sess.URL, nil
}

// FetchSubscription implements Provider.
func (s *Stripe) FetchSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

// ParseWebhook implements Provider.
func (s *Stripe) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (*Event, error) {
	if ev.Data == nil {
		return nil, errors.New("stripe: event without data")
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.Subscription == nil {
			return nil, ErrIgnoredEvent
		}
		out.SubscriptionID = sess.Subscription.ID
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: decode subscription: %w", err)
		}
		out.Subscription = fromStripeSubscription(&sub)
		out.CustomerID = out.Subscription.CustomerID
	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("stripe: decode invoice: %w", err)
		}
		if inv.Subscription == nil {
			return nil, ErrIgnoredEvent
		}
		out.SubscriptionID = inv.Subscription.ID
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
	default:
		return nil, ErrIgnoredEvent
	}
	return out, nil
}

func fromStripeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PlanID = item.Price.ID
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
			}
		}
	}
	return out
}
