package pubhost

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubhost/billing"
)

const maxWebhookBody = 64 << 10

func (a *App) handlePricing(c echo.Context) error {
	plan, err := a.planInfo(c.Request().Context(), CurrentUser(c))
	if err != nil {
		return err
	}
	return Render(c, a.Views.Pricing(PricingPage{
		Chrome:  a.chrome(c, "Pricing"),
		Plan:    plan,
		Message: c.QueryParam("msg"),
	}))
}

// handleCheckout creates the provider customer on first use and sends the
// user to the hosted checkout page.
func (a *App) handleCheckout(c echo.Context) error {
	if a.Billing == nil {
		return echo.ErrNotFound
	}
	ctx := c.Request().Context()
	u := CurrentUser(c)
	pricing := dashboardPath + "pricing/"

	sub, err := a.Store.GetSubscription(ctx, u.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if sub.Active() {
		return c.Redirect(http.StatusSeeOther, withMessage(pricing, "You already have an active subscription."))
	}

	customerID := u.CustomerID
	if customerID == "" {
		if customerID, err = a.Billing.CreateCustomer(ctx, u.Email, u.Name); err != nil {
			return err
		}
		if err := a.Store.SetCustomerID(ctx, u.ID, customerID); err != nil {
			return err
		}
	}

	target, err := a.Billing.CheckoutURL(ctx, customerID,
		withMessage(a.Config.URL+pricing, "Thanks! Your subscription is being activated."),
		a.Config.URL+pricing)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (a *App) handlePortal(c echo.Context) error {
	if a.Billing == nil {
		return echo.ErrNotFound
	}
	u := CurrentUser(c)
	if u.CustomerID == "" {
		return c.Redirect(http.StatusSeeOther, withMessage(dashboardPath+"pricing/", "No billing account yet."))
	}
	target, err := a.Billing.PortalURL(c.Request().Context(), u.CustomerID, a.Config.URL+dashboardPath+"pricing/")
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// handleStripeWebhook applies subscription changes pushed by the provider.
func (a *App) handleStripeWebhook(c echo.Context) error {
	if a.Billing == nil {
		return echo.ErrNotFound
	}
	ctx := c.Request().Context()
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return err
	}

	ev, err := a.Billing.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrIgnoredEvent):
		return c.NoContent(http.StatusOK)
	case errors.Is(err, billing.ErrInvalidSignature):
		a.Log.Warn("webhook signature rejected", zap.String("ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sub := ev.Subscription
	if sub == nil {
		if sub, err = a.Billing.FetchSubscription(ctx, ev.SubscriptionID); err != nil {
			return err
		}
	}
	customerID := sub.CustomerID
	if customerID == "" {
		customerID = ev.CustomerID
	}

	u, err := a.Store.GetUserByCustomerID(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		a.Log.Warn("webhook for unknown customer", zap.String("event", ev.Type), zap.String("customer", customerID))
		return c.NoContent(http.StatusOK)
	}
	if err != nil {
		return err
	}

	if err := a.Store.UpsertSubscription(ctx, Subscription{
		ID:                 sub.ID,
		UserID:             u.ID,
		Status:             sub.Status,
		PlanID:             sub.PlanID,
		Interval:           sub.Interval,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}); err != nil {
		return err
	}
	a.Log.Info("subscription updated",
		zap.String("event", ev.Type),
		zap.String("user_id", u.ID),
		zap.String("status", sub.Status))
	return c.NoContent(http.StatusOK)
}
