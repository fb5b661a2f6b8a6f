package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeClient implements Client against the Stripe API. All outbound calls
// go through a shared circuit breaker so a processor outage fails fast
// instead of piling up blocked requests.
type StripeClient struct {
	api *client.API
	cb  *gobreaker.CircuitBreaker[any]
}

// NewStripeClient creates a StripeClient with its own API handle.
func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{
		api: client.New(apiKey, nil),
		cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "stripe",
			Timeout: 30 * time.Second,
		}),
	}
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	res, err := c.cb.Execute(func() (any, error) {
		return c.api.Customers.New(params)
	})
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return res.(*stripe.Customer).ID, nil
}

func (c *StripeClient) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*ProvisionalSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID)},
		},
		// The subscription stays incomplete until the first payment
		// confirms; promotion to active happens via webhook only.
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	if p.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("latest_invoice.payment_intent")

	res, err := c.cb.Execute(func() (any, error) {
		return c.api.Subscriptions.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	sub := res.(*stripe.Subscription)

	prov := &ProvisionalSubscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		TrialStart:         unixPtr(sub.TrialStart),
		TrialEnd:           unixPtr(sub.TrialEnd),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		prov.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return prov, nil
}

func (c *StripeClient) CancelSubscription(ctx context.Context, providerSubID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := c.cb.Execute(func() (any, error) {
		return c.api.Subscriptions.Cancel(providerSubID, params)
	})
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", providerSubID, err)
	}
	return nil
}

func (c *StripeClient) SetCancelAtPeriodEnd(ctx context.Context, providerSubID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	_, err := c.cb.Execute(func() (any, error) {
		return c.api.Subscriptions.Update(providerSubID, params)
	})
	if err != nil {
		return fmt.Errorf("schedule cancellation for %s: %w", providerSubID, err)
	}
	return nil
}

func (c *StripeClient) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}

	res, err := c.cb.Execute(func() (any, error) {
		return c.api.BillingPortalSessions.New(params)
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return res.(*stripe.BillingPortalSession).URL, nil
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
