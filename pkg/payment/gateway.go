package payment

import (
	"context"
	"time"
)

// CreateSubscriptionParams describes the processor handshake for a new
// subscription. The subscription is created incomplete; the returned client
// secret lets the frontend finish the first payment.
type CreateSubscriptionParams struct {
	CustomerID string
	PriceID    string
	TrialDays  int
	Metadata   map[string]string
}

// ProvisionalSubscription is the processor's view of a freshly created,
// not-yet-paid subscription.
type ProvisionalSubscription struct {
	ID                 string
	Status             string
	ClientSecret       string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
}

// Client is the outbound capability against the payment processor. It is
// injected into the services that need it; there is no package-level
// processor handle.
type Client interface {
	// CreateCustomer registers a customer at the processor and returns its id.
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	// CreateSubscription starts the incomplete-subscription handshake.
	CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*ProvisionalSubscription, error)
	// CancelSubscription cancels immediately (used for abandoned handshakes).
	CancelSubscription(ctx context.Context, providerSubID string) error
	// SetCancelAtPeriodEnd schedules cancellation at the period boundary.
	SetCancelAtPeriodEnd(ctx context.Context, providerSubID string) error
	// PortalURL creates a billing-portal session for an existing customer.
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
}
