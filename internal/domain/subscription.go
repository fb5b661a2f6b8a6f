package domain

import "time"

// SubscriptionStatus is the local subscription state. CANCELLED is terminal:
// once a row reaches it, no event of any kind changes it again.
type SubscriptionStatus string

const (
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionCancelled  SubscriptionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionCancelled
}

// Subscription is the locally persisted subscription record. It mirrors the
// processor's subscription object and converges with it through webhooks.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	Plan               string             `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	ProviderSubID      *string            `json:"providerSubscriptionId,omitempty"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	TrialStart         *time.Time         `json:"trialStart,omitempty"`
	TrialEnd           *time.Time         `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	CancelledAt        *time.Time         `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// CreateSubscriptionRequest is the input for creating a subscription.
type CreateSubscriptionRequest struct {
	Plan      string `json:"plan" validate:"required,oneof=starter pro business"`
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
}

// UpdateSubscriptionRequest carries a PUT action (portal or cancel).
type UpdateSubscriptionRequest struct {
	Action    string `json:"action" validate:"required,oneof=portal cancel"`
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
}

// CheckoutResponse is returned on subscription creation. ClientSecret is the
// continuation token the frontend uses to complete the payment handshake.
type CheckoutResponse struct {
	Subscription *Subscription `json:"subscription"`
	ClientSecret string        `json:"clientSecret,omitempty"`
}

// PortalResponse carries the billing portal redirect URL.
type PortalResponse struct {
	URL string `json:"url"`
}

// SubscriptionView is the read model for GET: the current row, its recent
// payments, and the plan catalog when no subscription exists.
type SubscriptionView struct {
	Subscription *Subscription `json:"subscription"`
	Payments     []*Payment    `json:"payments,omitempty"`
	Plans        []Plan        `json:"plans,omitempty"`
}
