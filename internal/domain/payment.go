package domain

import "time"

// PaymentStatus is the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentType discriminates one-off charges from recurring ones.
type PaymentType string

const (
	PaymentOneTime      PaymentType = "one_time"
	PaymentSubscription PaymentType = "subscription"
)

// FailureKind tags the known failure-reason shapes reported by the processor.
// Unknown codes fall back to FailureOther with the raw message preserved.
type FailureKind string

const (
	FailureCardDeclined      FailureKind = "card_declined"
	FailureInsufficientFunds FailureKind = "insufficient_funds"
	FailureExpiredCard       FailureKind = "expired_card"
	FailureAuthentication    FailureKind = "authentication_required"
	FailureOther             FailureKind = "other"
)

// FailureReason records why a payment failed.
type FailureReason struct {
	Kind        FailureKind `json:"kind"`
	Code        string      `json:"code,omitempty"`
	DeclineCode string      `json:"declineCode,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Payment is the locally persisted payment record. ProviderPaymentID and
// ProviderInvoiceID are each unique across all rows; they are the anchors
// the idempotency guard relies on. Rows are never deleted.
type Payment struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId"`
	Amount            int64          `json:"amount"` // minor units (cents)
	Currency          string         `json:"currency"`
	Status            PaymentStatus  `json:"status"`
	Type              PaymentType    `json:"type"`
	ProviderPaymentID string         `json:"providerPaymentId"`
	ProviderInvoiceID *string        `json:"providerInvoiceId,omitempty"`
	SubscriptionID    *string        `json:"subscriptionId,omitempty"`
	PaidAt            *time.Time     `json:"paidAt,omitempty"`
	Failure           *FailureReason `json:"failure,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ClassifyFailure maps a processor error code to a tagged failure reason.
func ClassifyFailure(code, declineCode, message string) *FailureReason {
	kind := FailureOther
	switch code {
	case "card_declined":
		kind = FailureCardDeclined
		if declineCode == "insufficient_funds" {
			kind = FailureInsufficientFunds
		}
	case "expired_card":
		kind = FailureExpiredCard
	case "authentication_required", "payment_intent_authentication_failure":
		kind = FailureAuthentication
	}
	return &FailureReason{Kind: kind, Code: code, DeclineCode: declineCode, Message: message}
}
