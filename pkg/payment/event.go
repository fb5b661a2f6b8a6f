package payment

import "github.com/stripe/stripe-go/v79"

// EventKind is the closed set of webhook event kinds this service reacts to.
// Anything the processor sends outside this set decodes to KindUnhandled and
// is acknowledged without side effects.
type EventKind string

const (
	KindUnhandled           EventKind = "unhandled"
	KindPaymentSucceeded    EventKind = "payment_succeeded"
	KindPaymentFailed       EventKind = "payment_failed"
	KindInvoiceSucceeded    EventKind = "invoice_succeeded"
	KindInvoiceFailed       EventKind = "invoice_failed"
	KindSubscriptionCreated EventKind = "subscription_created"
	KindSubscriptionUpdated EventKind = "subscription_updated"
	KindSubscriptionDeleted EventKind = "subscription_deleted"
)

// Event is a verified, decoded webhook notification. Exactly one of the
// payload pointers is set, matching Kind; for KindUnhandled all are nil and
// RawType preserves the processor's type string for logging.
type Event struct {
	ID      string
	Kind    EventKind
	RawType string

	PaymentIntent *stripe.PaymentIntent
	Invoice       *stripe.Invoice
	Subscription  *stripe.Subscription
}

// Metadata keys used to route processor objects back to local records.
// MetaPurpose, MetaUserID and MetaPlanID are stamped during the checkout
// handshake; MetaPeriodEnd is an optional override honored when present
// (ops tooling and replayed payments may carry it).
const (
	MetaPurpose        = "purpose"
	MetaUserID         = "user_id"
	MetaPlanID         = "plan_id"
	MetaPeriodEnd      = "period_end"
	PurposeFirstSubPay = "subscription_first_payment"
)
