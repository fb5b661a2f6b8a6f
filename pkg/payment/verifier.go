package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Verifier failure taxonomy. Only ErrConfigMissing is a server-side fault;
// the rest reject the request at the boundary.
var (
	ErrSignatureMissing = errors.New("webhook signature header missing")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrConfigMissing    = errors.New("webhook signing secret not configured")
	ErrPayloadMalformed = errors.New("webhook payload malformed")
)

// Verifier authenticates inbound webhook requests and decodes them into
// typed events. The raw body bytes must be passed exactly as received:
// re-serialization would change the signature input.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier with the shared signing secret. An empty
// secret is allowed at construction; Verify reports it as ErrConfigMissing
// so a misdeployment surfaces as 5xx rather than a silent 4xx.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify recomputes the HMAC over the raw payload, checks it against the
// signature header, and decodes the payload into a typed Event.
func (v *Verifier) Verify(payload []byte, sigHeader string) (*Event, error) {
	if v.secret == "" {
		return nil, ErrConfigMissing
	}
	if sigHeader == "" {
		return nil, ErrSignatureMissing
	}

	raw, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		default:
			// Signature checked out but the body didn't parse as an event.
			return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
		}
	}

	return decodeEvent(&raw)
}

func decodeEvent(raw *stripe.Event) (*Event, error) {
	ev := &Event{ID: raw.ID, RawType: string(raw.Type)}

	switch raw.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		ev.Kind = KindPaymentSucceeded
		return ev, decodePayload(raw, &ev.PaymentIntent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		ev.Kind = KindPaymentFailed
		return ev, decodePayload(raw, &ev.PaymentIntent)
	case stripe.EventTypeInvoicePaymentSucceeded:
		ev.Kind = KindInvoiceSucceeded
		return ev, decodePayload(raw, &ev.Invoice)
	case stripe.EventTypeInvoicePaymentFailed:
		ev.Kind = KindInvoiceFailed
		return ev, decodePayload(raw, &ev.Invoice)
	case stripe.EventTypeCustomerSubscriptionCreated:
		ev.Kind = KindSubscriptionCreated
		return ev, decodePayload(raw, &ev.Subscription)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		ev.Kind = KindSubscriptionUpdated
		return ev, decodePayload(raw, &ev.Subscription)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		ev.Kind = KindSubscriptionDeleted
		return ev, decodePayload(raw, &ev.Subscription)
	default:
		ev.Kind = KindUnhandled
		return ev, nil
	}
}

func decodePayload[T any](raw *stripe.Event, dst **T) error {
	var obj T
	if err := json.Unmarshal(raw.Data.Raw, &obj); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPayloadMalformed, raw.Type, err)
	}
	*dst = &obj
	return nil
}
