package service

import (
	"context"
	"errors"
	"testing"

	"github.com/paysync/backend/internal/domain"
	"github.com/paysync/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"
)

// erroringSubs fails every external-reference lookup, simulating a store
// outage while the rest of the interface keeps working.
type erroringSubs struct {
	*memSubs
}

func (e erroringSubs) FindByProviderSubID(context.Context, string) (*domain.Subscription, error) {
	return nil, errors.New("store unavailable")
}

func TestDispatchAcknowledgesUnhandledKind(t *testing.T) {
	f := newReconcilerFixture(t)
	d := NewEventDispatcher(f.reconciler, testLogger())

	d.Dispatch(context.Background(), &payment.Event{
		ID:      "evt_1",
		Kind:    payment.KindUnhandled,
		RawType: "charge.refunded",
	})

	assert.Empty(t, f.subs.all())
	assert.Empty(t, f.payments.all())
}

func TestDispatchAbsorbsHandlerErrors(t *testing.T) {
	log := testLogger()
	subs := newMemSubs()
	payments := newMemPayments()
	guard := NewIdempotencyGuard(erroringSubs{subs}, payments, log)
	reconciler := NewPaymentReconciler(guard, erroringSubs{subs}, payments, newRecordingNotifier(), log)
	d := NewEventDispatcher(reconciler, log)

	// Must not panic and must not surface the error.
	d.Dispatch(context.Background(), &payment.Event{
		ID:      "evt_2",
		Kind:    payment.KindInvoiceSucceeded,
		Invoice: &stripe.Invoice{ID: "in_1", Subscription: &stripe.Subscription{ID: "sub_x"}},
	})
}

func TestDispatchRoutesByKind(t *testing.T) {
	f := newReconcilerFixture(t)
	f.subs.seed(activeSub("user-1", "sub_stripe_1"))
	d := NewEventDispatcher(f.reconciler, testLogger())
	ctx := context.Background()

	d.Dispatch(ctx, &payment.Event{
		ID:           "evt_3",
		Kind:         payment.KindSubscriptionDeleted,
		Subscription: &stripe.Subscription{ID: "sub_stripe_1"},
	})

	rows := f.subs.all()
	if assert.Len(t, rows, 1) {
		assert.True(t, rows[0].Status.Terminal())
	}
}
