package service

import (
	"context"

	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

// EventDispatcher routes verified events to the reconciler. Handler failures
// are absorbed here: the processor would retry a non-success acknowledgment
// forever, and a handler that failed for a local reason (missing row, bad
// state) gains nothing from redelivery. Such failures go to the log for
// manual remediation and the event is acknowledged anyway.
type EventDispatcher struct {
	reconciler *PaymentReconciler
	log        *logrus.Logger
}

// NewEventDispatcher creates an EventDispatcher.
func NewEventDispatcher(reconciler *PaymentReconciler, log *logrus.Logger) *EventDispatcher {
	return &EventDispatcher{reconciler: reconciler, log: log}
}

// Dispatch routes one verified event. It never returns an error: by the time
// an event is authenticated and decoded, the only correct acknowledgment is
// success.
func (d *EventDispatcher) Dispatch(ctx context.Context, ev *payment.Event) {
	var err error
	switch ev.Kind {
	case payment.KindPaymentSucceeded:
		err = d.reconciler.HandlePaymentSucceeded(ctx, ev.PaymentIntent)
	case payment.KindPaymentFailed:
		err = d.reconciler.HandlePaymentFailed(ctx, ev.PaymentIntent)
	case payment.KindInvoiceSucceeded:
		err = d.reconciler.HandleInvoiceSucceeded(ctx, ev.Invoice)
	case payment.KindInvoiceFailed:
		err = d.reconciler.HandleInvoiceFailed(ctx, ev.Invoice)
	case payment.KindSubscriptionCreated:
		err = d.reconciler.HandleSubscriptionCreated(ctx, ev.Subscription)
	case payment.KindSubscriptionUpdated:
		err = d.reconciler.HandleSubscriptionUpdated(ctx, ev.Subscription)
	case payment.KindSubscriptionDeleted:
		err = d.reconciler.HandleSubscriptionDeleted(ctx, ev.Subscription)
	case payment.KindUnhandled:
		d.log.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"type":     ev.RawType,
		}).Info("unhandled event kind acknowledged")
		return
	}

	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"event_id": ev.ID,
			"kind":     ev.Kind,
		}).Error("event handler failed, acknowledged anyway")
	}
}
