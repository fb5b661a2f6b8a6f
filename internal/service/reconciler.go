package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paysync/backend/internal/domain"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
)

// PaymentReconciler applies verified processor events to the local records.
// Every handler is safe against redelivery and against events arriving after
// the state already moved past them: a miss or a duplicate is logged and
// acknowledged, never retried.
type PaymentReconciler struct {
	guard    *IdempotencyGuard
	subs     SubscriptionStore
	payments PaymentStore
	notifier Notifier
	log      *logrus.Logger
	now      func() time.Time
}

// NewPaymentReconciler creates a PaymentReconciler.
func NewPaymentReconciler(guard *IdempotencyGuard, subs SubscriptionStore, payments PaymentStore, notifier Notifier, log *logrus.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		guard:    guard,
		subs:     subs,
		payments: payments,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// HandlePaymentSucceeded processes a payment_intent success. A first
// subscription payment (flagged by metadata purpose) promotes the user's
// subscription; any other intent updates the payment row the synchronous
// path pre-created.
func (r *PaymentReconciler) HandlePaymentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	if pi.Metadata[payment.MetaPurpose] == payment.PurposeFirstSubPay {
		return r.promoteFirstPayment(ctx, pi)
	}

	ok, err := r.payments.MarkSucceeded(ctx, pi.ID, r.now())
	if err != nil {
		return err
	}
	if !ok {
		// Redelivery would not help: the row should have been created by
		// the synchronous path before this event could arrive.
		r.log.WithField("provider_payment_id", pi.ID).Warn("no payment row for succeeded intent")
	}
	return nil
}

// HandlePaymentFailed marks the matched payment as failed and stores the
// failure reason. Subscription state is untouched; dunning arrives through
// invoice events.
func (r *PaymentReconciler) HandlePaymentFailed(ctx context.Context, pi *stripe.PaymentIntent) error {
	reason := &domain.FailureReason{Kind: domain.FailureOther}
	if pi.LastPaymentError != nil {
		reason = domain.ClassifyFailure(
			string(pi.LastPaymentError.Code),
			string(pi.LastPaymentError.DeclineCode),
			pi.LastPaymentError.Msg,
		)
	}

	ok, err := r.payments.MarkFailed(ctx, pi.ID, reason)
	if err != nil {
		return err
	}
	if !ok {
		r.log.WithField("provider_payment_id", pi.ID).Warn("no payment row for failed intent")
	}
	return nil
}

// HandleInvoiceSucceeded records a recurring payment: the subscription
// returns to active with refreshed period bounds and a new payment row is
// created, keyed by the unique invoice reference.
func (r *PaymentReconciler) HandleInvoiceSucceeded(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		r.log.WithField("provider_invoice_id", inv.ID).Info("invoice without subscription, ignoring")
		return nil
	}

	sub, err := r.subs.FindByProviderSubID(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		r.log.WithFields(logrus.Fields{
			"provider_subscription_id": inv.Subscription.ID,
			"provider_invoice_id":      inv.ID,
		}).Warn("no subscription row for paid invoice")
		return nil
	}

	now := r.now()
	if next, apply := ResolveRenewal(sub.Status); apply {
		sub.Status = next
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd = invoicePeriod(inv, now)
		if err := r.subs.UpdateProcessorState(ctx, sub); err != nil {
			return err
		}
	} else {
		r.log.WithField("subscription_id", sub.ID).Info("paid invoice for cancelled subscription, status unchanged")
	}

	pay := &domain.Payment{
		ID:                uuid.New().String(),
		UserID:            sub.UserID,
		Amount:            inv.AmountPaid,
		Currency:          string(inv.Currency),
		Status:            domain.PaymentSucceeded,
		Type:              domain.PaymentSubscription,
		ProviderPaymentID: invoicePaymentRef(inv),
		ProviderInvoiceID: &inv.ID,
		SubscriptionID:    &sub.ID,
		PaidAt:            &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err = r.guard.CreatePayment(ctx, pay)
	return err
}

// HandleInvoiceFailed moves the subscription into dunning. No payment row is
// created for a failed invoice.
func (r *PaymentReconciler) HandleInvoiceFailed(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		r.log.WithField("provider_invoice_id", inv.ID).Info("failed invoice without subscription, ignoring")
		return nil
	}

	sub, err := r.subs.FindByProviderSubID(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		r.log.WithField("provider_subscription_id", inv.Subscription.ID).Warn("no subscription row for failed invoice")
		return nil
	}

	next, apply := ResolveDunning(sub.Status)
	if !apply {
		return nil
	}
	sub.Status = next
	return r.subs.UpdateProcessorState(ctx, sub)
}

// HandleSubscriptionCreated and HandleSubscriptionUpdated both refresh the
// local row from the processor's view.
func (r *PaymentReconciler) HandleSubscriptionCreated(ctx context.Context, ssub *stripe.Subscription) error {
	return r.applyProcessorSubscription(ctx, ssub)
}

func (r *PaymentReconciler) HandleSubscriptionUpdated(ctx context.Context, ssub *stripe.Subscription) error {
	return r.applyProcessorSubscription(ctx, ssub)
}

func (r *PaymentReconciler) applyProcessorSubscription(ctx context.Context, ssub *stripe.Subscription) error {
	local, err := r.subs.FindByProviderSubID(ctx, ssub.ID)
	if err != nil {
		return err
	}
	if local == nil {
		r.log.WithField("provider_subscription_id", ssub.ID).Warn("subscription event for unknown row")
		return nil
	}

	next, apply, err := ResolveUpdate(local.Status, string(ssub.Status))
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"subscription_id":  local.ID,
			"processor_status": string(ssub.Status),
		}).Warn("unmapped processor status, transition skipped")
		return nil
	}
	if !apply {
		return nil
	}

	local.Status = next
	local.CurrentPeriodStart = time.Unix(ssub.CurrentPeriodStart, 0)
	local.CurrentPeriodEnd = time.Unix(ssub.CurrentPeriodEnd, 0)
	local.TrialStart = unixPtr(ssub.TrialStart)
	local.TrialEnd = unixPtr(ssub.TrialEnd)
	local.CancelAtPeriodEnd = ssub.CancelAtPeriodEnd
	if ssub.CanceledAt > 0 {
		local.CancelledAt = unixPtr(ssub.CanceledAt)
	}
	return r.subs.UpdateProcessorState(ctx, local)
}

// HandleSubscriptionDeleted cancels every local row carrying the external
// reference. Hitting all matches keeps a duplicate-row anomaly convergent.
func (r *PaymentReconciler) HandleSubscriptionDeleted(ctx context.Context, ssub *stripe.Subscription) error {
	n, err := r.subs.CancelAllByProviderSubID(ctx, ssub.ID, r.now())
	if err != nil {
		return err
	}
	if n == 0 {
		r.log.WithField("provider_subscription_id", ssub.ID).Warn("subscription deleted event matched no rows")
	}
	return nil
}

// promoteFirstPayment is the NONE/INCOMPLETE → ACTIVE path. The incomplete
// row, if any, is deleted and a fresh active row inserted; a uniqueness
// rejection on the insert means the other writer already won and is taken
// as success.
func (r *PaymentReconciler) promoteFirstPayment(ctx context.Context, pi *stripe.PaymentIntent) error {
	userID := pi.Metadata[payment.MetaUserID]
	if userID == "" {
		r.log.WithField("provider_payment_id", pi.ID).Warn("first payment without user reference")
		return nil
	}
	planID := pi.Metadata[payment.MetaPlanID]

	now := r.now()
	periodStart, periodEnd := now, now.AddDate(0, 1, 0)
	if raw := pi.Metadata[payment.MetaPeriodEnd]; raw != "" {
		if ts, perr := strconv.ParseInt(raw, 10, 64); perr == nil && ts > 0 {
			periodEnd = time.Unix(ts, 0)
		}
	}

	var providerSubID *string
	current, err := r.subs.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if current != nil && current.Status == domain.SubscriptionIncomplete {
		providerSubID = current.ProviderSubID
		if planID == "" {
			planID = current.Plan
		}
		if _, err := r.subs.DeleteIncompleteByUserID(ctx, userID); err != nil {
			return err
		}
		current = nil
	}

	sub := current
	if sub == nil {
		sub = &domain.Subscription{
			ID:                 uuid.New().String(),
			UserID:             userID,
			Plan:               planID,
			Status:             domain.SubscriptionActive,
			ProviderSubID:      providerSubID,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		sub, err = r.guard.CreateSubscription(ctx, sub)
		if err != nil {
			return err
		}
	}

	pay := &domain.Payment{
		ID:                uuid.New().String(),
		UserID:            userID,
		Amount:            pi.Amount,
		Currency:          string(pi.Currency),
		Status:            domain.PaymentSucceeded,
		Type:              domain.PaymentSubscription,
		ProviderPaymentID: pi.ID,
		SubscriptionID:    &sub.ID,
		PaidAt:            &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	recorded, err := r.guard.CreatePayment(ctx, pay)
	if err != nil {
		return err
	}
	if recorded.ID != pay.ID {
		// Redelivery: the payment was already recorded and the welcome
		// already went out on the first delivery.
		return nil
	}

	// The welcome note must never block or fail the acknowledgment. The
	// request context dies with the response, so detach.
	go func(sub domain.Subscription) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.notifier.SendWelcome(ctx, sub.UserID, &sub); err != nil {
			r.log.WithError(err).WithField("user_id", sub.UserID).Warn("welcome notification failed")
		}
	}(*sub)

	return nil
}

// invoicePeriod extracts the service period from an invoice, preferring the
// first line item's period over the invoice-level one.
func invoicePeriod(inv *stripe.Invoice, fallback time.Time) (time.Time, time.Time) {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
		p := inv.Lines.Data[0].Period
		if p.Start > 0 && p.End > 0 {
			return time.Unix(p.Start, 0), time.Unix(p.End, 0)
		}
	}
	if inv.PeriodStart > 0 && inv.PeriodEnd > 0 {
		return time.Unix(inv.PeriodStart, 0), time.Unix(inv.PeriodEnd, 0)
	}
	return fallback, fallback.AddDate(0, 1, 0)
}

// invoicePaymentRef picks the external payment reference for an invoice
// payment. The invoice id stands in when no payment intent is attached
// (e.g. a zero-amount trial invoice).
func invoicePaymentRef(inv *stripe.Invoice) string {
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		return inv.PaymentIntent.ID
	}
	return inv.ID
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
