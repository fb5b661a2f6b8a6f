package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paysync/backend/internal/domain"
	"github.com/sirupsen/logrus"
)

// IdempotencyGuard wraps repository inserts that can race with webhook
// redelivery or with the synchronous API. A uniqueness rejection means the
// same logical write already happened, so the guard logs it and returns the
// existing row as success. No separate seen-event ledger is kept; the unique
// external references carry the whole idempotency story.
type IdempotencyGuard struct {
	subs     SubscriptionStore
	payments PaymentStore
	log      *logrus.Logger
}

// NewIdempotencyGuard creates an IdempotencyGuard over the given stores.
func NewIdempotencyGuard(subs SubscriptionStore, payments PaymentStore, log *logrus.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{subs: subs, payments: payments, log: log}
}

// CreatePayment inserts p, or returns the row that already holds one of its
// external references.
func (g *IdempotencyGuard) CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	err := g.payments.Create(ctx, p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, err
	}

	existing, ferr := g.payments.FindByProviderPaymentID(ctx, p.ProviderPaymentID)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil && p.ProviderInvoiceID != nil {
		existing, ferr = g.payments.FindByProviderInvoiceID(ctx, *p.ProviderInvoiceID)
		if ferr != nil {
			return nil, ferr
		}
	}
	if existing == nil {
		return nil, fmt.Errorf("payment %s rejected as duplicate but no existing row found", p.ProviderPaymentID)
	}

	g.log.WithFields(logrus.Fields{
		"provider_payment_id": p.ProviderPaymentID,
		"payment_id":          existing.ID,
	}).Info("duplicate payment suppressed")
	return existing, nil
}

// CreateSubscription inserts sub, or returns the non-cancelled row the user
// already holds (the other writer won the race).
func (g *IdempotencyGuard) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	err := g.subs.Create(ctx, sub)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, err
	}

	existing, ferr := g.subs.FindCurrentByUserID(ctx, sub.UserID)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, fmt.Errorf("subscription for user %s rejected as duplicate but no existing row found", sub.UserID)
	}

	g.log.WithFields(logrus.Fields{
		"user_id":         sub.UserID,
		"subscription_id": existing.ID,
	}).Info("duplicate subscription suppressed")
	return existing, nil
}
