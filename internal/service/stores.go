package service

import (
	"context"
	"time"

	"github.com/paysync/backend/internal/domain"
)

// SubscriptionStore is the persistence surface the billing services need for
// subscriptions. Implemented by repository.SubscriptionRepository; tests use
// in-memory fakes that enforce the same uniqueness invariants.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	FindCurrentByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	FindByProviderSubID(ctx context.Context, providerSubID string) (*domain.Subscription, error)
	UpdateProcessorState(ctx context.Context, sub *domain.Subscription) error
	CancelAllByProviderSubID(ctx context.Context, providerSubID string, at time.Time) (int64, error)
	DeleteIncompleteByUserID(ctx context.Context, userID string) (bool, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string) error
	CancelStaleIncomplete(ctx context.Context, cutoff time.Time) (int64, error)
}

// PaymentStore is the persistence surface for payment records.
type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error)
	FindByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*domain.Payment, error)
	MarkSucceeded(ctx context.Context, providerPaymentID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, providerPaymentID string, reason *domain.FailureReason) (bool, error)
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*domain.Payment, error)
}

// UserStore is the subset of user persistence the billing services need.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}
