package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paysync/backend/internal/domain"
)

const subscriptionColumns = `id, user_id, plan, status, provider_subscription_id,
	current_period_start, current_period_end, trial_start, trial_end,
	cancel_at_period_end, cancelled_at, created_at, updated_at`

// SubscriptionRepository handles database operations for subscriptions.
// The partial unique index on (user_id) WHERE status <> 'cancelled' is the
// arbitration point between the webhook path and the synchronous API.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription row. Returns domain.ErrAlreadyExists if
// the user already holds a non-cancelled subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Plan, sub.Status, sub.ProviderSubID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialStart, sub.TrialEnd,
		sub.CancelAtPeriodEnd, sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindCurrentByUserID returns the user's non-cancelled subscription, or nil.
func (r *SubscriptionRepository) FindCurrentByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE user_id = $1 AND status <> 'cancelled'
	`
	return r.findOne(ctx, query, userID)
}

// FindByProviderSubID returns the subscription holding the given external
// reference, or nil. If duplicate rows exist (operational anomaly) the most
// recently created one wins.
func (r *SubscriptionRepository) FindByProviderSubID(ctx context.Context, providerSubID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE provider_subscription_id = $1
		ORDER BY created_at DESC LIMIT 1
	`
	return r.findOne(ctx, query, providerSubID)
}

// UpdateProcessorState refreshes the row from the processor's view of the
// subscription. The status <> 'cancelled' predicate keeps CANCELLED terminal
// regardless of event delivery order.
func (r *SubscriptionRepository) UpdateProcessorState(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $2, current_period_start = $3, current_period_end = $4,
			trial_start = $5, trial_end = $6, cancel_at_period_end = $7,
			cancelled_at = $8, updated_at = NOW()
		WHERE id = $1 AND status <> 'cancelled'
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.TrialStart, sub.TrialEnd, sub.CancelAtPeriodEnd, sub.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	return nil
}

// CancelAllByProviderSubID marks every row carrying the external reference as
// cancelled. Matching all rows is deliberate: a duplicate-row anomaly must
// still converge to a single terminal truth. Returns the number of rows hit.
func (r *SubscriptionRepository) CancelAllByProviderSubID(ctx context.Context, providerSubID string, at time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = $2, updated_at = NOW()
		WHERE provider_subscription_id = $1 AND status <> 'cancelled'
	`
	tag, err := r.db.Exec(ctx, query, providerSubID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel subscriptions for %s: %w", providerSubID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteIncompleteByUserID removes the user's subscription only while it is
// still incomplete. Reports whether a row was actually deleted.
func (r *SubscriptionRepository) DeleteIncompleteByUserID(ctx context.Context, userID string) (bool, error) {
	query := `DELETE FROM subscriptions WHERE user_id = $1 AND status = 'incomplete'`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete incomplete subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetCancelAtPeriodEnd mirrors a requested end-of-period cancellation locally.
// The authoritative flip comes back through the subscription-updated webhook.
func (r *SubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions SET cancel_at_period_end = TRUE, updated_at = NOW()
		WHERE id = $1 AND status <> 'cancelled'
	`
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to set cancel_at_period_end on %s: %w", id, err)
	}
	return nil
}

// CancelStaleIncomplete cancels incomplete rows created before the cutoff
// whose payment handshake never finished. Used by the background sweeper.
func (r *SubscriptionRepository) CancelStaleIncomplete(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = NOW(), updated_at = NOW()
		WHERE status = 'incomplete' AND created_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale incomplete subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SubscriptionRepository) findOne(ctx context.Context, query string, arg any) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.ProviderSubID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialStart, &sub.TrialEnd,
		&sub.CancelAtPeriodEnd, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &sub, nil
}
