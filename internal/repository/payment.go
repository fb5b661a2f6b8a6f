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

const paymentColumns = `id, user_id, amount, currency, status, type,
	provider_payment_id, provider_invoice_id, subscription_id, paid_at,
	failure_kind, failure_code, failure_decline_code, failure_message,
	created_at, updated_at`

// PaymentRepository handles database operations for payments. Rows are only
// ever inserted or updated in place, never deleted; the unique external
// references make redelivered events collapse onto the same row.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment row. Returns domain.ErrAlreadyExists when a
// row with the same provider payment or invoice reference exists.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	var kind, code, declineCode, message *string
	if p.Failure != nil {
		k := string(p.Failure.Kind)
		kind, code, declineCode, message = &k, &p.Failure.Code, &p.Failure.DeclineCode, &p.Failure.Message
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, p.Status, p.Type,
		p.ProviderPaymentID, p.ProviderInvoiceID, p.SubscriptionID, p.PaidAt,
		kind, code, declineCode, message,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindByProviderPaymentID returns the payment holding the external payment
// reference, or nil.
func (r *PaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_id = $1`
	return r.findOne(ctx, query, providerPaymentID)
}

// FindByProviderInvoiceID returns the payment holding the external invoice
// reference, or nil.
func (r *PaymentRepository) FindByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_invoice_id = $1`
	return r.findOne(ctx, query, providerInvoiceID)
}

// MarkSucceeded updates the payment matched by external reference to
// succeeded. Reports whether a row was found.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, providerPaymentID string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'succeeded', paid_at = $2,
			failure_kind = NULL, failure_code = NULL,
			failure_decline_code = NULL, failure_message = NULL,
			updated_at = NOW()
		WHERE provider_payment_id = $1
	`
	tag, err := r.db.Exec(ctx, query, providerPaymentID, paidAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment %s succeeded: %w", providerPaymentID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed updates the payment matched by external reference to failed and
// records the failure reason. Reports whether a row was found.
func (r *PaymentRepository) MarkFailed(ctx context.Context, providerPaymentID string, reason *domain.FailureReason) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', failure_kind = $2, failure_code = $3,
			failure_decline_code = $4, failure_message = $5, updated_at = NOW()
		WHERE provider_payment_id = $1
	`
	tag, err := r.db.Exec(ctx, query, providerPaymentID,
		string(reason.Kind), reason.Code, reason.DeclineCode, reason.Message)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment %s failed: %w", providerPaymentID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRecentByUserID returns the user's most recent payments.
func (r *PaymentRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, query, arg)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var kind, code, declineCode, message *string
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.Type,
		&p.ProviderPaymentID, &p.ProviderInvoiceID, &p.SubscriptionID, &p.PaidAt,
		&kind, &code, &declineCode, &message,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if kind != nil {
		p.Failure = &domain.FailureReason{Kind: domain.FailureKind(*kind)}
		if code != nil {
			p.Failure.Code = *code
		}
		if declineCode != nil {
			p.Failure.DeclineCode = *declineCode
		}
		if message != nil {
			p.Failure.Message = *message
		}
	}
	return &p, nil
}
