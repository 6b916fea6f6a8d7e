package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AttemptRepo implements ports.PaymentAttemptRepository.
type AttemptRepo struct {
	pool Pool
}

// NewAttemptRepo creates a new AttemptRepo.
func NewAttemptRepo(pool Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

const attemptColumns = `id, order_number, gateway, provider_ref, address, redirect_url,
	amount_expected, currency, fiat_amount, exchange_rate, amount_received, confirmations,
	state, created_at, expires_at, updated_at, version`

// Create inserts a new payment attempt.
func (r *AttemptRepo) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `INSERT INTO payment_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.OrderNumber, attempt.Gateway, attempt.ProviderRef,
		attempt.Address, attempt.RedirectURL,
		attempt.AmountExpected, attempt.Currency, attempt.FiatAmount, attempt.ExchangeRate,
		attempt.AmountReceived, attempt.Confirmations,
		attempt.State, attempt.CreatedAt, attempt.ExpiresAt, attempt.UpdatedAt, attempt.Version,
	)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

// GetByID fetches a payment attempt by UUID.
func (r *AttemptRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`
	return scanAttempt(r.pool.QueryRow(ctx, query, id))
}

// GetByProviderRef resolves a provider's payment reference to its attempt.
func (r *AttemptRepo) GetByProviderRef(ctx context.Context, gateway domain.PaymentMethod, providerRef string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE gateway = $1 AND provider_ref = $2`
	return scanAttempt(r.pool.QueryRow(ctx, query, gateway, providerRef))
}

// GetOpenByOrder returns the most recent open attempt for an order, or nil.
func (r *AttemptRepo) GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts
		WHERE order_number = $1 AND state IN ('pending', 'underpaid')
		ORDER BY created_at DESC LIMIT 1`
	return scanAttempt(r.pool.QueryRow(ctx, query, orderNumber))
}

// Update persists the attempt guarded by its version.
func (r *AttemptRepo) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `UPDATE payment_attempts SET
		provider_ref = $1, amount_received = $2, confirmations = $3, state = $4,
		updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	tag, err := r.pool.Exec(ctx, query,
		attempt.ProviderRef, attempt.AmountReceived, attempt.Confirmations, attempt.State,
		attempt.UpdatedAt, attempt.ID, attempt.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}

	attempt.Version++
	return nil
}

// ListStale returns open attempts whose expiry passed before now, oldest
// first, for the sweep to close out.
func (r *AttemptRepo) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts
		WHERE state IN ('pending', 'underpaid') AND expires_at < $1
		ORDER BY expires_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		a := domain.PaymentAttempt{}
		if err := scanAttemptInto(rows, &a); err != nil {
			return nil, fmt.Errorf("scan stale attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	a := &domain.PaymentAttempt{}
	if err := scanAttemptInto(row, a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment attempt: %w", err)
	}
	return a, nil
}

func scanAttemptInto(row pgx.Row, a *domain.PaymentAttempt) error {
	return row.Scan(
		&a.ID, &a.OrderNumber, &a.Gateway, &a.ProviderRef, &a.Address, &a.RedirectURL,
		&a.AmountExpected, &a.Currency, &a.FiatAmount, &a.ExchangeRate,
		&a.AmountReceived, &a.Confirmations,
		&a.State, &a.CreatedAt, &a.ExpiresAt, &a.UpdatedAt, &a.Version,
	)
}
