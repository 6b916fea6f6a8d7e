package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReturnRepo implements ports.ReturnRepository. Returned line items live in
// a JSONB column; the workflow state is a real column so the open-return
// lookup can filter on it.
type ReturnRepo struct {
	pool Pool
}

// NewReturnRepo creates a new ReturnRepo.
func NewReturnRepo(pool Pool) *ReturnRepo {
	return &ReturnRepo{pool: pool}
}

const returnColumns = `id, order_number, items, status, admin_notes, rejection_reason,
	refund_provider_ref, created_at, updated_at`

// Create inserts a new return request.
func (r *ReturnRepo) Create(ctx context.Context, ret *domain.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("marshal return items: %w", err)
	}

	query := `INSERT INTO returns (` + returnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.pool.Exec(ctx, query,
		ret.ID, ret.OrderNumber, items, ret.Status, ret.AdminNotes, ret.RejectionReason,
		ret.RefundProviderRef, ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert return: %w", err)
	}
	return nil
}

// GetByID fetches a return request by UUID.
func (r *ReturnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE id = $1`
	return scanReturn(r.pool.QueryRow(ctx, query, id))
}

// GetOpenByOrder returns the non-terminal return for an order, or nil.
func (r *ReturnRepo) GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns
		WHERE order_number = $1 AND status NOT IN ('rejected', 'refunded', 'closed')
		ORDER BY created_at DESC LIMIT 1`
	return scanReturn(r.pool.QueryRow(ctx, query, orderNumber))
}

// Update persists the return request.
func (r *ReturnRepo) Update(ctx context.Context, ret *domain.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("marshal return items: %w", err)
	}

	query := `UPDATE returns SET items = $1, status = $2, admin_notes = $3,
		rejection_reason = $4, refund_provider_ref = $5, updated_at = $6
		WHERE id = $7`

	tag, err := r.pool.Exec(ctx, query,
		items, ret.Status, ret.AdminNotes, ret.RejectionReason,
		ret.RefundProviderRef, ret.UpdatedAt, ret.ID,
	)
	if err != nil {
		return fmt.Errorf("update return: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("return not found: %s", ret.ID)
	}
	return nil
}

func scanReturn(row pgx.Row) (*domain.ReturnRequest, error) {
	ret := &domain.ReturnRequest{}
	var items []byte

	err := row.Scan(
		&ret.ID, &ret.OrderNumber, &items, &ret.Status, &ret.AdminNotes,
		&ret.RejectionReason, &ret.RefundProviderRef, &ret.CreatedAt, &ret.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan return: %w", err)
	}

	if err := json.Unmarshal(items, &ret.Items); err != nil {
		return nil, fmt.Errorf("unmarshal return items: %w", err)
	}
	return ret, nil
}
