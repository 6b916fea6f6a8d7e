package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// InventoryRepo implements ports.InventoryRepository. Stock movements are
// conditional single-statement updates, so two orders racing for the last
// unit cannot both win; the per-order reservation rows with their released
// flag are what make the release path idempotent.
type InventoryRepo struct {
	pool Pool
}

// NewInventoryRepo creates a new InventoryRepo.
func NewInventoryRepo(pool Pool) *InventoryRepo {
	return &InventoryRepo{pool: pool}
}

// Reserve moves quantity from available to reserved for each item inside
// the caller's transaction. Any item short on stock aborts the whole
// reservation with ErrInsufficientStock.
func (r *InventoryRepo) Reserve(ctx context.Context, tx pgx.Tx, orderNumber string, items []domain.OrderItem) error {
	now := time.Now().UTC()

	reserveQuery := `UPDATE inventory
		SET available = available - $1, reserved = reserved + $1, updated_at = $2
		WHERE product_id = $3 AND available >= $1`
	insertQuery := `INSERT INTO reservations (order_number, product_id, quantity, released, created_at)
		VALUES ($1, $2, $3, FALSE, $4)`

	for _, item := range items {
		tag, err := tx.Exec(ctx, reserveQuery, item.Quantity, now, item.ProductID)
		if err != nil {
			return fmt.Errorf("reserve stock for %s: %w", item.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, ports.ErrInsufficientStock)
		}
		if _, err := tx.Exec(ctx, insertQuery, orderNumber, item.ProductID, item.Quantity, now); err != nil {
			return fmt.Errorf("insert reservation for %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// Release returns every unreleased reservation for the order to available
// stock. The released flag flips in the same statement that moves the
// counters, so repeated calls after the first are no-ops.
func (r *InventoryRepo) Release(ctx context.Context, orderNumber string) (int, error) {
	query := `WITH released AS (
			UPDATE reservations SET released = TRUE
			WHERE order_number = $1 AND released = FALSE
			RETURNING product_id, quantity
		)
		UPDATE inventory i
		SET available = i.available + released.quantity,
			reserved = i.reserved - released.quantity,
			updated_at = $2
		FROM released WHERE i.product_id = released.product_id`

	tag, err := r.pool.Exec(ctx, query, orderNumber, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("release reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Consume finalizes reservations on shipment: reserved stock leaves the
// counters for good. Idempotent the same way Release is.
func (r *InventoryRepo) Consume(ctx context.Context, orderNumber string) error {
	query := `WITH consumed AS (
			UPDATE reservations SET released = TRUE
			WHERE order_number = $1 AND released = FALSE
			RETURNING product_id, quantity
		)
		UPDATE inventory i
		SET reserved = i.reserved - consumed.quantity, updated_at = $2
		FROM consumed WHERE i.product_id = consumed.product_id`

	if _, err := r.pool.Exec(ctx, query, orderNumber, time.Now().UTC()); err != nil {
		return fmt.Errorf("consume reservations: %w", err)
	}
	return nil
}

// GetLevel fetches the stock counters for one product.
func (r *InventoryRepo) GetLevel(ctx context.Context, productID string) (*domain.InventoryLevel, error) {
	query := `SELECT product_id, available, reserved, updated_at FROM inventory WHERE product_id = $1`

	level := &domain.InventoryLevel{}
	err := r.pool.QueryRow(ctx, query, productID).Scan(
		&level.ProductID, &level.Available, &level.Reserved, &level.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inventory level: %w", err)
	}
	return level, nil
}
