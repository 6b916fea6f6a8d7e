package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository. Line items, status history
// and payment details live in JSONB columns; the queryable fields (status,
// payment status, method, user) are real columns.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `order_number, user_id, customer_email, shipping_address, items,
	subtotal, tax, shipping, total, currency, status, payment_status, payment_method,
	payment_details, status_history, tracking_number, created_at, updated_at, version`

// Create inserts a new order within a database transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	items, history, details, err := marshalOrderJSON(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = tx.Exec(ctx, query,
		order.OrderNumber, order.UserID, order.CustomerEmail, order.ShippingAddress, items,
		order.Subtotal, order.Tax, order.Shipping, order.Total, order.Currency,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		details, history, order.TrackingNumber,
		order.CreatedAt, order.UpdatedAt, order.Version,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByNumber fetches an order by its public number.
func (r *OrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, orderNumber))
}

// Update persists the order guarded by its version. Zero rows affected
// means the stored version moved on (or the order vanished); callers
// re-read and retry.
func (r *OrderRepo) Update(ctx context.Context, order *domain.Order) error {
	items, history, details, err := marshalOrderJSON(order)
	if err != nil {
		return err
	}

	query := `UPDATE orders SET
		shipping_address = $1, items = $2, subtotal = $3, tax = $4, shipping = $5,
		total = $6, status = $7, payment_status = $8, payment_details = $9,
		status_history = $10, tracking_number = $11, updated_at = $12,
		version = version + 1
		WHERE order_number = $13 AND version = $14`

	tag, err := r.pool.Exec(ctx, query,
		order.ShippingAddress, items, order.Subtotal, order.Tax, order.Shipping,
		order.Total, order.Status, order.PaymentStatus, details,
		history, order.TrackingNumber, order.UpdatedAt,
		order.OrderNumber, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}

	order.Version++
	return nil
}

// List fetches orders with filtering and pagination, newest first.
func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argIdx))
		args = append(args, *params.PaymentStatus)
		argIdx++
	}
	if params.Method != nil {
		conditions = append(conditions, fmt.Sprintf("payment_method = $%d", argIdx))
		args = append(args, *params.Method)
		argIdx++
	}
	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

func marshalOrderJSON(order *domain.Order) (items, history, details []byte, err error) {
	items, err = json.Marshal(order.Items)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal order items: %w", err)
	}
	history, err = json.Marshal(order.StatusHistory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal status history: %w", err)
	}
	if order.PaymentDetails != nil {
		details, err = json.Marshal(order.PaymentDetails)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal payment details: %w", err)
		}
	}
	return items, history, details, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	order, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var items, history, details []byte

	err := row.Scan(
		&order.OrderNumber, &order.UserID, &order.CustomerEmail, &order.ShippingAddress, &items,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Total, &order.Currency,
		&order.Status, &order.PaymentStatus, &order.PaymentMethod,
		&details, &history, &order.TrackingNumber,
		&order.CreatedAt, &order.UpdatedAt, &order.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(history, &order.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history: %w", err)
	}
	if len(details) > 0 {
		order.PaymentDetails = &domain.PaymentDetails{}
		if err := json.Unmarshal(details, order.PaymentDetails); err != nil {
			return nil, fmt.Errorf("unmarshal payment details: %w", err)
		}
	}
	return order, nil
}
