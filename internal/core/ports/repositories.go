package ports

import (
	"context"
	"errors"
	"time"

	"storefront-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned by version-conditioned updates when the
// row moved underneath the caller. Services re-read and retry a bounded
// number of times rather than holding locks across webhook handling.
var ErrVersionConflict = errors.New("version conflict")

// ErrInsufficientStock is returned by InventoryRepository.Reserve when any
// requested item lacks available stock. The whole reservation fails.
var ErrInsufficientStock = errors.New("insufficient stock")

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx run inside transaction blocks so order creation
// and its stock reservations commit atomically.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	// Update persists the order with an optimistic version check and
	// returns ErrVersionConflict if the stored version moved on.
	Update(ctx context.Context, order *domain.Order) error
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// OrderListParams holds filter + pagination for the admin order listing.
type OrderListParams struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	Method        *domain.PaymentMethod
	UserID        *string
	Page          int
	PageSize      int
}

// PaymentAttemptRepository defines persistence for gateway sessions.
type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error)
	// GetByProviderRef resolves an inbound webhook's payment reference to
	// the attempt it belongs to.
	GetByProviderRef(ctx context.Context, gateway domain.PaymentMethod, providerRef string) (*domain.PaymentAttempt, error)
	// GetOpenByOrder returns the unexpired open attempt for an order, or
	// nil when none exists.
	GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.PaymentAttempt, error)
	// Update persists the attempt with an optimistic version check and
	// returns ErrVersionConflict on a concurrent write.
	Update(ctx context.Context, attempt *domain.PaymentAttempt) error
	// ListStale returns open attempts whose expiry passed before now,
	// oldest first, for the sweep to close out.
	ListStale(ctx context.Context, now time.Time, limit int) ([]domain.PaymentAttempt, error)
}

// WebhookEventRepository is the authoritative idempotency ledger.
type WebhookEventRepository interface {
	// RecordIfNew atomically claims (provider, externalEventID). It returns
	// true exactly once per event id; every later call returns false. This
	// is the single mandated serialization point of webhook processing.
	RecordIfNew(ctx context.Context, provider domain.PaymentMethod, externalEventID string, receivedAt time.Time) (bool, error)
	// SetOutcome records how processing ended, for security/audit queries.
	SetOutcome(ctx context.Context, provider domain.PaymentMethod, externalEventID string, outcome string) error
}

// ReturnRepository defines persistence for return requests.
type ReturnRepository interface {
	Create(ctx context.Context, ret *domain.ReturnRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error)
	// GetOpenByOrder returns the non-terminal return for an order, or nil.
	// The one-open-return-per-order rule hangs off this lookup.
	GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.ReturnRequest, error)
	Update(ctx context.Context, ret *domain.ReturnRequest) error
}

// InventoryRepository manages per-product stock counters and the per-order
// reservation markers that make release idempotent.
type InventoryRepository interface {
	// Reserve moves quantity from available to reserved for each item and
	// records a reservation row, all within the caller's transaction.
	// Insufficient stock fails the whole reservation.
	Reserve(ctx context.Context, tx pgx.Tx, orderNumber string, items []domain.OrderItem) error
	// Release returns every unreleased reservation for the order to
	// available stock. Safe to call repeatedly; only the first call moves
	// counters. Returns the number of reservations released.
	Release(ctx context.Context, orderNumber string) (int, error)
	// Consume finalizes reservations on shipment: reserved stock leaves
	// the building and the reservation rows are marked released.
	Consume(ctx context.Context, orderNumber string) error
	GetLevel(ctx context.Context, productID string) (*domain.InventoryLevel, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
