package ports

import (
	"context"
	"net/http"
	"time"

	"storefront-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// CheckoutService covers the customer-facing order and payment-session
// surface. Inventory and address validation happen upstream; the items
// arrive with their unit prices already resolved.
type CheckoutService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	CreatePaymentSession(ctx context.Context, orderNumber string, method domain.PaymentMethod) (*PaymentSession, error)
	GetPaymentStatus(ctx context.Context, orderNumber string) (*PaymentStatusView, error)
}

// CreateOrderRequest holds validated input for order creation. Unit prices
// are snapshots taken by the caller at checkout time.
type CreateOrderRequest struct {
	UserID          string
	CustomerEmail   string
	Items           []domain.OrderItem
	ShippingAddress string
	PaymentMethod   domain.PaymentMethod
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
}

// PaymentSession is what the checkout UI needs to send the customer to the
// provider: a redirect URL for PayPal, a receiving address for crypto.
type PaymentSession struct {
	AttemptID         uuid.UUID
	ProviderReference string
	Address           string
	RedirectURL       string
	AmountDue         decimal.Decimal
	Currency          string
	ExpiresAt         time.Time
}

// PaymentStatusView is the coarse status surface polled by the UI for
// asynchronous methods. Customers never see raw provider detail.
type PaymentStatusView struct {
	PaymentStatus         domain.PaymentStatus
	Confirmations         int
	ConfirmationsRequired int
}

// ReconciliationService consumes provider events and drives the order
// state machine. This is the webhook side of the engine.
type ReconciliationService interface {
	// HandleWebhook verifies, dedups and applies one provider delivery.
	// Deduplicated and unmatchable events return a successful outcome so
	// the HTTP layer acks them; only signature failures and infrastructure
	// errors surface as errors.
	HandleWebhook(ctx context.Context, provider domain.PaymentMethod, headers http.Header, rawBody []byte) (*WebhookOutcome, error)
	// CapturePayPal performs the synchronous capture for an order's open
	// PayPal attempt and settles the order either way.
	CapturePayPal(ctx context.Context, orderNumber string) (*domain.Order, error)
	// ExpireStalePayments closes out open attempts whose window passed
	// before now. Idempotent and safe to call from any scheduler; returns
	// the number of attempts expired.
	ExpireStalePayments(ctx context.Context, now time.Time) (int, error)
}

// WebhookOutcome reports what a delivery did, mostly for the ack body and
// for tests.
type WebhookOutcome struct {
	Duplicate     bool
	Applied       bool
	Outcome       string
	OrderNumber   string
	Decision      domain.PolicyDecision
	Confirmations int
}

// OrderAdminService covers the admin order surface.
type OrderAdminService interface {
	// OverrideStatus applies a manual fulfilment edit. It bypasses the
	// payment gate but structurally invalid moves still fail loudly.
	OverrideStatus(ctx context.Context, req StatusOverrideRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// StatusOverrideRequest holds validated input for a manual status edit.
type StatusOverrideRequest struct {
	OrderNumber    string
	Target         domain.OrderStatus
	Note           string
	TrackingNumber *string
}

// ReturnService drives the post-delivery return workflow.
type ReturnService interface {
	OpenReturn(ctx context.Context, req OpenReturnRequest) (*domain.ReturnRequest, error)
	GetReturn(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error)
	Approve(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.ReturnRequest, error)
	MarkItemReceived(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error)
	// IssueRefund calls the order's gateway and only then moves the return
	// to refunded. A provider rejection blocks the transition.
	IssueRefund(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error)
	Close(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error)
}

// OpenReturnRequest holds validated input for opening a return.
type OpenReturnRequest struct {
	OrderNumber string
	Items       []domain.ReturnItem
}

// Mailer sends best-effort transactional email. Failures are logged by the
// caller and never block or roll back a state transition.
type Mailer interface {
	SendPaymentConfirmed(ctx context.Context, order *domain.Order) error
	SendOrderCancelled(ctx context.Context, order *domain.Order, reason string) error
	SendRefundIssued(ctx context.Context, order *domain.Order, amount decimal.Decimal) error
}

// DedupCache is the Redis fast path in front of the idempotency ledger: a
// read-through cache, never the source of truth. Best-effort on both
// sides: a cache failure falls through to the authoritative ledger.
type DedupCache interface {
	// Seen reports whether the event key was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	// MarkSeen records the key. Callers mark only after the delivery has
	// settled in the ledger; marking earlier could ack a redelivery whose
	// first processing never completed.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}

// TokenVerifier validates upstream-issued admin bearer tokens. Issuance
// lives in the auth service, out of scope here.
type TokenVerifier interface {
	Verify(tokenString string) (*AdminClaims, error)
}

// AdminClaims holds the parsed admin token claims.
type AdminClaims struct {
	Subject string
	Role    string
}
