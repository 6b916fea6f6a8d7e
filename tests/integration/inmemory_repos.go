package integration

import (
	"context"
	"sync"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// In-memory repo implementations backing the end-to-end tests. They mirror
// the postgres repos' contracts, including the optimistic version checks,
// so the services under test behave exactly as they do against the real
// storage layer.

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[string]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	cp.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	if o.PaymentDetails != nil {
		details := *o.PaymentDetails
		cp.PaymentDetails = &details
	}
	if o.TrackingNumber != nil {
		tn := *o.TrackingNumber
		cp.TrackingNumber = &tn
	}
	return &cp
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderNumber] = copyOrder(order)
	return nil
}

func (r *inMemoryOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderNumber]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (r *inMemoryOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.OrderNumber]
	if !ok || stored.Version != order.Version {
		return ports.ErrVersionConflict
	}
	order.Version++
	r.orders[order.OrderNumber] = copyOrder(order)
	return nil
}

func (r *inMemoryOrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Order
	for _, o := range r.orders {
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		if params.PaymentStatus != nil && o.PaymentStatus != *params.PaymentStatus {
			continue
		}
		if params.Method != nil && o.PaymentMethod != *params.Method {
			continue
		}
		if params.UserID != nil && o.UserID != *params.UserID {
			continue
		}
		result = append(result, *copyOrder(o))
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Order{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Attempt Repo ---

type inMemoryAttemptRepo struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]*domain.PaymentAttempt
}

func newInMemoryAttemptRepo() *inMemoryAttemptRepo {
	return &inMemoryAttemptRepo{attempts: make(map[uuid.UUID]*domain.PaymentAttempt)}
}

func copyAttempt(a *domain.PaymentAttempt) *domain.PaymentAttempt {
	cp := *a
	return &cp
}

func (r *inMemoryAttemptRepo) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (r *inMemoryAttemptRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	return copyAttempt(a), nil
}

func (r *inMemoryAttemptRepo) GetByProviderRef(ctx context.Context, gateway domain.PaymentMethod, providerRef string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attempts {
		if a.Gateway == gateway && a.ProviderRef == providerRef {
			return copyAttempt(a), nil
		}
	}
	return nil, nil
}

func (r *inMemoryAttemptRepo) GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attempts {
		if a.OrderNumber == orderNumber && a.IsOpen() {
			return copyAttempt(a), nil
		}
	}
	return nil, nil
}

func (r *inMemoryAttemptRepo) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.attempts[attempt.ID]
	if !ok || stored.Version != attempt.Version {
		return ports.ErrVersionConflict
	}
	attempt.Version++
	r.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (r *inMemoryAttemptRepo) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []domain.PaymentAttempt
	for _, a := range r.attempts {
		if a.IsOpen() && now.After(a.ExpiresAt) {
			stale = append(stale, *copyAttempt(a))
		}
		if len(stale) == limit {
			break
		}
	}
	return stale, nil
}

// --- In-Memory Webhook Event Ledger ---

type ledgerKey struct {
	provider domain.PaymentMethod
	eventID  string
}

type inMemoryWebhookLedger struct {
	mu     sync.Mutex
	events map[ledgerKey]*domain.WebhookEvent
}

func newInMemoryWebhookLedger() *inMemoryWebhookLedger {
	return &inMemoryWebhookLedger{events: make(map[ledgerKey]*domain.WebhookEvent)}
}

func (r *inMemoryWebhookLedger) RecordIfNew(ctx context.Context, provider domain.PaymentMethod, externalEventID string, receivedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ledgerKey{provider: provider, eventID: externalEventID}
	if _, ok := r.events[key]; ok {
		return false, nil
	}
	r.events[key] = &domain.WebhookEvent{
		Provider:        provider,
		ExternalEventID: externalEventID,
		ReceivedAt:      receivedAt,
		Outcome:         domain.WebhookOutcomeReceived,
	}
	return true, nil
}

func (r *inMemoryWebhookLedger) SetOutcome(ctx context.Context, provider domain.PaymentMethod, externalEventID string, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[ledgerKey{provider: provider, eventID: externalEventID}]; ok {
		ev.Outcome = outcome
	}
	return nil
}

func (r *inMemoryWebhookLedger) outcome(provider domain.PaymentMethod, eventID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[ledgerKey{provider: provider, eventID: eventID}]; ok {
		return ev.Outcome
	}
	return ""
}

// --- In-Memory Return Repo ---

type inMemoryReturnRepo struct {
	mu      sync.RWMutex
	returns map[uuid.UUID]*domain.ReturnRequest
}

func newInMemoryReturnRepo() *inMemoryReturnRepo {
	return &inMemoryReturnRepo{returns: make(map[uuid.UUID]*domain.ReturnRequest)}
}

func copyReturn(ret *domain.ReturnRequest) *domain.ReturnRequest {
	cp := *ret
	cp.Items = append([]domain.ReturnItem(nil), ret.Items...)
	return &cp
}

func (r *inMemoryReturnRepo) Create(ctx context.Context, ret *domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returns[ret.ID] = copyReturn(ret)
	return nil
}

func (r *inMemoryReturnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret, ok := r.returns[id]
	if !ok {
		return nil, nil
	}
	return copyReturn(ret), nil
}

func (r *inMemoryReturnRepo) GetOpenByOrder(ctx context.Context, orderNumber string) (*domain.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ret := range r.returns {
		if ret.OrderNumber == orderNumber && ret.IsOpen() {
			return copyReturn(ret), nil
		}
	}
	return nil, nil
}

func (r *inMemoryReturnRepo) Update(ctx context.Context, ret *domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.returns[ret.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.returns[ret.ID] = copyReturn(ret)
	return nil
}

// --- In-Memory Inventory Repo ---

type inMemoryReservation struct {
	productID string
	quantity  int
	released  bool
}

type inMemoryInventoryRepo struct {
	mu           sync.Mutex
	levels       map[string]*domain.InventoryLevel
	reservations map[string][]*inMemoryReservation
}

func newInMemoryInventoryRepo() *inMemoryInventoryRepo {
	return &inMemoryInventoryRepo{
		levels:       make(map[string]*domain.InventoryLevel),
		reservations: make(map[string][]*inMemoryReservation),
	}
}

func (r *inMemoryInventoryRepo) seed(productID string, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[productID] = &domain.InventoryLevel{ProductID: productID, Available: available}
}

func (r *inMemoryInventoryRepo) Reserve(ctx context.Context, tx pgx.Tx, orderNumber string, items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		level, ok := r.levels[item.ProductID]
		if !ok || level.Available < item.Quantity {
			return ports.ErrInsufficientStock
		}
	}
	for _, item := range items {
		level := r.levels[item.ProductID]
		level.Available -= item.Quantity
		level.Reserved += item.Quantity
		r.reservations[orderNumber] = append(r.reservations[orderNumber], &inMemoryReservation{
			productID: item.ProductID,
			quantity:  item.Quantity,
		})
	}
	return nil
}

func (r *inMemoryInventoryRepo) Release(ctx context.Context, orderNumber string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	for _, res := range r.reservations[orderNumber] {
		if res.released {
			continue
		}
		res.released = true
		level := r.levels[res.productID]
		level.Available += res.quantity
		level.Reserved -= res.quantity
		released++
	}
	return released, nil
}

func (r *inMemoryInventoryRepo) Consume(ctx context.Context, orderNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations[orderNumber] {
		if res.released {
			continue
		}
		res.released = true
		r.levels[res.productID].Reserved -= res.quantity
	}
	return nil
}

func (r *inMemoryInventoryRepo) GetLevel(ctx context.Context, productID string) (*domain.InventoryLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[productID]
	if !ok {
		return nil, nil
	}
	cp := *level
	return &cp, nil
}

// --- Recording Mailer ---

type sentMail struct {
	kind        string
	orderNumber string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{}
}

func (m *recordingMailer) SendPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	m.record("payment_confirmed", order.OrderNumber)
	return nil
}

func (m *recordingMailer) SendOrderCancelled(ctx context.Context, order *domain.Order, reason string) error {
	m.record("order_cancelled", order.OrderNumber)
	return nil
}

func (m *recordingMailer) SendRefundIssued(ctx context.Context, order *domain.Order, amount decimal.Decimal) error {
	m.record("refund_issued", order.OrderNumber)
	return nil
}

func (m *recordingMailer) record(kind, orderNumber string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, orderNumber: orderNumber})
}

func (m *recordingMailer) count(kind, orderNumber string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind && s.orderNumber == orderNumber {
			n++
		}
	}
	return n
}

// --- Fixed Rate Source ---

type fixedRates struct {
	rate decimal.Decimal
}

func (f fixedRates) Rate(ctx context.Context, fiat, crypto string) (decimal.Decimal, error) {
	return f.rate, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *noopTx) Conn() *pgx.Conn                                               { return nil }
