package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
)

// PaymentStatus is the payment sub-state, tracked independently of fulfilment.
type PaymentStatus string

const (
	PaymentStatusAwaiting  PaymentStatus = "awaiting_payment"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusUnderpaid PaymentStatus = "underpaid"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod identifies the gateway an order settles through.
type PaymentMethod string

const (
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBitcoin        PaymentMethod = "bitcoin"
	PaymentMethodMonero         PaymentMethod = "monero"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// ParsePaymentMethod validates a raw method string.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(s)); m {
	case PaymentMethodPayPal, PaymentMethodBitcoin, PaymentMethodMonero, PaymentMethodCashOnDelivery:
		return m, true
	default:
		return "", false
	}
}

// OrderItem is a line item with its price snapshot taken at order creation.
// Later catalogue price changes never alter a placed order.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns quantity x unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusChange is one append-only history entry. Fulfilment transitions log
// the order status; payment sub-state changes log "payment_<state>".
type StatusChange struct {
	Status string    `json:"status"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// PaymentDetails is the gateway-specific blob embedded in the order. The
// shape varies by provider but always carries provider, reference, expected
// and received amounts, and a status string.
type PaymentDetails struct {
	Provider       PaymentMethod   `json:"provider"`
	Reference      string          `json:"reference"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency,omitempty"`
	Address        string          `json:"address,omitempty"`
	RedirectURL    string          `json:"redirect_url,omitempty"`
	Confirmations  int             `json:"confirmations,omitempty"`
}

// Order is the aggregate the reconciliation engine drives. OrderNumber is
// the immutable human-readable identity; Version guards concurrent writes.
type Order struct {
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	CustomerEmail   string          `json:"customer_email"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress string          `json:"shipping_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentDetails  *PaymentDetails `json:"payment_details,omitempty"`
	StatusHistory   []StatusChange  `json:"status_history"`
	TrackingNumber  *string         `json:"tracking_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// fulfilmentTransitions is the closed transition table. Absent targets are
// invalid; both shipped->delivered hops are allowed because carriers skip
// the out-for-delivery scan often enough.
var fulfilmentTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusDelivered},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusReturned},
	OrderStatusCancelled:      {},
	OrderStatusReturned:       {},
}

// paymentTransitions: confirmed and expired are terminal; failed re-arms to
// awaiting when the customer retries with a fresh session; an underpaid
// attempt can still reach full payment or run out its window.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusAwaiting:  {PaymentStatusConfirmed, PaymentStatusUnderpaid, PaymentStatusExpired, PaymentStatusFailed},
	PaymentStatusUnderpaid: {PaymentStatusConfirmed, PaymentStatusExpired},
	PaymentStatusFailed:    {PaymentStatusAwaiting},
	PaymentStatusConfirmed: {},
	PaymentStatusExpired:   {},
}

// CanTransitionTo reports whether the fulfilment move is structurally valid.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return containsStatus(fulfilmentTransitions[o.Status], target)
}

// Transition applies a fulfilment transition. Entering processing requires a
// confirmed payment; every other rule is the structural table. Invalid moves
// return ErrTransition, never a silent no-op.
func (o *Order) Transition(target OrderStatus, note string, at time.Time) error {
	if !o.CanTransitionTo(target) {
		return &TransitionError{From: string(o.Status), To: string(target)}
	}
	if target == OrderStatusProcessing && o.PaymentStatus != PaymentStatusConfirmed {
		return &PaymentGateError{Status: o.PaymentStatus}
	}
	o.apply(target, note, at)
	return nil
}

// AdminOverride applies a manual status edit. It bypasses the payment gate
// but still rejects structurally invalid moves.
func (o *Order) AdminOverride(target OrderStatus, note string, at time.Time) error {
	if !o.CanTransitionTo(target) {
		return &TransitionError{From: string(o.Status), To: string(target)}
	}
	o.apply(target, note, at)
	return nil
}

func (o *Order) apply(target OrderStatus, note string, at time.Time) {
	o.Status = target
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: string(target), Note: note, At: at})
	o.UpdatedAt = at
}

// SetPaymentStatus moves the payment sub-state. The sub-state is monotonic:
// once confirmed or expired it never changes again.
func (o *Order) SetPaymentStatus(target PaymentStatus, note string, at time.Time) error {
	if o.PaymentStatus == target {
		return nil
	}
	if !containsPaymentStatus(paymentTransitions[o.PaymentStatus], target) {
		return &TransitionError{From: string(o.PaymentStatus), To: string(target)}
	}
	o.PaymentStatus = target
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: "payment_" + string(target), Note: note, At: at})
	o.UpdatedAt = at
	return nil
}

// CanCancel reports whether cancellation is still possible. Used as the
// idempotent guard on the expiry path: once the order left pending the
// expiry-driven cancellation becomes a no-op.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// IsTerminal reports whether fulfilment can move no further.
func (o *Order) IsTerminal() bool {
	return len(fulfilmentTransitions[o.Status]) == 0
}

// TransitionError reports an impossible (state, event) pair. It surfaces
// loudly so defects show up in tests instead of vanishing as no-ops.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return "invalid transition: " + e.From + " -> " + e.To
}

// PaymentGateError reports an attempt to start fulfilment before payment.
type PaymentGateError struct {
	Status PaymentStatus
}

func (e *PaymentGateError) Error() string {
	return "payment not confirmed: " + string(e.Status)
}

// NewOrderNumber builds the human-readable order identity.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPaymentStatus(list []PaymentStatus, s PaymentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
