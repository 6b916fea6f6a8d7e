package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(status OrderStatus, payment PaymentStatus) *Order {
	return &Order{
		OrderNumber:   "ORD-20260115-AB12CD34",
		Status:        status,
		PaymentStatus: payment,
	}
}

func TestOrder_Transition_Table(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		from    OrderStatus
		payment PaymentStatus
		to      OrderStatus
		wantErr bool
	}{
		{"pending to processing with confirmed payment", OrderStatusPending, PaymentStatusConfirmed, OrderStatusProcessing, false},
		{"pending to cancelled", OrderStatusPending, PaymentStatusAwaiting, OrderStatusCancelled, false},
		{"processing to shipped", OrderStatusProcessing, PaymentStatusConfirmed, OrderStatusShipped, false},
		{"processing to cancelled", OrderStatusProcessing, PaymentStatusConfirmed, OrderStatusCancelled, false},
		{"shipped to out for delivery", OrderStatusShipped, PaymentStatusConfirmed, OrderStatusOutForDelivery, false},
		{"shipped straight to delivered", OrderStatusShipped, PaymentStatusConfirmed, OrderStatusDelivered, false},
		{"out for delivery to delivered", OrderStatusOutForDelivery, PaymentStatusConfirmed, OrderStatusDelivered, false},
		{"delivered to returned", OrderStatusDelivered, PaymentStatusConfirmed, OrderStatusReturned, false},
		{"ship a cancelled order", OrderStatusCancelled, PaymentStatusConfirmed, OrderStatusShipped, true},
		{"delivered back to pending", OrderStatusDelivered, PaymentStatusConfirmed, OrderStatusPending, true},
		{"shipped to cancelled", OrderStatusShipped, PaymentStatusConfirmed, OrderStatusCancelled, true},
		{"pending skips to shipped", OrderStatusPending, PaymentStatusConfirmed, OrderStatusShipped, true},
		{"returned is terminal", OrderStatusReturned, PaymentStatusConfirmed, OrderStatusDelivered, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder(tt.from, tt.payment)
			err := o.Transition(tt.to, "", now)
			if tt.wantErr {
				var transErr *TransitionError
				require.Error(t, err)
				assert.ErrorAs(t, err, &transErr)
				assert.Equal(t, tt.from, o.Status, "failed transition must not mutate state")
				assert.Empty(t, o.StatusHistory)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, o.Status)
				require.Len(t, o.StatusHistory, 1)
				assert.Equal(t, string(tt.to), o.StatusHistory[0].Status)
			}
		})
	}
}

func TestOrder_Transition_ProcessingRequiresConfirmedPayment(t *testing.T) {
	now := time.Now().UTC()

	for _, payment := range []PaymentStatus{PaymentStatusAwaiting, PaymentStatusUnderpaid, PaymentStatusExpired, PaymentStatusFailed} {
		t.Run(string(payment), func(t *testing.T) {
			o := newTestOrder(OrderStatusPending, payment)
			err := o.Transition(OrderStatusProcessing, "", now)
			var gateErr *PaymentGateError
			require.Error(t, err)
			assert.ErrorAs(t, err, &gateErr)
			assert.Equal(t, OrderStatusPending, o.Status)
		})
	}
}

func TestOrder_AdminOverride_BypassesPaymentGate(t *testing.T) {
	now := time.Now().UTC()
	o := newTestOrder(OrderStatusPending, PaymentStatusAwaiting)

	// Manual override ignores the payment sub-state...
	require.NoError(t, o.AdminOverride(OrderStatusProcessing, "manual release", now))
	assert.Equal(t, OrderStatusProcessing, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, "manual release", o.StatusHistory[0].Note)

	// ...but still rejects structurally invalid moves.
	err := o.AdminOverride(OrderStatusPending, "", now)
	var transErr *TransitionError
	require.Error(t, err)
	assert.ErrorAs(t, err, &transErr)
}

func TestOrder_SetPaymentStatus_Monotonic(t *testing.T) {
	now := time.Now().UTC()
	o := newTestOrder(OrderStatusPending, PaymentStatusAwaiting)

	require.NoError(t, o.SetPaymentStatus(PaymentStatusConfirmed, "2 confirmations", now))
	assert.Equal(t, PaymentStatusConfirmed, o.PaymentStatus)

	// Confirmed never regresses; re-applying the same state is a no-op.
	require.NoError(t, o.SetPaymentStatus(PaymentStatusConfirmed, "", now))
	assert.Len(t, o.StatusHistory, 1)

	err := o.SetPaymentStatus(PaymentStatusAwaiting, "", now)
	require.Error(t, err)
	assert.Equal(t, PaymentStatusConfirmed, o.PaymentStatus)
}

func TestOrder_SetPaymentStatus_FailedReArms(t *testing.T) {
	now := time.Now().UTC()
	o := newTestOrder(OrderStatusPending, PaymentStatusAwaiting)

	require.NoError(t, o.SetPaymentStatus(PaymentStatusFailed, "capture declined", now))
	require.NoError(t, o.SetPaymentStatus(PaymentStatusAwaiting, "new session", now))
	assert.Equal(t, PaymentStatusAwaiting, o.PaymentStatus)
}

func TestOrder_SetPaymentStatus_HistoryEntries(t *testing.T) {
	now := time.Now().UTC()
	o := newTestOrder(OrderStatusPending, PaymentStatusAwaiting)

	require.NoError(t, o.SetPaymentStatus(PaymentStatusUnderpaid, "0.009 of 0.01", now))
	require.NoError(t, o.SetPaymentStatus(PaymentStatusConfirmed, "topped up", now))

	require.Len(t, o.StatusHistory, 2)
	assert.Equal(t, "payment_underpaid", o.StatusHistory[0].Status)
	assert.Equal(t, "payment_confirmed", o.StatusHistory[1].Status)
}

func TestOrder_CanCancel(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, true},
		{OrderStatusProcessing, true},
		{OrderStatusShipped, false},
		{OrderStatusOutForDelivery, false},
		{OrderStatusDelivered, false},
		{OrderStatusCancelled, false},
		{OrderStatusReturned, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			o := newTestOrder(tt.status, PaymentStatusConfirmed)
			assert.Equal(t, tt.want, o.CanCancel())
		})
	}
}

func TestOrder_Transition_Totality(t *testing.T) {
	// Every (state, target) pair either transitions or errors; nothing
	// panics and nothing silently no-ops.
	all := []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusReturned,
	}
	now := time.Now().UTC()
	for _, from := range all {
		for _, to := range all {
			o := newTestOrder(from, PaymentStatusConfirmed)
			err := o.Transition(to, "", now)
			if err != nil {
				assert.Equal(t, from, o.Status)
			} else {
				assert.Equal(t, to, o.Status)
				assert.NotEqual(t, from, to, "self-transitions must not be silently allowed")
			}
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in   string
		want PaymentMethod
		ok   bool
	}{
		{"paypal", PaymentMethodPayPal, true},
		{"BITCOIN", PaymentMethodBitcoin, true},
		{"monero", PaymentMethodMonero, true},
		{"cash_on_delivery", PaymentMethodCashOnDelivery, true},
		{"stripe", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePaymentMethod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewOrderNumber(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	n := NewOrderNumber(at)
	assert.Regexp(t, `^ORD-20260115-[0-9A-F-]{8}$`, n)
}
