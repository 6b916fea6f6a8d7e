package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnRequest_Transition_HappyPath(t *testing.T) {
	now := time.Now().UTC()
	r := &ReturnRequest{Status: ReturnStatusPendingReview}

	for _, target := range []ReturnStatus{
		ReturnStatusApproved,
		ReturnStatusItemReceived,
		ReturnStatusProcessingRefund,
		ReturnStatusRefunded,
	} {
		require.NoError(t, r.Transition(target, now))
		assert.Equal(t, target, r.Status)
	}
	assert.True(t, r.IsTerminal())
}

func TestReturnRequest_Transition_RejectRequiresReason(t *testing.T) {
	now := time.Now().UTC()

	r := &ReturnRequest{Status: ReturnStatusPendingReview}
	err := r.Transition(ReturnStatusRejected, now)
	var missing *MissingFieldError
	require.Error(t, err)
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, ReturnStatusPendingReview, r.Status)

	r.RejectionReason = "item not in returnable condition"
	require.NoError(t, r.Transition(ReturnStatusRejected, now))
	assert.Equal(t, ReturnStatusRejected, r.Status)
	assert.True(t, r.IsTerminal())
}

func TestReturnRequest_Transition_ClosedFromAnyNonTerminal(t *testing.T) {
	now := time.Now().UTC()

	for _, from := range []ReturnStatus{
		ReturnStatusPendingReview, ReturnStatusApproved,
		ReturnStatusItemReceived, ReturnStatusProcessingRefund,
	} {
		t.Run(string(from), func(t *testing.T) {
			r := &ReturnRequest{Status: from}
			require.NoError(t, r.Transition(ReturnStatusClosed, now))
			assert.True(t, r.IsTerminal())
		})
	}

	for _, from := range []ReturnStatus{ReturnStatusRejected, ReturnStatusRefunded, ReturnStatusClosed} {
		t.Run(string(from)+" terminal", func(t *testing.T) {
			r := &ReturnRequest{Status: from}
			err := r.Transition(ReturnStatusClosed, now)
			if from == ReturnStatusClosed {
				require.Error(t, err) // self-transition is invalid too
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestReturnRequest_Transition_InvalidMoves(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		from ReturnStatus
		to   ReturnStatus
	}{
		{ReturnStatusPendingReview, ReturnStatusRefunded},
		{ReturnStatusPendingReview, ReturnStatusItemReceived},
		{ReturnStatusApproved, ReturnStatusRefunded},
		{ReturnStatusApproved, ReturnStatusRejected},
		{ReturnStatusRefunded, ReturnStatusClosed},
		{ReturnStatusItemReceived, ReturnStatusApproved},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			r := &ReturnRequest{Status: tt.from, RejectionReason: "x"}
			err := r.Transition(tt.to, now)
			var transErr *TransitionError
			require.Error(t, err)
			assert.ErrorAs(t, err, &transErr)
			assert.Equal(t, tt.from, r.Status)
		})
	}
}

func TestReturnRequest_RefundTotal(t *testing.T) {
	r := &ReturnRequest{
		Items: []ReturnItem{
			{ProductID: "p1", Quantity: 1, Amount: dec("19.99")},
			{ProductID: "p2", Quantity: 2, Amount: dec("45.00")},
		},
	}
	assert.True(t, r.RefundTotal().Equal(dec("64.99")))

	empty := &ReturnRequest{}
	assert.True(t, empty.RefundTotal().IsZero())
}

func TestOrderItem_Subtotal(t *testing.T) {
	item := OrderItem{ProductID: "p1", Quantity: 3, UnitPrice: dec("12.50")}
	assert.True(t, item.Subtotal().Equal(dec("37.50")))
}
