package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnStatus is the state of a post-delivery return request.
type ReturnStatus string

const (
	ReturnStatusPendingReview    ReturnStatus = "pending_review"
	ReturnStatusApproved         ReturnStatus = "approved"
	ReturnStatusRejected         ReturnStatus = "rejected"
	ReturnStatusItemReceived     ReturnStatus = "item_received"
	ReturnStatusProcessingRefund ReturnStatus = "processing_refund"
	ReturnStatusRefunded         ReturnStatus = "refunded"
	ReturnStatusClosed           ReturnStatus = "closed"
)

// ReturnItem is one returned line item with its reason and refund amount.
type ReturnItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Reason    string          `json:"reason"`
	Amount    decimal.Decimal `json:"amount"`
}

// ReturnRequest is the admin-driven sub-state-machine for post-delivery
// returns. Created by customer action; every later move is an admin
// transition. At most one open return exists per order.
type ReturnRequest struct {
	ID                uuid.UUID    `json:"id"`
	OrderNumber       string       `json:"order_number"`
	Items             []ReturnItem `json:"items"`
	Status            ReturnStatus `json:"status"`
	AdminNotes        string       `json:"admin_notes,omitempty"`
	RejectionReason   string       `json:"rejection_reason,omitempty"`
	RefundProviderRef string       `json:"refund_provider_ref,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// returnTransitions is the closed transition table. closed is reachable
// from every non-terminal state as the administrative override.
var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPendingReview:    {ReturnStatusApproved, ReturnStatusRejected, ReturnStatusClosed},
	ReturnStatusApproved:         {ReturnStatusItemReceived, ReturnStatusClosed},
	ReturnStatusItemReceived:     {ReturnStatusProcessingRefund, ReturnStatusClosed},
	ReturnStatusProcessingRefund: {ReturnStatusRefunded, ReturnStatusClosed},
	ReturnStatusRejected:         {},
	ReturnStatusRefunded:         {},
	ReturnStatusClosed:           {},
}

// IsTerminal reports whether the return can move no further.
func (r *ReturnRequest) IsTerminal() bool {
	return len(returnTransitions[r.Status]) == 0
}

// IsOpen reports whether the return still blocks a new one for the order.
func (r *ReturnRequest) IsOpen() bool {
	return !r.IsTerminal()
}

// Transition applies an admin-driven move. Rejection requires a reason
// recorded before the state is persisted; invalid moves return a
// TransitionError rather than silently no-opping.
func (r *ReturnRequest) Transition(target ReturnStatus, at time.Time) error {
	if !containsReturnStatus(returnTransitions[r.Status], target) {
		return &TransitionError{From: string(r.Status), To: string(target)}
	}
	if target == ReturnStatusRejected && r.RejectionReason == "" {
		return &MissingFieldError{Field: "rejection_reason"}
	}
	r.Status = target
	r.UpdatedAt = at
	return nil
}

// RefundTotal sums the per-item refund amounts.
func (r *ReturnRequest) RefundTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// MissingFieldError reports a transition guard that failed because a
// required field was not supplied.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "required field missing: " + e.Field
}

func containsReturnStatus(list []ReturnStatus, s ReturnStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
