package dto

import (
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/shopspring/decimal"
)

// OrderItemRequest is one line item at checkout. Unit prices are the
// caller's snapshot of the catalogue price.
type OrderItemRequest struct {
	ProductID string          `json:"product_id" binding:"required,max=64"`
	Name      string          `json:"name" binding:"required,max=200"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

// CreateOrderRequest is the request body for order creation.
type CreateOrderRequest struct {
	UserID          string             `json:"user_id" binding:"required,max=64"`
	CustomerEmail   string             `json:"customer_email" binding:"required,email"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" binding:"required,max=500"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	Tax             decimal.Decimal    `json:"tax"`
	Shipping        decimal.Decimal    `json:"shipping"`
}

// CreateSessionRequest is the request body for opening a payment session.
type CreateSessionRequest struct {
	Method string `json:"method" binding:"required"`
}

// CaptureRequest is the request body for the PayPal capture callback.
type CaptureRequest struct {
	OrderNumber string `json:"order_number" binding:"required"`
}

// OverrideStatusRequest is the admin request body for a manual status edit.
type OverrideStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	Note           string  `json:"note" binding:"max=500"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// ReturnItemRequest is one returned line item.
type ReturnItemRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	Reason    string          `json:"reason" binding:"required,max=500"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// OpenReturnRequest is the request body for opening a return.
type OpenReturnRequest struct {
	OrderNumber string              `json:"order_number" binding:"required"`
	Items       []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

// RejectReturnRequest carries the mandatory rejection reason.
type RejectReturnRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// AdminNoteRequest carries an optional admin note for a return transition.
type AdminNoteRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// PaymentDetailsResponse mirrors the gateway blob on the order.
type PaymentDetailsResponse struct {
	Provider       string          `json:"provider"`
	Reference      string          `json:"reference"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency,omitempty"`
	Address        string          `json:"address,omitempty"`
	RedirectURL    string          `json:"redirect_url,omitempty"`
	Confirmations  int             `json:"confirmations,omitempty"`
}

// StatusChangeResponse is one history entry.
type StatusChangeResponse struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	At     string `json:"at"`
}

// OrderResponse is the customer-facing order view.
type OrderResponse struct {
	OrderNumber     string                  `json:"order_number"`
	UserID          string                  `json:"user_id"`
	CustomerEmail   string                  `json:"customer_email"`
	Items           []domain.OrderItem      `json:"items"`
	ShippingAddress string                  `json:"shipping_address"`
	Subtotal        decimal.Decimal         `json:"subtotal"`
	Tax             decimal.Decimal         `json:"tax"`
	Shipping        decimal.Decimal         `json:"shipping"`
	Total           decimal.Decimal         `json:"total"`
	Currency        string                  `json:"currency"`
	Status          string                  `json:"status"`
	PaymentStatus   string                  `json:"payment_status"`
	PaymentMethod   string                  `json:"payment_method"`
	PaymentDetails  *PaymentDetailsResponse `json:"payment_details,omitempty"`
	StatusHistory   []StatusChangeResponse  `json:"status_history"`
	TrackingNumber  *string                 `json:"tracking_number,omitempty"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
}

// FromOrder converts a domain order to its response DTO.
func FromOrder(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		CustomerEmail:   o.CustomerEmail,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Currency:        o.Currency,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
	if o.PaymentDetails != nil {
		resp.PaymentDetails = &PaymentDetailsResponse{
			Provider:       string(o.PaymentDetails.Provider),
			Reference:      o.PaymentDetails.Reference,
			AmountExpected: o.PaymentDetails.AmountExpected,
			AmountReceived: o.PaymentDetails.AmountReceived,
			Status:         o.PaymentDetails.Status,
			Currency:       o.PaymentDetails.Currency,
			Address:        o.PaymentDetails.Address,
			RedirectURL:    o.PaymentDetails.RedirectURL,
			Confirmations:  o.PaymentDetails.Confirmations,
		}
	}
	for _, sc := range o.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusChangeResponse{
			Status: sc.Status,
			Note:   sc.Note,
			At:     sc.At.Format(time.RFC3339),
		})
	}
	return resp
}

// PaymentSessionResponse is what the checkout UI needs to send the
// customer to the provider.
type PaymentSessionResponse struct {
	AttemptID         string          `json:"attempt_id"`
	ProviderReference string          `json:"provider_reference"`
	Address           string          `json:"address,omitempty"`
	RedirectURL       string          `json:"redirect_url,omitempty"`
	AmountDue         decimal.Decimal `json:"amount_due"`
	Currency          string          `json:"currency"`
	ExpiresAt         string          `json:"expires_at"`
}

// FromSession converts a payment session to its response DTO.
func FromSession(s *ports.PaymentSession) PaymentSessionResponse {
	return PaymentSessionResponse{
		AttemptID:         s.AttemptID.String(),
		ProviderReference: s.ProviderReference,
		Address:           s.Address,
		RedirectURL:       s.RedirectURL,
		AmountDue:         s.AmountDue,
		Currency:          s.Currency,
		ExpiresAt:         s.ExpiresAt.Format(time.RFC3339),
	}
}

// PaymentStatusResponse is the coarse polling view.
type PaymentStatusResponse struct {
	PaymentStatus         string `json:"payment_status"`
	Confirmations         int    `json:"confirmations"`
	ConfirmationsRequired int    `json:"confirmations_required"`
}

// WebhookAckResponse is the body returned to the provider.
type WebhookAckResponse struct {
	Outcome   string `json:"outcome"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// OrderListResponse wraps the paginated admin order listing.
type OrderListResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ReturnResponse is the return-request view.
type ReturnResponse struct {
	ID                string              `json:"id"`
	OrderNumber       string              `json:"order_number"`
	Items             []domain.ReturnItem `json:"items"`
	Status            string              `json:"status"`
	AdminNotes        string              `json:"admin_notes,omitempty"`
	RejectionReason   string              `json:"rejection_reason,omitempty"`
	RefundProviderRef string              `json:"refund_provider_ref,omitempty"`
	RefundTotal       decimal.Decimal     `json:"refund_total"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
}

// FromReturn converts a domain return to its response DTO.
func FromReturn(r *domain.ReturnRequest) ReturnResponse {
	return ReturnResponse{
		ID:                r.ID.String(),
		OrderNumber:       r.OrderNumber,
		Items:             r.Items,
		Status:            string(r.Status),
		AdminNotes:        r.AdminNotes,
		RejectionReason:   r.RejectionReason,
		RefundProviderRef: r.RefundProviderRef,
		RefundTotal:       r.RefundTotal(),
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
	}
}
