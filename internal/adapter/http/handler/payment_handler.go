package handler

import (
	"io"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment sessions, the PayPal capture callback and
// provider webhooks.
type PaymentHandler struct {
	checkoutSvc  ports.CheckoutService
	reconcileSvc ports.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(checkoutSvc ports.CheckoutService, reconcileSvc ports.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{checkoutSvc: checkoutSvc, reconcileSvc: reconcileSvc}
}

// CreateSession handles POST /api/v1/orders/:number/payment-session.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		response.Error(c, apperror.ErrUnsupportedGateway(req.Method))
		return
	}

	session, err := h.checkoutSvc.CreatePaymentSession(c.Request.Context(), c.Param("number"), method)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromSession(session))
}

// GetPaymentStatus handles GET /api/v1/orders/:number/payment-status.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	view, err := h.checkoutSvc.GetPaymentStatus(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PaymentStatusResponse{
		PaymentStatus:         string(view.PaymentStatus),
		Confirmations:         view.Confirmations,
		ConfirmationsRequired: view.ConfirmationsRequired,
	})
}

// CapturePayPal handles POST /api/v1/payments/paypal/capture, the redirect
// callback after the customer approves at PayPal.
func (h *PaymentHandler) CapturePayPal(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.reconcileSvc.CapturePayPal(c.Request.Context(), req.OrderNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromOrder(order))
}

// Webhook handles POST /api/v1/webhooks/:provider.
//
// The raw body is passed through untouched: signature verification runs
// over the exact bytes the provider signed. Duplicates and unmatchable
// references are acknowledged so the provider stops retrying; only
// signature failures and infrastructure errors produce error statuses.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	provider, ok := domain.ParsePaymentMethod(c.Param("provider"))
	if !ok {
		response.Error(c, apperror.ErrUnsupportedGateway(c.Param("provider")))
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	outcome, err := h.reconcileSvc.HandleWebhook(c.Request.Context(), provider, c.Request.Header, rawBody)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.WebhookAckResponse{
		Outcome:   outcome.Outcome,
		Duplicate: outcome.Duplicate,
	})
}
