package handler

import (
	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles the customer-facing order endpoints.
type OrderHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(checkoutSvc ports.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutSvc: checkoutSvc}
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		response.Error(c, apperror.ErrUnsupportedGateway(req.PaymentMethod))
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	order, err := h.checkoutSvc.CreateOrder(c.Request.Context(), ports.CreateOrderRequest{
		UserID:          req.UserID,
		CustomerEmail:   req.CustomerEmail,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		Tax:             req.Tax,
		Shipping:        req.Shipping,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromOrder(order))
}

// GetOrder handles GET /api/v1/orders/:number.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.checkoutSvc.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromOrder(order))
}
