package handler

import (
	"strconv"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles the admin order endpoints.
type AdminHandler struct {
	adminSvc ports.OrderAdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc ports.OrderAdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

// ListOrders handles GET /api/v1/admin/orders.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	params := ports.OrderListParams{}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if v := c.Query("status"); v != "" {
		status := domain.OrderStatus(v)
		params.Status = &status
	}
	if v := c.Query("payment_status"); v != "" {
		status := domain.PaymentStatus(v)
		params.PaymentStatus = &status
	}
	if v := c.Query("method"); v != "" {
		method, ok := domain.ParsePaymentMethod(v)
		if !ok {
			response.Error(c, apperror.ErrUnsupportedGateway(v))
			return
		}
		params.Method = &method
	}
	if v := c.Query("user_id"); v != "" {
		params.UserID = &v
	}

	orders, total, err := h.adminSvc.ListOrders(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.OrderListResponse{
		Orders:   make([]dto.OrderResponse, 0, len(orders)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, dto.FromOrder(&orders[i]))
	}
	response.OK(c, resp)
}

// OverrideStatus handles PUT /api/v1/admin/orders/:number/status.
func (h *AdminHandler) OverrideStatus(c *gin.Context) {
	var req dto.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.adminSvc.OverrideStatus(c.Request.Context(), ports.StatusOverrideRequest{
		OrderNumber:    c.Param("number"),
		Target:         domain.OrderStatus(req.Status),
		Note:           req.Note,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromOrder(order))
}
