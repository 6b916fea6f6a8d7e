package handler

import (
	"context"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnHandler handles the return workflow endpoints. Opening and viewing
// are customer-facing; every transition is admin-only.
type ReturnHandler struct {
	returnSvc ports.ReturnService
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(returnSvc ports.ReturnService) *ReturnHandler {
	return &ReturnHandler{returnSvc: returnSvc}
}

// OpenReturn handles POST /api/v1/returns.
func (h *ReturnHandler) OpenReturn(c *gin.Context) {
	var req dto.OpenReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	items := make([]domain.ReturnItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.ReturnItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Reason:    it.Reason,
			Amount:    it.Amount,
		})
	}

	ret, err := h.returnSvc.OpenReturn(c.Request.Context(), ports.OpenReturnRequest{
		OrderNumber: req.OrderNumber,
		Items:       items,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromReturn(ret))
}

// GetReturn handles GET /api/v1/returns/:id.
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid return id"))
		return
	}

	ret, err := h.returnSvc.GetReturn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromReturn(ret))
}

// Approve handles POST /api/v1/admin/returns/:id/approve.
func (h *ReturnHandler) Approve(c *gin.Context) {
	h.noteTransition(c, h.returnSvc.Approve)
}

// MarkItemReceived handles POST /api/v1/admin/returns/:id/received.
func (h *ReturnHandler) MarkItemReceived(c *gin.Context) {
	h.noteTransition(c, h.returnSvc.MarkItemReceived)
}

// Close handles POST /api/v1/admin/returns/:id/close.
func (h *ReturnHandler) Close(c *gin.Context) {
	h.noteTransition(c, h.returnSvc.Close)
}

// Reject handles POST /api/v1/admin/returns/:id/reject.
func (h *ReturnHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid return id"))
		return
	}

	var req dto.RejectReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrRejectionReasonRequired())
		return
	}

	ret, err := h.returnSvc.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromReturn(ret))
}

// IssueRefund handles POST /api/v1/admin/returns/:id/refund.
func (h *ReturnHandler) IssueRefund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid return id"))
		return
	}

	ret, err := h.returnSvc.IssueRefund(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromReturn(ret))
}

func (h *ReturnHandler) noteTransition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID, note string) (*domain.ReturnRequest, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid return id"))
		return
	}

	var req dto.AdminNoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	ret, err := fn(c.Request.Context(), id, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromReturn(ret))
}
