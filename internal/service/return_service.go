package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReturnServiceImpl implements ports.ReturnService.
type ReturnServiceImpl struct {
	returnRepo ports.ReturnRepository
	orderRepo  ports.OrderRepository
	gateways   ports.GatewayRegistry
	mailer     ports.Mailer
	now        func() time.Time
	log        zerolog.Logger
}

// NewReturnService creates a new ReturnServiceImpl. A nil clock defaults to
// time.Now.
func NewReturnService(
	returnRepo ports.ReturnRepository,
	orderRepo ports.OrderRepository,
	gateways ports.GatewayRegistry,
	mailer ports.Mailer,
	clock func() time.Time,
	log zerolog.Logger,
) *ReturnServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	return &ReturnServiceImpl{
		returnRepo: returnRepo,
		orderRepo:  orderRepo,
		gateways:   gateways,
		mailer:     mailer,
		now:        clock,
		log:        log,
	}
}

// OpenReturn opens a return for a delivered order. One open return per
// order; the requested items must be a subset of what was actually bought.
func (s *ReturnServiceImpl) OpenReturn(ctx context.Context, req ports.OpenReturnRequest) (*domain.ReturnRequest, error) {
	order, err := s.orderRepo.GetByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status != domain.OrderStatusDelivered {
		return nil, apperror.ErrReturnNotDelivered()
	}

	open, err := s.returnRepo.GetOpenByOrder(ctx, req.OrderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check open return: %w", err))
	}
	if open != nil {
		return nil, apperror.ErrReturnAlreadyOpen()
	}

	if err := validateReturnItems(order, req.Items); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ret := &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderNumber: req.OrderNumber,
		Items:       req.Items,
		Status:      domain.ReturnStatusPendingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ret.RefundTotal().GreaterThan(order.Total) {
		return nil, apperror.Validation("refund total exceeds the order total")
	}

	if err := s.returnRepo.Create(ctx, ret); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create return: %w", err))
	}

	s.log.Info().
		Str("return_id", ret.ID.String()).
		Str("order_number", req.OrderNumber).
		Str("refund_total", ret.RefundTotal().String()).
		Msg("return opened")

	return ret, nil
}

func validateReturnItems(order *domain.Order, items []domain.ReturnItem) error {
	if len(items) == 0 {
		return apperror.Validation("return must contain at least one item")
	}
	ordered := make(map[string]int, len(order.Items))
	for _, it := range order.Items {
		ordered[it.ProductID] = it.Quantity
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return apperror.Validation(fmt.Sprintf("item %s: quantity must be positive", it.ProductID))
		}
		qty, ok := ordered[it.ProductID]
		if !ok {
			return apperror.Validation(fmt.Sprintf("item %s was not part of the order", it.ProductID))
		}
		if it.Quantity > qty {
			return apperror.Validation(fmt.Sprintf("item %s: cannot return more than was bought", it.ProductID))
		}
		if it.Amount.IsNegative() {
			return apperror.Validation(fmt.Sprintf("item %s: negative refund amount", it.ProductID))
		}
	}
	return nil
}

// GetReturn fetches a return by id.
func (s *ReturnServiceImpl) GetReturn(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get return: %w", err))
	}
	if ret == nil {
		return nil, apperror.ErrNotFound("return")
	}
	return ret, nil
}

// Approve moves a pending return into the approved state.
func (s *ReturnServiceImpl) Approve(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error) {
	return s.transition(ctx, id, domain.ReturnStatusApproved, adminNote, "")
}

// Reject closes a pending return with a mandatory reason.
func (s *ReturnServiceImpl) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.ReturnRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.ErrRejectionReasonRequired()
	}
	return s.transition(ctx, id, domain.ReturnStatusRejected, "", reason)
}

// MarkItemReceived records the physical arrival of the returned goods.
func (s *ReturnServiceImpl) MarkItemReceived(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error) {
	return s.transition(ctx, id, domain.ReturnStatusItemReceived, adminNote, "")
}

// Close ends the return without a refund, from any non-terminal state.
func (s *ReturnServiceImpl) Close(ctx context.Context, id uuid.UUID, adminNote string) (*domain.ReturnRequest, error) {
	return s.transition(ctx, id, domain.ReturnStatusClosed, adminNote, "")
}

// IssueRefund calls the order's gateway and only then marks the return
// refunded. A provider rejection leaves the return in processing_refund for
// a retry; the refunded state always means money actually moved.
func (s *ReturnServiceImpl) IssueRefund(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	ret, err := s.GetReturn(ctx, id)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByNumber(ctx, ret.OrderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.PaymentDetails == nil || order.PaymentDetails.Reference == "" {
		return nil, apperror.Validation("order has no provider payment to refund against")
	}

	now := s.now().UTC()
	if ret.Status != domain.ReturnStatusProcessingRefund {
		if err := ret.Transition(domain.ReturnStatusProcessingRefund, now); err != nil {
			return nil, mapReturnTransitionErr(err)
		}
		if err := s.returnRepo.Update(ctx, ret); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update return: %w", err))
		}
	}

	adapter, err := s.gateways.ForMethod(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	total := ret.RefundTotal()
	refundRef, err := adapter.Refund(ctx, ports.RefundRequest{
		ProviderRef: order.PaymentDetails.Reference,
		Amount:      total,
		Currency:    order.Currency,
		Reason:      "return " + ret.ID.String(),
	})
	if err != nil {
		s.log.Error().
			Err(err).
			Str("return_id", ret.ID.String()).
			Str("order_number", ret.OrderNumber).
			Msg("provider refused the refund")
		return nil, err
	}

	ret.RefundProviderRef = refundRef
	if err := ret.Transition(domain.ReturnStatusRefunded, s.now().UTC()); err != nil {
		return nil, mapReturnTransitionErr(err)
	}
	if err := s.returnRepo.Update(ctx, ret); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update return: %w", err))
	}

	if order.CanTransitionTo(domain.OrderStatusReturned) {
		if err := order.Transition(domain.OrderStatusReturned, "refund issued", s.now().UTC()); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark order returned: %w", err))
		}
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
		}
	}

	s.log.Info().
		Str("return_id", ret.ID.String()).
		Str("order_number", ret.OrderNumber).
		Str("refund_ref", refundRef).
		Str("amount", total.String()).
		Msg("refund issued")

	if err := s.mailer.SendRefundIssued(ctx, order, total); err != nil {
		s.log.Warn().Err(err).Str("order_number", ret.OrderNumber).Msg("refund email failed")
	}

	return ret, nil
}

func (s *ReturnServiceImpl) transition(ctx context.Context, id uuid.UUID, target domain.ReturnStatus, adminNote, rejectionReason string) (*domain.ReturnRequest, error) {
	ret, err := s.GetReturn(ctx, id)
	if err != nil {
		return nil, err
	}

	if rejectionReason != "" {
		ret.RejectionReason = rejectionReason
	}
	if err := ret.Transition(target, s.now().UTC()); err != nil {
		return nil, mapReturnTransitionErr(err)
	}
	if adminNote != "" {
		if ret.AdminNotes != "" {
			ret.AdminNotes += "\n"
		}
		ret.AdminNotes += adminNote
	}

	if err := s.returnRepo.Update(ctx, ret); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update return: %w", err))
	}

	s.log.Info().
		Str("return_id", ret.ID.String()).
		Str("order_number", ret.OrderNumber).
		Str("status", string(target)).
		Msg("return transitioned")

	return ret, nil
}

func mapReturnTransitionErr(err error) error {
	var tErr *domain.TransitionError
	if errors.As(err, &tErr) {
		return apperror.ErrInvalidTransition(tErr.From, tErr.To)
	}
	var mErr *domain.MissingFieldError
	if errors.As(err, &mErr) {
		return apperror.ErrRejectionReasonRequired()
	}
	return apperror.InternalError(err)
}
