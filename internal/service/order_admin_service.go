package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderAdminServiceImpl implements ports.OrderAdminService.
type OrderAdminServiceImpl struct {
	orderRepo ports.OrderRepository
	invRepo   ports.InventoryRepository
	mailer    ports.Mailer
	now       func() time.Time
	log       zerolog.Logger
}

// NewOrderAdminService creates a new OrderAdminServiceImpl. A nil clock
// defaults to time.Now.
func NewOrderAdminService(
	orderRepo ports.OrderRepository,
	invRepo ports.InventoryRepository,
	mailer ports.Mailer,
	clock func() time.Time,
	log zerolog.Logger,
) *OrderAdminServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	return &OrderAdminServiceImpl{
		orderRepo: orderRepo,
		invRepo:   invRepo,
		mailer:    mailer,
		now:       clock,
		log:       log,
	}
}

// OverrideStatus applies a manual fulfilment edit. The payment gate is
// bypassed but structurally invalid moves still fail with an explicit
// conflict; a silent no-op would hide operator mistakes.
func (s *OrderAdminServiceImpl) OverrideStatus(ctx context.Context, req ports.StatusOverrideRequest) (*domain.Order, error) {
	var order *domain.Order
	for i := 0; i < maxUpdateRetries; i++ {
		var err error
		order, err = s.orderRepo.GetByNumber(ctx, req.OrderNumber)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
		}
		if order == nil {
			return nil, apperror.ErrNotFound("order")
		}

		now := s.now().UTC()
		if err := order.AdminOverride(req.Target, req.Note, now); err != nil {
			var tErr *domain.TransitionError
			if errors.As(err, &tErr) {
				return nil, apperror.ErrInvalidTransition(tErr.From, tErr.To)
			}
			return nil, apperror.InternalError(err)
		}
		if req.Target == domain.OrderStatusShipped && req.TrackingNumber != nil {
			order.TrackingNumber = req.TrackingNumber
		}

		err = s.orderRepo.Update(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
		}
		if i == maxUpdateRetries-1 {
			return nil, apperror.ErrVersionConflict()
		}
	}

	switch req.Target {
	case domain.OrderStatusShipped:
		// Shipment finalizes the reservation: the stock has left.
		if err := s.invRepo.Consume(ctx, order.OrderNumber); err != nil {
			s.log.Error().Err(err).Str("order_number", order.OrderNumber).Msg("consuming reservation on shipment failed")
		}
	case domain.OrderStatusCancelled:
		released, err := s.invRepo.Release(ctx, order.OrderNumber)
		if err != nil {
			s.log.Error().Err(err).Str("order_number", order.OrderNumber).Msg("releasing stock on cancellation failed")
		} else if released > 0 {
			s.log.Info().Str("order_number", order.OrderNumber).Int("released", released).Msg("stock released on cancellation")
		}
		if err := s.mailer.SendOrderCancelled(ctx, order, req.Note); err != nil {
			s.log.Warn().Err(err).Str("order_number", order.OrderNumber).Msg("cancellation email failed")
		}
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("target", string(req.Target)).
		Str("note", req.Note).
		Msg("admin status override applied")

	return order, nil
}

// ListOrders returns a filtered page of orders for the admin console.
func (s *OrderAdminServiceImpl) ListOrders(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	orders, total, err := s.orderRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, total, nil
}
