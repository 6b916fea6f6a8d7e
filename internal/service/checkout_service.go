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
	"github.com/shopspring/decimal"
)

// CheckoutServiceImpl implements ports.CheckoutService.
type CheckoutServiceImpl struct {
	orderRepo   ports.OrderRepository
	attemptRepo ports.PaymentAttemptRepository
	invRepo     ports.InventoryRepository
	gateways    ports.GatewayRegistry
	transactor  ports.DBTransactor
	currency    string
	now         func() time.Time
	log         zerolog.Logger
}

// NewCheckoutService creates a new CheckoutServiceImpl. A nil clock
// defaults to time.Now.
func NewCheckoutService(
	orderRepo ports.OrderRepository,
	attemptRepo ports.PaymentAttemptRepository,
	invRepo ports.InventoryRepository,
	gateways ports.GatewayRegistry,
	transactor ports.DBTransactor,
	currency string,
	clock func() time.Time,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	return &CheckoutServiceImpl{
		orderRepo:   orderRepo,
		attemptRepo: attemptRepo,
		invRepo:     invRepo,
		gateways:    gateways,
		transactor:  transactor,
		currency:    currency,
		now:         clock,
		log:         log,
	}
}

// CreateOrder creates an order with its stock reservations in one database
// transaction. Cash on delivery has no settlement step, so its payment
// sub-state is confirmed at creation and fulfilment may start immediately.
func (s *CheckoutServiceImpl) CreateOrder(ctx context.Context, req ports.CreateOrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperror.Validation(fmt.Sprintf("item %s: quantity must be positive", item.ProductID))
		}
		if item.UnitPrice.LessThan(decimal.Zero) {
			return nil, apperror.Validation(fmt.Sprintf("item %s: negative unit price", item.ProductID))
		}
		subtotal = subtotal.Add(item.Subtotal())
	}

	now := s.now().UTC()
	order := &domain.Order{
		OrderNumber:     domain.NewOrderNumber(now),
		UserID:          req.UserID,
		CustomerEmail:   req.CustomerEmail,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		Subtotal:        subtotal,
		Tax:             req.Tax,
		Shipping:        req.Shipping,
		Total:           subtotal.Add(req.Tax).Add(req.Shipping),
		Currency:        s.currency,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusAwaiting,
		PaymentMethod:   req.PaymentMethod,
		StatusHistory:   []domain.StatusChange{{Status: string(domain.OrderStatusPending), At: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	if req.PaymentMethod == domain.PaymentMethodCashOnDelivery {
		if err := order.SetPaymentStatus(domain.PaymentStatusConfirmed, "cash on delivery", now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("confirm cod payment: %w", err))
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.invRepo.Reserve(ctx, dbTx, order.OrderNumber, order.Items); err != nil {
		if errors.Is(err, ports.ErrInsufficientStock) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, apperror.InternalError(fmt.Errorf("reserve stock: %w", err))
	}
	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("payment_method", string(order.PaymentMethod)).
		Str("total", order.Total.String()).
		Msg("order created")

	return order, nil
}

// GetOrder fetches an order by its public number.
func (s *CheckoutServiceImpl) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// CreatePaymentSession opens a gateway session for an order awaiting
// payment. One open session per order: a second request while the first is
// unexpired is rejected rather than silently replaced.
func (s *CheckoutServiceImpl) CreatePaymentSession(ctx context.Context, orderNumber string, method domain.PaymentMethod) (*ports.PaymentSession, error) {
	order, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if method != order.PaymentMethod {
		return nil, apperror.Validation(fmt.Sprintf("order was placed with %s", order.PaymentMethod))
	}
	// A failed payment re-arms on retry; any other non-awaiting sub-state
	// means there is nothing left to pay. The failure returned the order's
	// stock, so the retry must win it again before a session opens.
	rearmed := false
	if order.PaymentStatus == domain.PaymentStatusFailed {
		if err := s.reReserve(ctx, order); err != nil {
			return nil, err
		}
		if err := order.SetPaymentStatus(domain.PaymentStatusAwaiting, "payment retry", s.now().UTC()); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("re-arm payment: %w", err))
		}
		rearmed = true
	}
	// A partial payment is already held against the open attempt's address;
	// opening another session would orphan those funds.
	if order.PaymentStatus == domain.PaymentStatusUnderpaid {
		return nil, apperror.ErrUnderpaid()
	}
	if order.PaymentStatus != domain.PaymentStatusAwaiting {
		return nil, apperror.ErrAttemptNotPending()
	}

	open, err := s.attemptRepo.GetOpenByOrder(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check open attempt: %w", err))
	}
	if open != nil && !open.ExpiredAt(s.now().UTC()) {
		return nil, apperror.ErrOpenPaymentSession()
	}

	adapter, err := s.gateways.ForMethod(method)
	if err != nil {
		return nil, err
	}

	attempt, err := adapter.CreatePayment(ctx, order)
	if err != nil {
		// Without an open attempt nothing would ever sweep the retry's
		// re-reserved stock, so undo it here.
		if rearmed {
			s.releaseRetryReservation(ctx, order.OrderNumber)
		}
		return nil, err
	}
	attempt.Version = 1

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if rearmed {
			s.releaseRetryReservation(ctx, order.OrderNumber)
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment attempt: %w", err))
	}

	order.PaymentDetails = &domain.PaymentDetails{
		Provider:       method,
		Reference:      attempt.ProviderRef,
		AmountExpected: attempt.AmountExpected,
		AmountReceived: decimal.Zero,
		Status:         string(attempt.State),
		Currency:       attempt.Currency,
		Address:        attempt.Address,
		RedirectURL:    attempt.RedirectURL,
	}
	order.UpdatedAt = s.now().UTC()
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("attach payment details: %w", err))
	}

	s.log.Info().
		Str("order_number", orderNumber).
		Str("gateway", string(method)).
		Str("provider_ref", attempt.ProviderRef).
		Time("expires_at", attempt.ExpiresAt).
		Msg("payment session created")

	return &ports.PaymentSession{
		AttemptID:         attempt.ID,
		ProviderReference: attempt.ProviderRef,
		Address:           attempt.Address,
		RedirectURL:       attempt.RedirectURL,
		AmountDue:         attempt.AmountExpected,
		Currency:          attempt.Currency,
		ExpiresAt:         attempt.ExpiresAt,
	}, nil
}

// reReserve rebuilds the stock reservation for a payment retry. Releasing
// first keeps the reservation at exactly one set of rows even if an
// earlier retry died between reserving and opening its session.
func (s *CheckoutServiceImpl) reReserve(ctx context.Context, order *domain.Order) error {
	if _, err := s.invRepo.Release(ctx, order.OrderNumber); err != nil {
		return apperror.InternalError(fmt.Errorf("release stale reservation: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.invRepo.Reserve(ctx, dbTx, order.OrderNumber, order.Items); err != nil {
		if errors.Is(err, ports.ErrInsufficientStock) {
			return apperror.Validation(err.Error())
		}
		return apperror.InternalError(fmt.Errorf("re-reserve stock: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// releaseRetryReservation undoes a retry's re-reserve when no session
// opened against it. Best effort; a later retry releases stale rows
// before reserving again.
func (s *CheckoutServiceImpl) releaseRetryReservation(ctx context.Context, orderNumber string) {
	if _, err := s.invRepo.Release(ctx, orderNumber); err != nil {
		s.log.Warn().Err(err).Str("order_number", orderNumber).Msg("releasing retry reservation failed")
	}
}

// GetPaymentStatus returns the coarse payment view the storefront polls.
func (s *CheckoutServiceImpl) GetPaymentStatus(ctx context.Context, orderNumber string) (*ports.PaymentStatusView, error) {
	order, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	view := &ports.PaymentStatusView{
		PaymentStatus:         order.PaymentStatus,
		ConfirmationsRequired: domain.ConfirmationsRequired(order.PaymentMethod),
	}

	attempt, err := s.attemptRepo.GetOpenByOrder(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get open attempt: %w", err))
	}
	if attempt != nil {
		view.Confirmations = attempt.Confirmations
	} else if order.PaymentDetails != nil {
		// Settled attempts no longer list as open; the snapshot on the
		// order carries the final count.
		view.Confirmations = order.PaymentDetails.Confirmations
	}
	return view, nil
}
