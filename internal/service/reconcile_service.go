package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/rs/zerolog"
)

// dedupTTL covers every provider's retry window with room to spare. The
// database ledger remains authoritative beyond it.
const dedupTTL = 48 * time.Hour

// maxUpdateRetries bounds the optimistic-concurrency retry loop. Conflicts
// mean another delivery for the same attempt landed first; re-reading and
// re-evaluating converges because every evaluation is pure.
const maxUpdateRetries = 3

// ReconcileServiceImpl implements ports.ReconciliationService.
type ReconcileServiceImpl struct {
	orderRepo   ports.OrderRepository
	attemptRepo ports.PaymentAttemptRepository
	ledger      ports.WebhookEventRepository
	invRepo     ports.InventoryRepository
	gateways    ports.GatewayRegistry
	dedup       ports.DedupCache
	mailer      ports.Mailer
	batchSize   int
	now         func() time.Time
	log         zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl. A nil clock
// defaults to time.Now.
func NewReconcileService(
	orderRepo ports.OrderRepository,
	attemptRepo ports.PaymentAttemptRepository,
	ledger ports.WebhookEventRepository,
	invRepo ports.InventoryRepository,
	gateways ports.GatewayRegistry,
	dedup ports.DedupCache,
	mailer ports.Mailer,
	batchSize int,
	clock func() time.Time,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileServiceImpl{
		orderRepo:   orderRepo,
		attemptRepo: attemptRepo,
		ledger:      ledger,
		invRepo:     invRepo,
		gateways:    gateways,
		dedup:       dedup,
		mailer:      mailer,
		batchSize:   batchSize,
		now:         clock,
		log:         log,
	}
}

// HandleWebhook verifies, dedups and applies one provider delivery.
//
// The pipeline is: signature check, decode, Redis fast-path dedup, the
// authoritative ledger claim, then the policy evaluation against the
// attempt. Everything after the ledger claim is effectively serialized per
// event id; concurrent deliveries of different events for the same attempt
// are resolved by the optimistic version check on the attempt row.
func (s *ReconcileServiceImpl) HandleWebhook(ctx context.Context, provider domain.PaymentMethod, headers http.Header, rawBody []byte) (*ports.WebhookOutcome, error) {
	adapter, err := s.gateways.ForMethod(provider)
	if err != nil {
		return nil, err
	}

	if err := adapter.VerifyWebhook(ctx, headers, rawBody); err != nil {
		s.log.Warn().
			Str("provider", string(provider)).
			Err(err).
			Msg("webhook signature verification failed")
		return nil, err
	}

	n, err := adapter.DecodeWebhook(rawBody)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dedupKey := string(provider) + ":" + n.EventID

	// Layer 1: Redis fast path, a read-through cache over the ledger.
	// Best-effort; an outage falls through to the ledger.
	seen, err := s.dedup.Seen(ctx, dedupKey)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", n.EventID).Msg("redis dedup check failed, falling through to ledger")
	} else if seen {
		return &ports.WebhookOutcome{Duplicate: true, Outcome: domain.WebhookOutcomeDuplicate}, nil
	}

	// Layer 2: the authoritative ledger claim. The cache is marked only
	// once a delivery has settled here; marking on the way in would let a
	// failed first processing swallow the provider's retry as a duplicate.
	claimed, err := s.ledger.RecordIfNew(ctx, provider, n.EventID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger claim: %w", err))
	}
	if !claimed {
		s.markSeen(ctx, dedupKey, n.EventID)
		return &ports.WebhookOutcome{Duplicate: true, Outcome: domain.WebhookOutcomeDuplicate}, nil
	}

	attempt, err := s.attemptRepo.GetByProviderRef(ctx, provider, n.ProviderRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve provider ref: %w", err))
	}
	if attempt == nil {
		s.log.Warn().
			Str("provider", string(provider)).
			Str("provider_ref", n.ProviderRef).
			Str("event_id", n.EventID).
			Msg("webhook references unknown payment")
		s.setOutcome(ctx, provider, n.EventID, domain.WebhookOutcomeUnknownReference)
		s.markSeen(ctx, dedupKey, n.EventID)
		return &ports.WebhookOutcome{Outcome: domain.WebhookOutcomeUnknownReference}, nil
	}

	outcome, err := s.applyNotification(ctx, attempt, n)
	if err != nil {
		return nil, err
	}

	s.setOutcome(ctx, provider, n.EventID, outcome.Outcome)
	s.markSeen(ctx, dedupKey, n.EventID)
	return outcome, nil
}

// markSeen populates the dedup fast path once a delivery has settled. Best
// effort; a miss just sends the next replay through the ledger.
func (s *ReconcileServiceImpl) markSeen(ctx context.Context, key, eventID string) {
	if err := s.dedup.MarkSeen(ctx, key, dedupTTL); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("redis dedup mark failed")
	}
}

// applyNotification runs the policy against the attempt and drives the
// order, retrying on version conflicts.
func (s *ReconcileServiceImpl) applyNotification(ctx context.Context, attempt *domain.PaymentAttempt, n *ports.WebhookNotification) (*ports.WebhookOutcome, error) {
	var lastErr error
	for i := 0; i < maxUpdateRetries; i++ {
		if i > 0 {
			var err error
			attempt, err = s.attemptRepo.GetByID(ctx, attempt.ID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("reload attempt: %w", err))
			}
			if attempt == nil {
				return nil, apperror.ErrNotFound("payment attempt")
			}
		}

		outcome, err := s.applyOnce(ctx, attempt, n)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		s.log.Debug().
			Str("attempt_id", attempt.ID.String()).
			Int("retry", i+1).
			Msg("concurrent update, retrying webhook application")
	}
	return nil, apperror.InternalError(fmt.Errorf("webhook application kept conflicting: %w", lastErr))
}

func (s *ReconcileServiceImpl) applyOnce(ctx context.Context, attempt *domain.PaymentAttempt, n *ports.WebhookNotification) (*ports.WebhookOutcome, error) {
	now := s.now().UTC()

	// Terminal attempts no longer change; late or replayed notifications
	// are acknowledged and recorded as ignored.
	if attempt.IsTerminal() {
		return &ports.WebhookOutcome{
			Outcome:       domain.WebhookOutcomeIgnored,
			OrderNumber:   attempt.OrderNumber,
			Confirmations: attempt.Confirmations,
		}, nil
	}

	if n.Failed {
		return s.applyProviderFailure(ctx, attempt, n, now)
	}

	if regressed := attempt.ObserveConfirmations(n.Confirmations, now); regressed {
		s.log.Warn().
			Str("attempt_id", attempt.ID.String()).
			Int("stored", attempt.Confirmations).
			Int("incoming", n.Confirmations).
			Msg("confirmation count regression ignored")
	}
	attempt.ObserveAmount(n.AmountReceived, now)

	decision := domain.EvaluatePayment(domain.PolicyInput{
		Confirmations:         attempt.Confirmations,
		ConfirmationsRequired: domain.ConfirmationsRequired(attempt.Gateway),
		AmountReceived:        attempt.AmountReceived,
		AmountExpected:        attempt.AmountExpected,
		Tolerance:             domain.ToleranceFraction,
		ExpiresAt:             attempt.ExpiresAt,
		Now:                   now,
	})

	switch decision {
	case domain.DecisionAccepted:
		return s.applyAccepted(ctx, attempt, decision, now)
	case domain.DecisionUnderpaid:
		return s.applyUnderpaid(ctx, attempt, decision, now)
	case domain.DecisionExpired:
		if err := s.expireAttempt(ctx, attempt, now); err != nil {
			return nil, err
		}
		return &ports.WebhookOutcome{
			Applied:       true,
			Outcome:       domain.WebhookOutcomeApplied,
			OrderNumber:   attempt.OrderNumber,
			Decision:      decision,
			Confirmations: attempt.Confirmations,
		}, nil
	default: // DecisionPendingConfirmation
		if err := s.attemptRepo.Update(ctx, attempt); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				return nil, err
			}
			return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
		}
		s.log.Info().
			Str("order_number", attempt.OrderNumber).
			Int("confirmations", attempt.Confirmations).
			Int("required", domain.ConfirmationsRequired(attempt.Gateway)).
			Msg("payment confirming")
		return &ports.WebhookOutcome{
			Applied:       true,
			Outcome:       domain.WebhookOutcomeApplied,
			OrderNumber:   attempt.OrderNumber,
			Decision:      decision,
			Confirmations: attempt.Confirmations,
		}, nil
	}
}

// applyAccepted settles the attempt, confirms the order's payment and
// starts fulfilment. The payment sub-state transition fires exactly once,
// so fulfilment cannot start twice no matter how deliveries interleave.
func (s *ReconcileServiceImpl) applyAccepted(ctx context.Context, attempt *domain.PaymentAttempt, decision domain.PolicyDecision, now time.Time) (*ports.WebhookOutcome, error) {
	if attempt.AmountReceived.GreaterThan(attempt.AmountExpected) {
		s.log.Warn().
			Str("order_number", attempt.OrderNumber).
			Str("expected", attempt.AmountExpected.String()).
			Str("received", attempt.AmountReceived.String()).
			Msg("overpayment accepted, excess flagged for manual refund")
	}

	if err := attempt.SetState(domain.AttemptStateAccepted, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("accept attempt: %w", err))
	}
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
	}

	order, err := s.loadOrder(ctx, attempt.OrderNumber)
	if err != nil {
		return nil, err
	}

	wasConfirmed := order.PaymentStatus == domain.PaymentStatusConfirmed
	if err := order.SetPaymentStatus(domain.PaymentStatusConfirmed, "payment settled", now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("confirm payment: %w", err))
	}
	if !wasConfirmed && order.Status == domain.OrderStatusPending {
		if err := order.Transition(domain.OrderStatusProcessing, "payment confirmed", now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("start fulfilment: %w", err))
		}
	}
	s.syncPaymentDetails(order, attempt)

	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("gateway", string(attempt.Gateway)).
		Msg("payment confirmed, fulfilment started")

	if !wasConfirmed {
		if err := s.mailer.SendPaymentConfirmed(ctx, order); err != nil {
			s.log.Warn().Err(err).Str("order_number", order.OrderNumber).Msg("payment confirmation email failed")
		}
	}

	return &ports.WebhookOutcome{
		Applied:       true,
		Outcome:       domain.WebhookOutcomeApplied,
		OrderNumber:   order.OrderNumber,
		Decision:      decision,
		Confirmations: attempt.Confirmations,
	}, nil
}

func (s *ReconcileServiceImpl) applyUnderpaid(ctx context.Context, attempt *domain.PaymentAttempt, decision domain.PolicyDecision, now time.Time) (*ports.WebhookOutcome, error) {
	if err := attempt.SetState(domain.AttemptStateUnderpaid, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark attempt underpaid: %w", err))
	}
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
	}

	order, err := s.loadOrder(ctx, attempt.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := order.SetPaymentStatus(domain.PaymentStatusUnderpaid, "partial payment received", now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment underpaid: %w", err))
	}
	s.syncPaymentDetails(order, attempt)
	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("expected", attempt.AmountExpected.String()).
		Str("received", attempt.AmountReceived.String()).
		Msg("underpayment recorded, awaiting top-up")

	return &ports.WebhookOutcome{
		Applied:       true,
		Outcome:       domain.WebhookOutcomeApplied,
		OrderNumber:   order.OrderNumber,
		Decision:      decision,
		Confirmations: attempt.Confirmations,
	}, nil
}

// applyProviderFailure handles a terminal provider-side failure such as a
// reversed capture. The reservation goes back on the shelf; a retry
// session re-reserves before it re-arms the payment.
func (s *ReconcileServiceImpl) applyProviderFailure(ctx context.Context, attempt *domain.PaymentAttempt, n *ports.WebhookNotification, now time.Time) (*ports.WebhookOutcome, error) {
	if err := attempt.SetState(domain.AttemptStateFailed, now); err != nil {
		// An underpaid attempt has no failed edge; the window expiring is
		// what closes it.
		s.log.Warn().
			Str("attempt_id", attempt.ID.String()).
			Str("state", string(attempt.State)).
			Str("reason", n.FailureReason).
			Msg("provider failure for attempt that cannot fail, ignored")
		return &ports.WebhookOutcome{
			Outcome:     domain.WebhookOutcomeIgnored,
			OrderNumber: attempt.OrderNumber,
		}, nil
	}
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
	}

	order, err := s.loadOrder(ctx, attempt.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := order.SetPaymentStatus(domain.PaymentStatusFailed, n.FailureReason, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment failed: %w", err))
	}
	s.syncPaymentDetails(order, attempt)
	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	released, err := s.invRepo.Release(ctx, order.OrderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release stock: %w", err))
	}

	s.log.Warn().
		Str("order_number", order.OrderNumber).
		Str("reason", n.FailureReason).
		Int("reservations_released", released).
		Msg("payment failed at provider")

	return &ports.WebhookOutcome{
		Applied:     true,
		Outcome:     domain.WebhookOutcomeApplied,
		OrderNumber: order.OrderNumber,
	}, nil
}

// CapturePayPal performs the synchronous capture for an order's open
// PayPal attempt. Accepted settles the order; a decline closes the
// attempt and returns its stock, leaving the order retryable with a
// fresh session.
func (s *ReconcileServiceImpl) CapturePayPal(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentMethodPayPal {
		return nil, apperror.Validation("order was not placed with paypal")
	}

	attempt, err := s.attemptRepo.GetOpenByOrder(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get open attempt: %w", err))
	}
	if attempt == nil {
		return nil, apperror.ErrAttemptNotPending()
	}

	now := s.now().UTC()
	if attempt.ExpiredAt(now) {
		if err := s.expireAttempt(ctx, attempt, now); err != nil {
			return nil, err
		}
		return nil, apperror.ErrPaymentExpired()
	}

	adapter, err := s.gateways.ForMethod(domain.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}

	result, err := adapter.CaptureOrStatus(ctx, attempt)
	if err != nil {
		return nil, err
	}

	if !result.Accepted {
		if err := attempt.SetState(domain.AttemptStateFailed, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("fail attempt: %w", err))
		}
		if err := s.attemptRepo.Update(ctx, attempt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
		}
		if err := order.SetPaymentStatus(domain.PaymentStatusFailed, result.DeclineReason, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark payment failed: %w", err))
		}
		s.syncPaymentDetails(order, attempt)
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
		}

		released, err := s.invRepo.Release(ctx, order.OrderNumber)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("release stock: %w", err))
		}

		s.log.Warn().
			Str("order_number", orderNumber).
			Str("reason", result.DeclineReason).
			Int("reservations_released", released).
			Msg("paypal capture declined")
		return nil, apperror.ErrGatewayDeclined(result.DeclineReason)
	}

	attempt.ObserveAmount(result.AmountReceived, now)
	if err := attempt.SetState(domain.AttemptStateAccepted, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("accept attempt: %w", err))
	}
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update attempt: %w", err))
	}

	wasConfirmed := order.PaymentStatus == domain.PaymentStatusConfirmed
	if err := order.SetPaymentStatus(domain.PaymentStatusConfirmed, "paypal capture completed", now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("confirm payment: %w", err))
	}
	if !wasConfirmed && order.Status == domain.OrderStatusPending {
		if err := order.Transition(domain.OrderStatusProcessing, "payment confirmed", now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("start fulfilment: %w", err))
		}
	}
	s.syncPaymentDetails(order, attempt)
	// The capture id is what later refunds reference, not the checkout
	// order id.
	if result.ProviderRef != "" && order.PaymentDetails != nil {
		order.PaymentDetails.Reference = result.ProviderRef
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	s.log.Info().
		Str("order_number", orderNumber).
		Str("capture_id", result.ProviderRef).
		Msg("paypal capture completed")

	if !wasConfirmed {
		if err := s.mailer.SendPaymentConfirmed(ctx, order); err != nil {
			s.log.Warn().Err(err).Str("order_number", orderNumber).Msg("payment confirmation email failed")
		}
	}
	return order, nil
}

// ExpireStalePayments closes out open attempts whose window passed before
// now. Safe to run concurrently with webhook handling: both paths settle
// through the same version-checked updates.
func (s *ReconcileServiceImpl) ExpireStalePayments(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.attemptRepo.ListStale(ctx, now, s.batchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale attempts: %w", err))
	}

	expired := 0
	for i := range stale {
		attempt := &stale[i]
		if err := s.expireAttempt(ctx, attempt, now.UTC()); err != nil {
			s.log.Error().
				Err(err).
				Str("attempt_id", attempt.ID.String()).
				Str("order_number", attempt.OrderNumber).
				Msg("failed to expire stale attempt")
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("stale payment attempts closed")
	}
	return expired, nil
}

// expireAttempt closes one open attempt: the attempt and the order's
// payment sub-state go terminal, the stock reservation is released, and
// the order is cancelled if fulfilment has not moved past the point of no
// return. Every step is idempotent, so a webhook racing the sweep cannot
// double-release.
func (s *ReconcileServiceImpl) expireAttempt(ctx context.Context, attempt *domain.PaymentAttempt, now time.Time) error {
	if err := attempt.SetState(domain.AttemptStateExpired, now); err != nil {
		return apperror.InternalError(fmt.Errorf("expire attempt: %w", err))
	}
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return err
		}
		return apperror.InternalError(fmt.Errorf("update attempt: %w", err))
	}

	order, err := s.loadOrder(ctx, attempt.OrderNumber)
	if err != nil {
		return err
	}
	if err := order.SetPaymentStatus(domain.PaymentStatusExpired, "payment window expired", now); err != nil {
		return apperror.InternalError(fmt.Errorf("expire payment: %w", err))
	}

	released, err := s.invRepo.Release(ctx, order.OrderNumber)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("release stock: %w", err))
	}

	cancelled := false
	if order.CanCancel() {
		if err := order.Transition(domain.OrderStatusCancelled, "payment window expired", now); err != nil {
			return apperror.InternalError(fmt.Errorf("cancel order: %w", err))
		}
		cancelled = true
	}
	s.syncPaymentDetails(order, attempt)
	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return err
		}
		return apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Int("reservations_released", released).
		Bool("cancelled", cancelled).
		Msg("payment attempt expired")

	if cancelled {
		if err := s.mailer.SendOrderCancelled(ctx, order, "payment window expired"); err != nil {
			s.log.Warn().Err(err).Str("order_number", order.OrderNumber).Msg("cancellation email failed")
		}
	}
	return nil
}

func (s *ReconcileServiceImpl) loadOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// syncPaymentDetails mirrors the attempt's observable state onto the order
// for the customer-facing views.
func (s *ReconcileServiceImpl) syncPaymentDetails(order *domain.Order, attempt *domain.PaymentAttempt) {
	if order.PaymentDetails == nil {
		order.PaymentDetails = &domain.PaymentDetails{
			Provider:       attempt.Gateway,
			Reference:      attempt.ProviderRef,
			AmountExpected: attempt.AmountExpected,
			Currency:       attempt.Currency,
			Address:        attempt.Address,
			RedirectURL:    attempt.RedirectURL,
		}
	}
	order.PaymentDetails.AmountReceived = attempt.AmountReceived
	order.PaymentDetails.Confirmations = attempt.Confirmations
	order.PaymentDetails.Status = string(attempt.State)
}

func (s *ReconcileServiceImpl) setOutcome(ctx context.Context, provider domain.PaymentMethod, eventID, outcome string) {
	if err := s.ledger.SetOutcome(ctx, provider, eventID, outcome); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("recording webhook outcome failed")
	}
}
