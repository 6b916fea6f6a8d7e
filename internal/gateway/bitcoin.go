package gateway

import (
	"context"
	"net/http"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// btcScale is the satoshi precision charges are denominated in.
const btcScale = 8

// BitcoinAdapter implements ports.GatewayAdapter against a hosted Bitcoin
// payment processor. Payment creation converts the fiat total through the
// rate source; settlement arrives via HMAC-signed webhooks as blocks
// confirm.
type BitcoinAdapter struct {
	processor processorClient
	rates     ports.RateSource
	currency  string
	maxAmount decimal.Decimal
	expiry    time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewBitcoinAdapter creates a Bitcoin gateway adapter. A nil clock
// defaults to time.Now.
func NewBitcoinAdapter(cfg config.CryptoConfig, storeCurrency string, rates ports.RateSource, clock func() time.Time, log zerolog.Logger) *BitcoinAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &BitcoinAdapter{
		processor: processorClient{
			baseURL:       cfg.BaseURL,
			apiKey:        cfg.APIKey,
			webhookSecret: cfg.WebhookSecret,
			httpClient:    &http.Client{Timeout: cfg.Timeout},
		},
		rates:     rates,
		currency:  storeCurrency,
		maxAmount: cfg.MaxAmountDecimal(),
		expiry:    cfg.SessionExpiry,
		now:       clock,
		log:       log,
	}
}

// Method identifies this adapter's payment method.
func (a *BitcoinAdapter) Method() domain.PaymentMethod {
	return domain.PaymentMethodBitcoin
}

// CreatePayment opens a charge for the order's fiat total converted to BTC
// at the current cached rate. The attempt records the rate used so the
// amount owed never moves after checkout.
func (a *BitcoinAdapter) CreatePayment(ctx context.Context, order *domain.Order) (*domain.PaymentAttempt, error) {
	if err := checkAmount(order.Total, a.maxAmount); err != nil {
		return nil, err
	}

	rate, err := a.rates.Rate(ctx, a.currency, "BTC")
	if err != nil {
		return nil, err
	}
	btcAmount := order.Total.DivRound(rate, btcScale)

	now := a.now()
	attemptID := uuid.New()
	charge, err := a.processor.createCharge(ctx, attemptID.String(), chargeRequest{
		Currency:         "BTC",
		Amount:           btcAmount.String(),
		FiatAmount:       order.Total.String(),
		FiatCurrency:     order.Currency,
		ExpiresInSeconds: int64(a.expiry.Seconds()),
		OrderNumber:      order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Str("order_number", order.OrderNumber).
		Str("charge_id", charge.ID).
		Str("btc_amount", btcAmount.String()).
		Str("rate", rate.String()).
		Msg("bitcoin charge created")

	return &domain.PaymentAttempt{
		ID:             attemptID,
		OrderNumber:    order.OrderNumber,
		Gateway:        domain.PaymentMethodBitcoin,
		ProviderRef:    charge.ID,
		Address:        charge.Address,
		AmountExpected: btcAmount,
		Currency:       "BTC",
		FiatAmount:     order.Total,
		ExchangeRate:   rate,
		AmountReceived: decimal.Zero,
		State:          domain.AttemptStatePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(a.expiry),
		UpdatedAt:      now,
	}, nil
}

// CaptureOrStatus polls the charge. Read-only; callable on any schedule
// for providers whose webhooks are unreliable.
func (a *BitcoinAdapter) CaptureOrStatus(ctx context.Context, attempt *domain.PaymentAttempt) (*ports.CaptureResult, error) {
	status, err := a.processor.getCharge(ctx, attempt.ProviderRef)
	if err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if status.AmountPaid != "" {
		if parsed, err := decimal.NewFromString(status.AmountPaid); err == nil {
			amount = parsed
		}
	}

	return &ports.CaptureResult{
		Accepted:       status.Status == "confirmed",
		DeclineReason:  status.FailureReason,
		ProviderRef:    status.ID,
		AmountReceived: amount,
		Confirmations:  status.Confirmations,
	}, nil
}

// VerifyWebhook checks the processor's HMAC signature over the raw body.
func (a *BitcoinAdapter) VerifyWebhook(_ context.Context, headers http.Header, rawBody []byte) error {
	return a.processor.verifyWebhook(headers, rawBody)
}

// DecodeWebhook normalizes the processor notification.
func (a *BitcoinAdapter) DecodeWebhook(rawBody []byte) (*ports.WebhookNotification, error) {
	return a.processor.decodeWebhook(rawBody)
}

// Refund sends BTC back to the payer via the processor.
func (a *BitcoinAdapter) Refund(ctx context.Context, req ports.RefundRequest) (string, error) {
	resp, err := a.processor.createRefund(ctx, refundRequest{
		ChargeID: req.ProviderRef,
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		Reason:   req.Reason,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// checkAmount enforces the InvalidAmount contract shared by every gateway:
// positive totals only, and under the per-gateway configured cap when one
// is set.
func checkAmount(total, max decimal.Decimal) error {
	if total.LessThanOrEqual(decimal.Zero) {
		return apperror.ErrInvalidAmount()
	}
	if max.IsPositive() && total.GreaterThan(max) {
		return apperror.ErrInvalidAmount()
	}
	return nil
}
