package gateway

import (
	"context"
	"encoding/hex"
	"net/http"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// xmrScale is the piconero precision charges are denominated in.
const xmrScale = 12

// MoneroAdapter implements ports.GatewayAdapter against a hosted Monero
// payment processor. Monero has no per-payment addresses the way Bitcoin
// does; the processor derives an integrated address from the wallet
// address plus a 64-bit payment id, which we derive deterministically from
// the attempt id so a replayed charge creation lands on the same address.
type MoneroAdapter struct {
	processor processorClient
	rates     ports.RateSource
	currency  string
	maxAmount decimal.Decimal
	expiry    time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewMoneroAdapter creates a Monero gateway adapter. A nil clock defaults
// to time.Now.
func NewMoneroAdapter(cfg config.CryptoConfig, storeCurrency string, rates ports.RateSource, clock func() time.Time, log zerolog.Logger) *MoneroAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &MoneroAdapter{
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
func (a *MoneroAdapter) Method() domain.PaymentMethod {
	return domain.PaymentMethodMonero
}

// paymentID derives the 64-bit hex payment id for an attempt: the first 8
// bytes of Keccak-256 over the attempt id, matching how Monero tooling
// derives short payment ids.
func paymentID(attemptID uuid.UUID) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(attemptID[:])
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// CreatePayment opens a charge for the order's fiat total converted to XMR
// at the current cached rate.
func (a *MoneroAdapter) CreatePayment(ctx context.Context, order *domain.Order) (*domain.PaymentAttempt, error) {
	if err := checkAmount(order.Total, a.maxAmount); err != nil {
		return nil, err
	}

	rate, err := a.rates.Rate(ctx, a.currency, "XMR")
	if err != nil {
		return nil, err
	}
	xmrAmount := order.Total.DivRound(rate, xmrScale)

	now := a.now()
	attemptID := uuid.New()
	charge, err := a.processor.createCharge(ctx, attemptID.String(), chargeRequest{
		Currency:         "XMR",
		Amount:           xmrAmount.String(),
		FiatAmount:       order.Total.String(),
		FiatCurrency:     order.Currency,
		PaymentID:        paymentID(attemptID),
		ExpiresInSeconds: int64(a.expiry.Seconds()),
		OrderNumber:      order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Str("order_number", order.OrderNumber).
		Str("charge_id", charge.ID).
		Str("xmr_amount", xmrAmount.String()).
		Str("rate", rate.String()).
		Msg("monero charge created")

	return &domain.PaymentAttempt{
		ID:             attemptID,
		OrderNumber:    order.OrderNumber,
		Gateway:        domain.PaymentMethodMonero,
		ProviderRef:    charge.ID,
		Address:        charge.Address,
		AmountExpected: xmrAmount,
		Currency:       "XMR",
		FiatAmount:     order.Total,
		ExchangeRate:   rate,
		AmountReceived: decimal.Zero,
		State:          domain.AttemptStatePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(a.expiry),
		UpdatedAt:      now,
	}, nil
}

// CaptureOrStatus polls the charge.
func (a *MoneroAdapter) CaptureOrStatus(ctx context.Context, attempt *domain.PaymentAttempt) (*ports.CaptureResult, error) {
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
func (a *MoneroAdapter) VerifyWebhook(_ context.Context, headers http.Header, rawBody []byte) error {
	return a.processor.verifyWebhook(headers, rawBody)
}

// DecodeWebhook normalizes the processor notification.
func (a *MoneroAdapter) DecodeWebhook(rawBody []byte) (*ports.WebhookNotification, error) {
	return a.processor.decodeWebhook(rawBody)
}

// Refund sends XMR back to the payer via the processor.
func (a *MoneroAdapter) Refund(ctx context.Context, req ports.RefundRequest) (string, error) {
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
