package ports

import (
	"context"
	"net/http"

	"storefront-payments/internal/core/domain"

	"github.com/shopspring/decimal"
)

// GatewayAdapter is the uniform contract over the closed set of payment
// providers. Dispatch is by the order's payment method through a Registry;
// each implementation keeps its provider's quirks to itself.
type GatewayAdapter interface {
	// Method identifies which payment method this adapter serves.
	Method() domain.PaymentMethod

	// CreatePayment opens a gateway session for the order and returns the
	// populated attempt (provider reference, address or redirect URL,
	// expiry). Fails with InvalidAmount for non-positive or over-limit
	// totals and GatewayUnavailable on network/auth failure.
	CreatePayment(ctx context.Context, order *domain.Order) (*domain.PaymentAttempt, error)

	// CaptureOrStatus resolves the attempt against the provider. For
	// PayPal this is the explicit capture call; for the crypto gateways it
	// is a status poll. Safe to invoke repeatedly: capture carries an
	// idempotency key and polling is read-only.
	CaptureOrStatus(ctx context.Context, attempt *domain.PaymentAttempt) (*CaptureResult, error)

	// VerifyWebhook checks payload authenticity before anything touches
	// state. A non-nil error means the payload must be rejected and the
	// failure logged as security-relevant.
	VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error

	// DecodeWebhook normalizes a verified provider payload so the
	// reconciliation flow stays provider-agnostic.
	DecodeWebhook(rawBody []byte) (*WebhookNotification, error)

	// Refund asks the provider to return funds against an earlier payment
	// and returns the provider's refund reference on acceptance.
	Refund(ctx context.Context, req RefundRequest) (string, error)
}

// GatewayRegistry resolves the adapter serving a payment method. Fails
// with UnsupportedGateway for methods that have no adapter.
type GatewayRegistry interface {
	ForMethod(method domain.PaymentMethod) (GatewayAdapter, error)
}

// CaptureResult is the outcome of CaptureOrStatus.
type CaptureResult struct {
	Accepted       bool
	DeclineReason  string
	ProviderRef    string
	AmountReceived decimal.Decimal
	Confirmations  int
}

// WebhookNotification is a provider payload reduced to the fields the
// reconciliation flow needs.
type WebhookNotification struct {
	EventID        string
	ProviderRef    string
	AmountReceived decimal.Decimal
	Confirmations  int
	// Failed marks a terminal provider-side failure (e.g. a reversed
	// capture); FailureReason carries the provider's wording for admins.
	Failed        bool
	FailureReason string
}

// RefundRequest holds validated input for refund issuance.
type RefundRequest struct {
	ProviderRef string
	Amount      decimal.Decimal
	Currency    string
	Reason      string
}

// RateSource supplies fiat to crypto conversion rates: units of fiat per
// one whole coin. The exchange-rate cache implements this; the crypto
// adapters consume it.
type RateSource interface {
	Rate(ctx context.Context, fiat, crypto string) (decimal.Decimal, error)
}
