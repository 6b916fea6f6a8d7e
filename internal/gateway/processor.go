package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body,
// keyed with the per-gateway webhook secret.
const SignatureHeader = "X-Webhook-Signature"

// The Bitcoin and Monero gateways are fronted by hosted payment processors
// exposing the same charge-style API: create a charge, get a one-time
// receiving address back, receive webhooks as the chain confirms. The
// processorClient holds what both adapters share; each adapter keeps its
// own currency, rounding scale and address quirks.

type processorClient struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    HTTPClient
}

type chargeRequest struct {
	Currency         string `json:"currency"`
	Amount           string `json:"amount"`
	FiatAmount       string `json:"fiat_amount"`
	FiatCurrency     string `json:"fiat_currency"`
	PaymentID        string `json:"payment_id,omitempty"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
	OrderNumber      string `json:"order_number"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

type chargeStatusResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"` // pending, confirming, confirmed, failed
	AmountPaid    string `json:"amount_paid"`
	Confirmations int    `json:"confirmations"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type refundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // accepted, rejected
}

// processorWebhook is the notification body both processors deliver.
type processorWebhook struct {
	EventID       string `json:"event_id"`
	ChargeID      string `json:"charge_id"`
	Status        string `json:"status"`
	AmountPaid    string `json:"amount_paid"`
	Confirmations int    `json:"confirmations"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (p *processorClient) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// createCharge opens a charge. The idempotency key makes the bounded retry
// inside doJSON safe for this mutating call.
func (p *processorClient) createCharge(ctx context.Context, idempotencyKey string, req chargeRequest) (*chargeResponse, error) {
	headers := p.authHeaders()
	headers["X-Idempotency-Key"] = idempotencyKey

	var resp chargeResponse
	if err := doJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/api/v1/charges", headers, req, &resp, true); err != nil {
		return nil, classifyProviderError(err)
	}
	return &resp, nil
}

// getCharge polls a charge's settlement status. Read-only, safe on any
// schedule.
func (p *processorClient) getCharge(ctx context.Context, chargeID string) (*chargeStatusResponse, error) {
	var resp chargeStatusResponse
	url := p.baseURL + "/api/v1/charges/" + chargeID
	if err := doJSON(ctx, p.httpClient, http.MethodGet, url, p.authHeaders(), nil, &resp, true); err != nil {
		return nil, classifyProviderError(err)
	}
	return &resp, nil
}

// createRefund asks the processor to send funds back to the payer.
func (p *processorClient) createRefund(ctx context.Context, req refundRequest) (*refundResponse, error) {
	headers := p.authHeaders()
	headers["X-Idempotency-Key"] = uuid.NewString()

	var resp refundResponse
	if err := doJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/api/v1/refunds", headers, req, &resp, true); err != nil {
		return nil, apperror.ErrRefundRejected(err)
	}
	if resp.Status != "accepted" {
		return nil, apperror.ErrRefundRejected(fmt.Errorf("refund status %q", resp.Status))
	}
	return &resp, nil
}

// verifyWebhook checks the HMAC signature over the raw body.
func (p *processorClient) verifyWebhook(headers http.Header, rawBody []byte) error {
	presented := headers.Get(SignatureHeader)
	if presented == "" || !verifyHMAC(p.webhookSecret, rawBody, presented) {
		return apperror.ErrInvalidWebhookSignature()
	}
	return nil
}

// decodeWebhook normalizes the processor notification.
func (p *processorClient) decodeWebhook(rawBody []byte) (*ports.WebhookNotification, error) {
	var wh processorWebhook
	if err := json.Unmarshal(rawBody, &wh); err != nil {
		return nil, apperror.Validation("malformed webhook payload")
	}
	if wh.EventID == "" || wh.ChargeID == "" {
		return nil, apperror.Validation("webhook payload missing event_id or charge_id")
	}

	amount := decimal.Zero
	if wh.AmountPaid != "" {
		parsed, err := decimal.NewFromString(wh.AmountPaid)
		if err != nil {
			return nil, apperror.Validation("webhook payload has malformed amount_paid")
		}
		amount = parsed
	}

	return &ports.WebhookNotification{
		EventID:        wh.EventID,
		ProviderRef:    wh.ChargeID,
		AmountReceived: amount,
		Confirmations:  wh.Confirmations,
		Failed:         wh.Status == "failed",
		FailureReason:  wh.FailureReason,
	}, nil
}

// classifyProviderError maps provider call failures onto the taxonomy.
// Network errors, 5xx and auth rejections all surface as the retryable
// GatewayUnavailable; the storefront shows "try again".
func classifyProviderError(err error) error {
	return apperror.ErrGatewayUnavailable(err)
}
