package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tokenSafetyMargin: a cached bearer token is treated as expired this long
// before the provider says so, to avoid losing a race at the boundary.
const tokenSafetyMargin = 60 * time.Second

// PayPal webhook transmission headers.
const (
	headerPayPalTransmissionID   = "Paypal-Transmission-Id"
	headerPayPalTransmissionSig  = "Paypal-Transmission-Sig"
	headerPayPalTransmissionTime = "Paypal-Transmission-Time"
	headerPayPalCertURL          = "Paypal-Cert-Url"
	headerPayPalAuthAlgo         = "Paypal-Auth-Algo"
)

// PayPalAdapter implements ports.GatewayAdapter against the PayPal REST
// API. PayPal is the synchronous gateway: a provider order is created with
// intent CAPTURE, the customer approves it at the redirect URL, and the
// storefront's capture call resolves accepted/declined immediately.
// Webhook verification is delegated to PayPal's own verification endpoint
// (certificate chain plus transmission id), not computed locally.
type PayPalAdapter struct {
	cfg        config.PayPalConfig
	httpClient HTTPClient
	now        func() time.Time
	log        zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayPalAdapter creates a PayPal gateway adapter. A nil clock defaults
// to time.Now.
func NewPayPalAdapter(cfg config.PayPalConfig, clock func() time.Time, log zerolog.Logger) *PayPalAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &PayPalAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        clock,
		log:        log,
	}
}

// Method identifies this adapter's payment method.
func (a *PayPalAdapter) Method() domain.PaymentMethod {
	return domain.PaymentMethodPayPal
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// bearerToken returns the cached OAuth token, refreshing it when it is
// within the safety margin of expiry.
func (a *PayPalAdapter) bearerToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Before(a.tokenExpiry.Add(-tokenSafetyMargin)) {
		return a.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("build token request: %w", err))
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID + ":" + a.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("paypal token: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("paypal token status %d", resp.StatusCode))
	}

	var tr paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("decode paypal token: %w", err))
	}

	a.token = tr.AccessToken
	a.tokenExpiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	return a.token, nil
}

// InvalidateToken drops the cached bearer token so the next call fetches a
// fresh one. Exposed for tests and for recovery after credential rotation.
func (a *PayPalAdapter) InvalidateToken() {
	a.mu.Lock()
	a.token = ""
	a.tokenExpiry = time.Time{}
	a.mu.Unlock()
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalCreateOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

// CreatePayment creates a provider order with intent CAPTURE and returns
// the attempt carrying the approval redirect URL. The PayPal-Request-Id
// idempotency key makes the bounded retry safe.
func (a *PayPalAdapter) CreatePayment(ctx context.Context, order *domain.Order) (*domain.PaymentAttempt, error) {
	if err := checkAmount(order.Total, a.cfg.MaxAmountDecimal()); err != nil {
		return nil, err
	}

	token, err := a.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	attemptID := uuid.New()
	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": attemptID.String(),
	}

	var resp paypalOrderResponse
	err = doJSON(ctx, a.httpClient, http.MethodPost, a.cfg.BaseURL+"/v2/checkout/orders", headers, paypalCreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: order.OrderNumber,
			Amount:      paypalAmount{CurrencyCode: order.Currency, Value: order.Total.StringFixed(2)},
		}},
	}, &resp, true)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	approveURL := ""
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
		}
	}

	a.log.Info().
		Str("order_number", order.OrderNumber).
		Str("paypal_order_id", resp.ID).
		Msg("paypal order created")

	return &domain.PaymentAttempt{
		ID:             attemptID,
		OrderNumber:    order.OrderNumber,
		Gateway:        domain.PaymentMethodPayPal,
		ProviderRef:    resp.ID,
		RedirectURL:    approveURL,
		AmountExpected: order.Total,
		Currency:       order.Currency,
		FiatAmount:     order.Total,
		ExchangeRate:   decimal.NewFromInt(1),
		AmountReceived: decimal.Zero,
		State:          domain.AttemptStatePending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(a.cfg.SessionExpiry),
		UpdatedAt:      now,
	}, nil
}

type paypalCapture struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount paypalAmount `json:"amount"`
}

type paypalCaptureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// CaptureOrStatus performs the explicit capture. The derived idempotency
// key ties retries of the same attempt to one provider-side capture, so a
// redelivered capture call cannot double-charge.
func (a *PayPalAdapter) CaptureOrStatus(ctx context.Context, attempt *domain.PaymentAttempt) (*ports.CaptureResult, error) {
	token, err := a.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": attempt.ID.String() + ":capture",
	}

	var resp paypalCaptureResponse
	err = doJSON(ctx, a.httpClient, http.MethodPost, a.cfg.BaseURL+"/v2/checkout/orders/"+attempt.ProviderRef+"/capture", headers, struct{}{}, &resp, true)
	if err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.Status == http.StatusUnprocessableEntity {
			// 422 is PayPal's decline surface (INSTRUMENT_DECLINED and
			// friends), a resolved outcome rather than an outage.
			return &ports.CaptureResult{Accepted: false, DeclineReason: declineReason(apiErr.Body)}, nil
		}
		return nil, classifyProviderError(err)
	}

	result := &ports.CaptureResult{Accepted: resp.Status == "COMPLETED"}
	if !result.Accepted {
		result.DeclineReason = "capture status " + resp.Status
	}
	for _, pu := range resp.PurchaseUnits {
		for _, capture := range pu.Payments.Captures {
			result.ProviderRef = capture.ID
			if amount, err := decimal.NewFromString(capture.Amount.Value); err == nil {
				result.AmountReceived = amount
			}
		}
	}
	return result, nil
}

// declineReason extracts the issue code from a 422 body, falling back to
// the raw body for admin triage.
func declineReason(body string) string {
	var parsed struct {
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && len(parsed.Details) > 0 {
		return parsed.Details[0].Issue
	}
	return body
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhook calls PayPal's verification endpoint with the transmission
// headers. Anything short of an explicit SUCCESS rejects the payload.
func (a *PayPalAdapter) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error {
	transmissionID := headers.Get(headerPayPalTransmissionID)
	if transmissionID == "" {
		return apperror.ErrInvalidWebhookSignature()
	}

	token, err := a.bearerToken(ctx)
	if err != nil {
		return err
	}

	var resp paypalVerifyResponse
	err = doJSON(ctx, a.httpClient, http.MethodPost, a.cfg.BaseURL+"/v1/notifications/verify-webhook-signature",
		map[string]string{"Authorization": "Bearer " + token},
		paypalVerifyRequest{
			AuthAlgo:         headers.Get(headerPayPalAuthAlgo),
			CertURL:          headers.Get(headerPayPalCertURL),
			TransmissionID:   transmissionID,
			TransmissionSig:  headers.Get(headerPayPalTransmissionSig),
			TransmissionTime: headers.Get(headerPayPalTransmissionTime),
			WebhookID:        a.cfg.WebhookID,
			WebhookEvent:     json.RawMessage(rawBody),
		}, &resp, true)
	if err != nil {
		return classifyProviderError(err)
	}
	if resp.VerificationStatus != "SUCCESS" {
		return apperror.ErrInvalidWebhookSignature()
	}
	return nil
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string       `json:"id"`
		Status            string       `json:"status"`
		Amount            paypalAmount `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// DecodeWebhook normalizes a PayPal event. Capture events reference the
// originating provider order id so the attempt lookup matches what
// CreatePayment stored.
func (a *PayPalAdapter) DecodeWebhook(rawBody []byte) (*ports.WebhookNotification, error) {
	var ev paypalWebhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, apperror.Validation("malformed webhook payload")
	}
	if ev.ID == "" {
		return nil, apperror.Validation("webhook payload missing event id")
	}

	providerRef := ev.Resource.SupplementaryData.RelatedIDs.OrderID
	if providerRef == "" {
		providerRef = ev.Resource.ID
	}

	amount := decimal.Zero
	if ev.Resource.Amount.Value != "" {
		if parsed, err := decimal.NewFromString(ev.Resource.Amount.Value); err == nil {
			amount = parsed
		}
	}

	failed := ev.EventType == "PAYMENT.CAPTURE.DENIED" || ev.EventType == "PAYMENT.CAPTURE.REVERSED"
	notification := &ports.WebhookNotification{
		EventID:        ev.ID,
		ProviderRef:    providerRef,
		AmountReceived: amount,
		Failed:         failed,
	}
	if failed {
		notification.FailureReason = ev.EventType
	}
	return notification, nil
}

type paypalRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund issues a refund against an earlier capture.
func (a *PayPalAdapter) Refund(ctx context.Context, req ports.RefundRequest) (string, error) {
	token, err := a.bearerToken(ctx)
	if err != nil {
		return "", err
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": uuid.NewString(),
	}

	var resp paypalRefundResponse
	err = doJSON(ctx, a.httpClient, http.MethodPost, a.cfg.BaseURL+"/v2/payments/captures/"+req.ProviderRef+"/refund", headers, map[string]any{
		"amount":        paypalAmount{CurrencyCode: req.Currency, Value: req.Amount.StringFixed(2)},
		"note_to_payer": req.Reason,
	}, &resp, true)
	if err != nil {
		return "", apperror.ErrRefundRejected(err)
	}
	if resp.Status != "COMPLETED" && resp.Status != "PENDING" {
		return "", apperror.ErrRefundRejected(fmt.Errorf("refund status %q", resp.Status))
	}
	return resp.ID, nil
}
