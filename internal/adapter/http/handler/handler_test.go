package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/core/ports/mocks"
	"storefront-payments/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		OrderNumber:   "ORD-20260115-AAAA1111",
		UserID:        "user-1",
		CustomerEmail: "customer@example.com",
		Items: []domain.OrderItem{
			{ProductID: "prod-1", Name: "Keyboard", Quantity: 2, UnitPrice: decimal.NewFromInt(80)},
		},
		Subtotal:      decimal.NewFromInt(160),
		Total:         decimal.NewFromInt(160),
		Currency:      "GBP",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusAwaiting,
		PaymentMethod: domain.PaymentMethodBitcoin,
		StatusHistory: []domain.StatusChange{{Status: "pending", At: now}},
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- Order Handler Tests ---

func TestCreateOrder_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewOrderHandler(mockCheckout)

	mockCheckout.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(sampleOrder(), nil)

	body := dto.CreateOrderRequest{
		UserID:          "user-1",
		CustomerEmail:   "customer@example.com",
		ShippingAddress: "1 High Street, London",
		PaymentMethod:   "bitcoin",
		Items: []dto.OrderItemRequest{
			{ProductID: "prod-1", Name: "Keyboard", Quantity: 2, UnitPrice: decimal.NewFromInt(80)},
		},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/orders", body)

	h.CreateOrder(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ORD-20260115-AAAA1111", data["order_number"])
	assert.Equal(t, "awaiting_payment", data["payment_status"])
}

func TestCreateOrder_UnsupportedMethod(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewOrderHandler(mocks.NewMockCheckoutService(ctrl))

	body := dto.CreateOrderRequest{
		UserID:          "user-1",
		CustomerEmail:   "customer@example.com",
		ShippingAddress: "1 High Street, London",
		PaymentMethod:   "stripe",
		Items: []dto.OrderItemRequest{
			{ProductID: "prod-1", Name: "Keyboard", Quantity: 1, UnitPrice: decimal.NewFromInt(80)},
		},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/orders", body)

	h.CreateOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "GWY_003")
}

func TestCreateOrder_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewOrderHandler(mocks.NewMockCheckoutService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/orders", map[string]any{})

	h.CreateOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VAL_001")
}

func TestGetOrder_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewOrderHandler(mockCheckout)

	mockCheckout.EXPECT().GetOrder(gomock.Any(), "ORD-20260115-MISSING1").
		Return(nil, apperror.ErrNotFound("order"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-20260115-MISSING1", nil)
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-MISSING1"}}

	h.GetOrder(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ORD_002")
}

// --- Payment Handler Tests ---

func TestCreateSession_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewPaymentHandler(mockCheckout, mocks.NewMockReconciliationService(ctrl))

	attemptID := uuid.New()
	mockCheckout.EXPECT().
		CreatePaymentSession(gomock.Any(), "ORD-20260115-AAAA1111", domain.PaymentMethodBitcoin).
		Return(&ports.PaymentSession{
			AttemptID:         attemptID,
			ProviderReference: "chg_btc_1",
			Address:           "bc1qexampleaddress",
			AmountDue:         decimal.RequireFromString("0.004"),
			Currency:          "BTC",
			ExpiresAt:         time.Now().Add(15 * time.Minute),
		}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/orders/ORD-20260115-AAAA1111/payment-session",
		dto.CreateSessionRequest{Method: "bitcoin"})
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-AAAA1111"}}

	h.CreateSession(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, attemptID.String(), data["attempt_id"])
	assert.Equal(t, "bc1qexampleaddress", data["address"])
}

func TestCreateSession_OpenConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewPaymentHandler(mockCheckout, mocks.NewMockReconciliationService(ctrl))

	mockCheckout.EXPECT().
		CreatePaymentSession(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrOpenPaymentSession())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/orders/ORD-20260115-AAAA1111/payment-session",
		dto.CreateSessionRequest{Method: "bitcoin"})
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-AAAA1111"}}

	h.CreateSession(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PAY_005")
}

func TestGetPaymentStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewPaymentHandler(mockCheckout, mocks.NewMockReconciliationService(ctrl))

	mockCheckout.EXPECT().GetPaymentStatus(gomock.Any(), "ORD-20260115-AAAA1111").
		Return(&ports.PaymentStatusView{
			PaymentStatus:         domain.PaymentStatusAwaiting,
			Confirmations:         1,
			ConfirmationsRequired: 2,
		}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-20260115-AAAA1111/payment-status", nil)
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-AAAA1111"}}

	h.GetPaymentStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "awaiting_payment", data["payment_status"])
	assert.Equal(t, float64(1), data["confirmations"])
	assert.Equal(t, float64(2), data["confirmations_required"])
}

func TestCapturePayPal_Declined(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mocks.NewMockCheckoutService(ctrl), mockReconcile)

	mockReconcile.EXPECT().CapturePayPal(gomock.Any(), "ORD-20260115-AAAA1111").
		Return(nil, apperror.ErrGatewayDeclined("INSTRUMENT_DECLINED"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/payments/paypal/capture",
		dto.CaptureRequest{OrderNumber: "ORD-20260115-AAAA1111"})

	h.CapturePayPal(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "GWY_002")
}

func TestWebhook_Applied(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mocks.NewMockCheckoutService(ctrl), mockReconcile)

	rawBody := []byte(`{"id":"evt-1"}`)
	mockReconcile.EXPECT().
		HandleWebhook(gomock.Any(), domain.PaymentMethodBitcoin, gomock.Any(), rawBody).
		Return(&ports.WebhookOutcome{Applied: true, Outcome: domain.WebhookOutcomeApplied}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bitcoin", bytes.NewReader(rawBody))
	c.Params = gin.Params{{Key: "provider", Value: "bitcoin"}}

	h.Webhook(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"applied"`)
}

func TestWebhook_DuplicateStillAcked(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mocks.NewMockCheckoutService(ctrl), mockReconcile)

	mockReconcile.EXPECT().
		HandleWebhook(gomock.Any(), domain.PaymentMethodMonero, gomock.Any(), gomock.Any()).
		Return(&ports.WebhookOutcome{Duplicate: true, Outcome: domain.WebhookOutcomeDuplicate}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/monero", bytes.NewReader([]byte(`{}`)))
	c.Params = gin.Params{{Key: "provider", Value: "monero"}}

	h.Webhook(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReconcile := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mocks.NewMockCheckoutService(ctrl), mockReconcile)

	mockReconcile.EXPECT().
		HandleWebhook(gomock.Any(), domain.PaymentMethodBitcoin, gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInvalidWebhookSignature())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bitcoin", bytes.NewReader([]byte(`{}`)))
	c.Params = gin.Params{{Key: "provider", Value: "bitcoin"}}

	h.Webhook(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_001")
}

func TestWebhook_UnknownProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockCheckoutService(ctrl), mocks.NewMockReconciliationService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	c.Params = gin.Params{{Key: "provider", Value: "stripe"}}

	h.Webhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "GWY_003")
}

// --- Admin Handler Tests ---

func TestOverrideStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockOrderAdminService(ctrl)
	h := NewAdminHandler(mockAdmin)

	shipped := sampleOrder()
	shipped.Status = domain.OrderStatusShipped
	tracking := "RM123456789GB"
	mockAdmin.EXPECT().OverrideStatus(gomock.Any(), ports.StatusOverrideRequest{
		OrderNumber:    "ORD-20260115-AAAA1111",
		Target:         domain.OrderStatusShipped,
		Note:           "picked up by carrier",
		TrackingNumber: &tracking,
	}).Return(shipped, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/api/v1/admin/orders/ORD-20260115-AAAA1111/status",
		dto.OverrideStatusRequest{Status: "shipped", Note: "picked up by carrier", TrackingNumber: &tracking})
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-AAAA1111"}}

	h.OverrideStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"shipped"`)
}

func TestOverrideStatus_InvalidTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockOrderAdminService(ctrl)
	h := NewAdminHandler(mockAdmin)

	mockAdmin.EXPECT().OverrideStatus(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInvalidTransition("delivered", "processing"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/api/v1/admin/orders/ORD-20260115-AAAA1111/status",
		dto.OverrideStatusRequest{Status: "processing"})
	c.Params = gin.Params{{Key: "number", Value: "ORD-20260115-AAAA1111"}}

	h.OverrideStatus(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ORD_001")
}

func TestListOrders_Filters(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockOrderAdminService(ctrl)
	h := NewAdminHandler(mockAdmin)

	status := domain.OrderStatusPending
	mockAdmin.EXPECT().
		ListOrders(gomock.Any(), ports.OrderListParams{Status: &status, Page: 2, PageSize: 10}).
		Return([]domain.Order{*sampleOrder()}, int64(11), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=pending&page=2&page_size=10", nil)

	h.ListOrders(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["page"])
}

// --- Return Handler Tests ---

func TestRejectReturn_MissingReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewReturnHandler(mocks.NewMockReturnService(ctrl))

	id := uuid.New()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/admin/returns/"+id.String()+"/reject", map[string]any{})
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Reject(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RET_003")
}

func TestOpenReturn(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReturns := mocks.NewMockReturnService(ctrl)
	h := NewReturnHandler(mockReturns)

	ret := &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260115-AAAA1111",
		Items: []domain.ReturnItem{
			{ProductID: "prod-1", Quantity: 1, Reason: "faulty", Amount: decimal.NewFromInt(80)},
		},
		Status: domain.ReturnStatusPendingReview,
	}
	mockReturns.EXPECT().OpenReturn(gomock.Any(), gomock.Any()).Return(ret, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/returns", dto.OpenReturnRequest{
		OrderNumber: "ORD-20260115-AAAA1111",
		Items: []dto.ReturnItemRequest{
			{ProductID: "prod-1", Quantity: 1, Reason: "faulty", Amount: decimal.NewFromInt(80)},
		},
	})

	h.OpenReturn(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "pending_review")
}

func TestGetReturn_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewReturnHandler(mocks.NewMockReturnService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/returns/not-a-uuid", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	h.GetReturn(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health Check ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}
