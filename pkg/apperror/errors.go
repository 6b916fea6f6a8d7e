package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Gateway (GWY) ----

// ErrGatewayUnavailable marks a transient provider failure. Callers may retry
// with backoff; the storefront shows "try again".
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GWY_001", "Payment provider temporarily unavailable", http.StatusBadGateway, err)
}

func ErrGatewayDeclined(reason string) *AppError {
	return New("GWY_002", fmt.Sprintf("Payment declined: %s", reason), http.StatusPaymentRequired)
}

func ErrUnsupportedGateway(method string) *AppError {
	return New("GWY_003", fmt.Sprintf("Unsupported payment method: %s", method), http.StatusBadRequest)
}

func ErrRefundRejected(err error) *AppError {
	return Wrap("GWY_004", "Provider rejected the refund", http.StatusBadGateway, err)
}

// ---- Payment Reconciliation (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Invalid amount", http.StatusBadRequest)
}

// ErrPaymentExpired is a policy outcome, not a system fault: the attempt's
// window closed before the required confirmations arrived.
func ErrPaymentExpired() *AppError {
	return New("PAY_002", "Payment window expired", http.StatusGone)
}

// ErrUnderpaid reports a business condition; the order stays pending awaiting
// a top-up or manual resolution.
func ErrUnderpaid() *AppError {
	return New("PAY_003", "Payment received is below the amount due", http.StatusUnprocessableEntity)
}

func ErrAttemptNotPending() *AppError {
	return New("PAY_004", "Payment attempt is no longer open", http.StatusConflict)
}

func ErrOpenPaymentSession() *AppError {
	return New("PAY_005", "An unexpired payment session already exists for this order", http.StatusConflict)
}

// ---- Orders (ORD) ----

// ErrInvalidTransition reports an impossible (state, event) pair reaching
// the state machine. It surfaces loudly instead of no-opping.
func ErrInvalidTransition(from, to string) *AppError {
	return New("ORD_001", fmt.Sprintf("Invalid status transition: %s -> %s", from, to), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("ORD_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrVersionConflict() *AppError {
	return New("ORD_003", "Order was modified concurrently", http.StatusConflict)
}

// ---- Returns (RET) ----

func ErrReturnAlreadyOpen() *AppError {
	return New("RET_001", "An open return already exists for this order", http.StatusConflict)
}

func ErrReturnNotDelivered() *AppError {
	return New("RET_002", "Returns are only accepted for delivered orders", http.StatusConflict)
}

func ErrRejectionReasonRequired() *AppError {
	return New("RET_003", "Rejecting a return requires a reason", http.StatusBadRequest)
}

// ---- Security (SEC) ----

// ErrInvalidWebhookSignature is security-relevant: callers must log it before
// discarding the payload.
func ErrInvalidWebhookSignature() *AppError {
	return New("SEC_001", "Webhook signature verification failed", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request-validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
