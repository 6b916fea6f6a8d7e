package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	maxCallAttempts = 3
	baseBackoff     = 200 * time.Millisecond
)

// apiError is a non-2xx provider response. Status 5xx is transient and
// retried; 4xx is returned to the caller as-is.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Body)
}

// transient reports whether the error is worth another attempt.
func transient(err error) bool {
	if apiErr, ok := err.(*apiError); ok {
		return apiErr.Status >= 500
	}
	// Network-level failures (no response at all) are transient.
	return true
}

// doJSON performs one JSON round-trip against a provider with bounded
// retries and exponential backoff. Callers must only set retryable=true
// for calls that are read-only or carry an idempotency key: a retried
// unkeyed capture could double-charge.
func doJSON(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, reqBody any, out any, retryable bool) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempts := 1
	if retryable {
		attempts = maxCallAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = doOnce(ctx, client, method, url, headers, payload, out)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func doOnce(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &apiError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// signHMAC computes the hex HMAC-SHA256 the crypto processors use for
// webhook payloads.
func signHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyHMAC compares a presented signature against the expected one in
// constant time.
func verifyHMAC(secret string, payload []byte, presented string) bool {
	expected := signHMAC(secret, payload)
	return hmac.Equal([]byte(expected), []byte(presented))
}
