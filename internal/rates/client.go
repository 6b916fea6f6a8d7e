package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"storefront-payments/config"

	"github.com/shopspring/decimal"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches spot rates from the configured rates API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
}

// NewClient creates a rates API client.
func NewClient(cfg config.RatesConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewClientWithHTTP creates a rates API client with a custom HTTP client.
func NewClientWithHTTP(baseURL string, httpClient HTTPClient) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type rateResponse struct {
	Base   string `json:"base"`
	Symbol string `json:"symbol"`
	Rate   string `json:"rate"`
}

// Fetch retrieves the current rate for one pair: units of fiat per coin.
func (c *Client) Fetch(ctx context.Context, fiat, crypto string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/v1/rates?base=%s&symbol=%s", c.baseURL, url.QueryEscape(fiat), url.QueryEscape(crypto))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rates api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("rates api status %d: %s", resp.StatusCode, string(body))
	}

	var rr rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}

	rate, err := decimal.NewFromString(rr.Rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", rr.Rate, err)
	}
	return rate, nil
}
