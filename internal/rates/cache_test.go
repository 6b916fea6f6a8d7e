package rates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *stubSource) Fetch(_ context.Context, _, _ string) (decimal.Decimal, error) {
	s.calls++
	return s.rate, s.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time            { return c.now }
func (c *fakeClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }

func TestCache_Rate_CachesWithinTTL(t *testing.T) {
	src := &stubSource{rate: decimal.NewFromInt(45000)}
	clock := &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	cache := NewCache(src, 5*time.Minute, clock.Now, zerolog.Nop())

	rate, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(45000)))
	assert.Equal(t, 1, src.calls)

	clock.Advance(4 * time.Minute)
	_, err = cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "within TTL: no refetch")

	clock.Advance(2 * time.Minute)
	_, err = cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "past TTL: refetched")
}

func TestCache_Rate_PairsAreIndependent(t *testing.T) {
	src := &stubSource{rate: decimal.NewFromInt(150)}
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(src, time.Minute, clock.Now, zerolog.Nop())

	_, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	_, err = cache.Rate(context.Background(), "GBP", "XMR")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCache_Rate_ServesStaleOnRefreshFailure(t *testing.T) {
	src := &stubSource{rate: decimal.NewFromInt(45000)}
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(src, time.Minute, clock.Now, zerolog.Nop())

	_, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	src.err = errors.New("rates api down")

	rate, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(45000)))
}

func TestCache_Rate_ColdMissFailurePropagates(t *testing.T) {
	src := &stubSource{err: errors.New("rates api down")}
	cache := NewCache(src, time.Minute, nil, zerolog.Nop())

	_, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.Error(t, err)
}

func TestCache_Invalidate_ForcesRefetch(t *testing.T) {
	src := &stubSource{rate: decimal.NewFromInt(45000)}
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(src, time.Hour, clock.Now, zerolog.Nop())

	_, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)

	cache.Invalidate("GBP", "BTC")
	_, err = cache.Rate(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCache_Rate_RejectsNonPositiveRate(t *testing.T) {
	src := &stubSource{rate: decimal.Zero}
	cache := NewCache(src, time.Minute, nil, zerolog.Nop())

	_, err := cache.Rate(context.Background(), "GBP", "BTC")
	require.Error(t, err)
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rates", r.URL.Path)
		assert.Equal(t, "GBP", r.URL.Query().Get("base"))
		assert.Equal(t, "BTC", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"base":"GBP","symbol":"BTC","rate":"45000"}`)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	rate, err := client.Fetch(context.Background(), "GBP", "BTC")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(45000)))
}

func TestClient_Fetch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, srv.Client())
	_, err := client.Fetch(context.Background(), "GBP", "BTC")
	require.Error(t, err)
}
