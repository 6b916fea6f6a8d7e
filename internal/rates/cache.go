package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-payments/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Source fetches a spot rate from an upstream rates provider: units of
// fiat per one whole coin.
type Source interface {
	Fetch(ctx context.Context, fiat, crypto string) (decimal.Decimal, error)
}

type entry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Cache is a TTL cache over a rates Source, implementing ports.RateSource.
// The clock is injected so tests control time instead of sleeping.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// NewCache creates a rate cache. A nil clock defaults to time.Now.
func NewCache(source Source, ttl time.Duration, clock func() time.Time, log zerolog.Logger) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     clock,
		log:     log,
		entries: make(map[string]entry),
	}
}

// Rate returns the cached rate for the pair, fetching from the source when
// the entry is missing or older than the TTL. A stale entry is served as a
// fallback if the refresh fails, so a flapping rates provider does not take
// checkout down with it.
func (c *Cache) Rate(ctx context.Context, fiat, crypto string) (decimal.Decimal, error) {
	key := pairKey(fiat, crypto)
	now := c.now()

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Sub(cached.fetchedAt) < c.ttl {
		return cached.rate, nil
	}

	rate, err := c.source.Fetch(ctx, fiat, crypto)
	if err != nil {
		if ok {
			c.log.Warn().Err(err).Str("pair", key).
				Time("fetched_at", cached.fetchedAt).
				Msg("rate refresh failed, serving stale entry")
			return cached.rate, nil
		}
		return decimal.Zero, apperror.ErrGatewayUnavailable(fmt.Errorf("fetch rate %s: %w", key, err))
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("rate source returned non-positive rate for %s: %s", key, rate))
	}

	c.mu.Lock()
	c.entries[key] = entry{rate: rate, fetchedAt: now}
	c.mu.Unlock()

	return rate, nil
}

// Invalidate drops the cached entry for one pair.
func (c *Cache) Invalidate(fiat, crypto string) {
	c.mu.Lock()
	delete(c.entries, pairKey(fiat, crypto))
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func pairKey(fiat, crypto string) string {
	return fiat + "/" + crypto
}
