package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_UnseenEvent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "bitcoin:evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "unmarked event must read as unseen")
}

func TestDedupStore_MarkThenSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "bitcoin:evt_1", 24*time.Hour))

	// Redelivery
	seen, err := store.Seen(ctx, "bitcoin:evt_1")
	require.NoError(t, err)
	assert.True(t, seen, "marked event must read as seen")
}

func TestDedupStore_DifferentProviders(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	// Same event id from different providers must not collide.
	require.NoError(t, store.MarkSeen(ctx, "bitcoin:evt_1", 24*time.Hour))

	seen, err := store.Seen(ctx, "monero:evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDedupStore_ExpiredKey(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "bitcoin:evt_old", time.Second))

	s.FastForward(2 * time.Second)

	// The ledger still remembers; the cache forgetting is harmless.
	seen, err := store.Seen(ctx, "bitcoin:evt_old")
	require.NoError(t, err)
	assert.False(t, seen)
}
