package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStoreClaimsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "upload"))
	assert.ErrorIs(t, store.CheckAndInsert(ctx, "abc", "upload"), ErrIdempotencyConflict)
	assert.NoError(t, store.CheckAndInsert(ctx, "abc", "export"), "modules do not share keys")

	require.NoError(t, store.Delete(ctx, "abc", "upload"))
	assert.NoError(t, store.CheckAndInsert(ctx, "abc", "upload"))

	mr.FastForward(2 * time.Hour)
	assert.NoError(t, store.CheckAndInsert(ctx, "abc", "upload"), "claims expire")
}

func TestIdempotencyStoreRejectsBlankInput(t *testing.T) {
	var nilStore *IdempotencyStore
	assert.Error(t, nilStore.CheckAndInsert(context.Background(), "k", "m"))
	assert.NoError(t, nilStore.Delete(context.Background(), "k", "m"))

	store := NewIdempotencyStore(nil, 0)
	assert.Equal(t, DefaultIdempotencyTTL, store.ttl)
	assert.Error(t, store.CheckAndInsert(context.Background(), "", "m"))
	assert.Error(t, store.CheckAndInsert(context.Background(), "k", ""))
}
