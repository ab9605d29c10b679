package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisIdempotencyStore_DefaultPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, "")
	assert.Equal(t, defaultIdempotencyPrefix, store.keyPrefix)

	store = NewRedisIdempotencyStore(client, "till:")
	assert.Equal(t, "till:", store.keyPrefix)
	assert.NoError(t, store.Close())
}

func TestRedisIdempotencyStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	existing, reserved, err := store.Reserve(ctx, "key", "fp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reserve idempotency key")
	assert.False(t, reserved)
	assert.Nil(t, existing)

	err = store.Complete(ctx, "key", Response{Status: http.StatusCreated}, time.Hour)
	assert.ErrorContains(t, err, "failed to store idempotent response")

	err = store.Release(ctx, "key")
	assert.ErrorContains(t, err, "failed to release idempotency key")
}
