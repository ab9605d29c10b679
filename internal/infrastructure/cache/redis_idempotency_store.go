package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "cas:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// This is suitable for deployments where several instances serve the same tills.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store over an existing client, typically the one
// shared with the entity locker
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Reserve implements IdempotencyStore with SET NX so only one request wins the key
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, fingerprint string) (*Response, bool, error) {
	pending, err := json.Marshal(Response{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return nil, false, err
	}
	redisKey := s.keyPrefix + key

	// A second attempt covers the key expiring between SET NX and GET
	for range 2 {
		ok, err := s.client.SetNX(ctx, redisKey, pending, PendingTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return nil, true, nil
		}

		raw, err := s.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		var stored Response
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, false, fmt.Errorf("corrupt idempotency entry: %w", err)
		}
		return &stored, false, nil
	}
	return nil, false, errors.New("idempotency key kept expiring while reserving")
}

// Complete implements IdempotencyStore
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, resp Response, ttl time.Duration) error {
	resp.Pending = false
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release implements IdempotencyStore
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

var _ IdempotencyStore = (*RedisIdempotencyStore)(nil)
