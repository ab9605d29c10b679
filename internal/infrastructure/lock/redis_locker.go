package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultKeyPrefix = "cas:lock:"
	minBackoff       = 10 * time.Millisecond
	maxBackoff       = 200 * time.Millisecond
	releaseTimeout   = 2 * time.Second
	defaultRedisTTL  = 10 * time.Second
)

// RedisLocker is a Locker shared by every server instance. Each lock is a
// SET NX PX key holding a random token; the TTL frees locks of crashed holders.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLockerWithClient(client, cfg.LockTTL, logger), nil
}

// NewRedisLockerWithClient creates a locker over an existing client
func NewRedisLockerWithClient(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       ttl,
		logger:    logger.Named("redis_locker"),
	}
}

// Acquire implements Locker. It polls with exponential backoff while the key is
// held and fails fast on Redis errors.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	backoff := minBackoff

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("Failed to release lock, it will expire after its TTL",
			zap.String("key", redisKey),
			zap.Duration("ttl", l.ttl),
			zap.Error(err),
		)
	}
}

// Client returns the underlying client so other Redis users can share the connection
func (l *RedisLocker) Client() redis.UniversalClient {
	return l.client
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
