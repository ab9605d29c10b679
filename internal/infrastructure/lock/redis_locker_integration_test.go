//go:build integration

package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLocker_Container(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLockerWithClient(client, 5*time.Second, nil)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "debtor-1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx, "debtor-1")
	require.ErrorIs(t, err, ErrLockTimeout)

	release()
	exists, err := client.Exists(ctx, defaultKeyPrefix+"debtor-1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	again, err := locker.Acquire(ctx, "debtor-1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLockerWithClient(client, 50*time.Millisecond, nil)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "stock-1")
	require.NoError(t, err)

	// the lock expires and another holder takes it
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, client.Set(ctx, defaultKeyPrefix+"stock-1", "other", time.Minute).Err())

	release()
	value, err := client.Get(ctx, defaultKeyPrefix+"stock-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "other", value)
}
