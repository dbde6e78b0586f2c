package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCourtLocker(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	t.Run("mutual exclusion", func(t *testing.T) {
		locker := redisadapter.NewCourtLocker(client, 5*time.Second, time.Second, observability.NopLogger())
		var (
			inside  int32
			maxSeen int32
			wg      sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := locker.WithLock(ctx, 5, func(context.Context) error {
					n := atomic.AddInt32(&inside, 1)
					if n > atomic.LoadInt32(&maxSeen) {
						atomic.StoreInt32(&maxSeen, n)
					}
					time.Sleep(10 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen)
	})

	t.Run("bounded wait", func(t *testing.T) {
		locker := redisadapter.NewCourtLocker(client, 50*time.Millisecond, time.Second, observability.NopLogger())
		held := make(chan struct{})
		release := make(chan struct{})
		go locker.WithLock(ctx, 6, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
		<-held

		err := locker.WithLock(ctx, 6, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, domain.ErrLockTimeout)
		assert.True(t, domain.IsRetryable(err))

		assert.NoError(t, locker.WithLock(ctx, 7, func(context.Context) error { return nil }), "other courts are not blocked")
		close(release)
	})

	t.Run("released after panic", func(t *testing.T) {
		locker := redisadapter.NewCourtLocker(client, 100*time.Millisecond, 10*time.Second, observability.NopLogger())
		func() {
			defer func() { _ = recover() }()
			_ = locker.WithLock(ctx, 8, func(context.Context) error { panic("boom") })
		}()
		assert.NoError(t, locker.WithLock(ctx, 8, func(context.Context) error { return nil }))
	})

	t.Run("lease outlives holder crash only until ttl", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "court-lock:9", "crashed-holder", 150*time.Millisecond).Err())
		locker := redisadapter.NewCourtLocker(client, time.Second, time.Second, observability.NopLogger())
		assert.NoError(t, locker.WithLock(ctx, 9, func(context.Context) error { return nil }))
	})
}

func TestIdempotency(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := redisadapter.NewIdempotency(client)

	ok, err := store.Reserve(ctx, "key-0123456789abcdef", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "key-0123456789abcdef", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	inflight, err := store.Get(ctx, "key-0123456789abcdef")
	require.NoError(t, err)
	assert.Zero(t, inflight.Status)

	require.NoError(t, store.Set(ctx, "key-0123456789abcdef", redisadapter.IdempResponse{Status: 201, Result: []byte(`{"id":"x"}`)}, time.Minute))
	stored, err := store.Get(ctx, "key-0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, 201, stored.Status)

	require.NoError(t, store.Delete(ctx, "key-0123456789abcdef"))
	missing, err := store.Get(ctx, "key-0123456789abcdef")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
