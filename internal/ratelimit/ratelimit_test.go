package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRateLimiter_Allow(t *testing.T) {
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
	defer container.Terminate(ctx)

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	rl := NewRateLimiter(redisadapter.NewCache(client))
	fixed := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	rl.now = func() time.Time { return fixed.Add(time.Minute) }
	ok, err = rl.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts fresh")
}
