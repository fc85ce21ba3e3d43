package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := setupRedis(t)
	ctx := context.Background()
	store := NewWithClient(client, "test", time.Minute)

	require.NoError(t, store.Ping(ctx))

	t.Run("GetQuote misses for unknown symbols", func(t *testing.T) {
		_, _, ok, err := store.GetQuote(ctx, "NOPE")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetQuote round trips price and time with a TTL", func(t *testing.T) {
		at := time.Date(2026, 1, 14, 15, 30, 0, 0, time.UTC)
		require.NoError(t, store.SetQuote(ctx, "AAPL", decimal.RequireFromString("151.2500"), at))

		price, gotAt, ok, err := store.GetQuote(ctx, "AAPL")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, price.Equal(decimal.RequireFromString("151.25")))
		assert.Equal(t, at, gotAt)

		ttl, err := client.TTL(ctx, "test:quote:AAPL").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("SetQuote keeps the newer quote when bars arrive out of order", func(t *testing.T) {
		newer := time.Date(2026, 1, 14, 16, 0, 0, 0, time.UTC)
		older := newer.Add(-24 * time.Hour)
		require.NoError(t, store.SetQuote(ctx, "MSFT", decimal.RequireFromString("410"), newer))
		require.NoError(t, store.SetQuote(ctx, "MSFT", decimal.RequireFromString("395"), older))

		price, gotAt, ok, err := store.GetQuote(ctx, "MSFT")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, price.Equal(decimal.RequireFromString("410")), "got %s", price)
		assert.Equal(t, newer, gotAt)

		later := newer.Add(time.Minute)
		require.NoError(t, store.SetQuote(ctx, "MSFT", decimal.RequireFromString("411.5"), later))
		price, gotAt, _, err = store.GetQuote(ctx, "MSFT")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString("411.5")))
		assert.Equal(t, later, gotAt)
	})

	t.Run("SetQuote without a TTL does not expire", func(t *testing.T) {
		persistent := NewWithClient(client, "persist", 0)
		require.NoError(t, persistent.SetQuote(ctx, "AAPL", decimal.RequireFromString("150"), time.Now()))

		ttl, err := client.TTL(ctx, "persist:quote:AAPL").Result()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(-1), ttl)
	})

	t.Run("SaveAdditions replaces previous counts", func(t *testing.T) {
		require.NoError(t, store.SaveAdditions(ctx, map[string]int{"AAPL": 2, "MSFT": 0}))
		require.NoError(t, store.SaveAdditions(ctx, map[string]int{"AAPL": 1}))

		counts, err := store.LoadAdditions(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"AAPL": 1}, counts)
	})

	t.Run("SaveAdditions with nothing clears the hash", func(t *testing.T) {
		require.NoError(t, store.SaveAdditions(ctx, nil))

		counts, err := store.LoadAdditions(ctx)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})
}
