package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/env"
)

const isolatedLockTestRedisDB = 14

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	hosts := []string{env.GetEnv("CACHE_HOST", ""), "cache", "localhost", "127.0.0.1"}
	port := env.GetEnv("CACHE_PORT", "6379")
	password := env.GetEnv("CACHE_PASSWORD", "")

	var lastErr error
	for _, host := range hosts {
		if host == "" {
			continue
		}
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", host, port),
			Password: password,
			DB:       isolatedLockTestRedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		_, err := client.Ping(ctx).Result()
		cancel()
		if err == nil {
			t.Cleanup(func() { _ = client.Close() })
			return client
		}
		_ = client.Close()
		lastErr = err
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	client := testRedisClient(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()
	key := fmt.Sprintf("test:webhook:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), lockKeyPrefix+key) })

	release, ok, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	release()

	release2, ok, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be free after release")
	release2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := testRedisClient(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()
	key := fmt.Sprintf("test:webhook:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), lockKeyPrefix+key) })

	release, ok, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry followed by another holder taking over.
	require.NoError(t, client.Set(ctx, lockKeyPrefix+key, "someone-else", time.Minute).Err())
	release()

	val, err := client.Get(ctx, lockKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestNoopLocker(t *testing.T) {
	release, ok, err := NoopLocker{}.Acquire(context.Background(), "anything", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}
