package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSharedState(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	state := NewRedisSharedState(client)
	ctx := context.Background()

	t.Run("RateLimitWithinWindow", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := state.CheckRateLimit(ctx, "client-a", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := state.CheckRateLimit(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("RateLimitWindowExpires", func(t *testing.T) {
		allowed, err := state.CheckRateLimit(ctx, "client-b", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _ = state.CheckRateLimit(ctx, "client-b", 1, time.Minute)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)

		allowed, err = state.CheckRateLimit(ctx, "client-b", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("RateLimitKeysIndependent", func(t *testing.T) {
		_, err := state.CheckRateLimit(ctx, "client-c", 1, time.Minute)
		require.NoError(t, err)

		allowed, err := state.CheckRateLimit(ctx, "client-d", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("MarkProcessedDedup", func(t *testing.T) {
		first, err := state.MarkProcessed(ctx, "notif-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, first)

		again, err := state.MarkProcessed(ctx, "notif-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("ClearProcessedAllowsRetry", func(t *testing.T) {
		first, err := state.MarkProcessed(ctx, "notif-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, first)

		require.NoError(t, state.ClearProcessed(ctx, "notif-3"))

		first, err = state.MarkProcessed(ctx, "notif-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, first)
	})

	t.Run("MarkProcessedExpires", func(t *testing.T) {
		first, err := state.MarkProcessed(ctx, "notif-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, first)

		s.FastForward(2 * time.Minute)

		first, err = state.MarkProcessed(ctx, "notif-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, first)
	})
}

func TestRedisSharedState_NilClient(t *testing.T) {
	state := NewRedisSharedState(nil)
	ctx := context.Background()

	_, err := state.CheckRateLimit(ctx, "x", 1, time.Minute)
	assert.Error(t, err)

	_, err = state.MarkProcessed(ctx, "x", time.Minute)
	assert.Error(t, err)

	assert.Error(t, state.ClearProcessed(ctx, "x"))
}
