package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySharedState struct {
	fail       bool
	rateCalls  int
	markCalls  int
	clearCalls int
	allowValue bool
}

func (f *flakySharedState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.rateCalls++
	if f.fail {
		return false, errors.New("connection refused")
	}
	return f.allowValue, nil
}

func (f *flakySharedState) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	f.markCalls++
	if f.fail {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func (f *flakySharedState) ClearProcessed(ctx context.Context, id string) error {
	f.clearCalls++
	if f.fail {
		return errors.New("connection refused")
	}
	return nil
}

func TestFailoverSharedState_PrimaryHealthy(t *testing.T) {
	primary := &flakySharedState{allowValue: true}
	fallback := NewMemorySharedState()
	logger := zerolog.Nop()

	state := NewFailoverSharedState(primary, fallback, &logger)

	allowed, err := state.CheckRateLimit(context.Background(), "k", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.rateCalls)
}

func TestFailoverSharedState_FallsBackOnError(t *testing.T) {
	primary := &flakySharedState{fail: true}
	fallback := NewMemorySharedState()
	logger := zerolog.Nop()

	state := NewFailoverSharedState(primary, fallback, &logger)
	ctx := context.Background()

	allowed, err := state.CheckRateLimit(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Second call goes straight to the fallback, no primary retry yet.
	allowed, err = state.CheckRateLimit(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, primary.rateCalls)
}

func TestFailoverSharedState_MarkProcessedFallsBack(t *testing.T) {
	primary := &flakySharedState{fail: true}
	fallback := NewMemorySharedState()
	logger := zerolog.Nop()

	state := NewFailoverSharedState(primary, fallback, &logger)
	ctx := context.Background()

	first, err := state.MarkProcessed(ctx, "notif-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := state.MarkProcessed(ctx, "notif-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestFailoverSharedState_ClearProcessedFallsBack(t *testing.T) {
	primary := &flakySharedState{fail: true}
	fallback := NewMemorySharedState()
	logger := zerolog.Nop()

	state := NewFailoverSharedState(primary, fallback, &logger)
	ctx := context.Background()

	first, err := state.MarkProcessed(ctx, "notif-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	// The mark landed in the fallback; clearing must reach it there.
	require.NoError(t, state.ClearProcessed(ctx, "notif-1"))

	first, err = state.MarkProcessed(ctx, "notif-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestFailoverSharedState_RecoversAfterCooldown(t *testing.T) {
	primary := &flakySharedState{fail: true, allowValue: true}
	fallback := NewMemorySharedState()
	logger := zerolog.Nop()

	state := NewFailoverSharedState(primary, fallback, &logger)
	ctx := context.Background()

	_, err := state.CheckRateLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	// Primary comes back; rewind the cooldown clock to force a retry.
	primary.fail = false
	state.lastCheck.Store(time.Now().Add(-2 * time.Minute).Unix())

	allowed, err := state.CheckRateLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.False(t, state.isDown.Load())
}
