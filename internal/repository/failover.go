package repository

import (
	"context"
	"sync/atomic"
	"time"

	"agendo/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSharedState serves from Redis while it is healthy and falls
// back to process memory when it is not, retrying the primary after a
// minute. Degraded mode weakens cross-instance guarantees; that beats
// refusing traffic.
type FailoverSharedState struct {
	primary   domain.SharedState
	fallback  domain.SharedState
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSharedState(primary, fallback domain.SharedState, logger *zerolog.Logger) *FailoverSharedState {
	return &FailoverSharedState{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSharedState) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(r.lastCheck.Load(), 0)
	return time.Since(last) > time.Minute
}

func (r *FailoverSharedState) markDown(err error, op string) {
	r.logger.Error().Err(err).Str("op", op).Msg("Shared state primary failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().Unix())
}

func (r *FailoverSharedState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.shouldTryPrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.markDown(err, "rate_limit")
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverSharedState) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if r.shouldTryPrimary() {
		first, err := r.primary.MarkProcessed(ctx, id, ttl)
		if err == nil {
			r.isDown.Store(false)
			return first, nil
		}
		r.markDown(err, "mark_processed")
	}

	return r.fallback.MarkProcessed(ctx, id, ttl)
}

func (r *FailoverSharedState) ClearProcessed(ctx context.Context, id string) error {
	if r.shouldTryPrimary() {
		if err := r.primary.ClearProcessed(ctx, id); err != nil {
			r.markDown(err, "clear_processed")
		} else {
			r.isDown.Store(false)
		}
	}
	// The mark may live in either store after a failover window.
	return r.fallback.ClearProcessed(ctx, id)
}
