package repository

import (
	"context"
	"sync"
	"time"
)

// MemorySharedState is the single-instance fallback when Redis is
// unavailable. Counters and dedup marks are process-local, so across
// instances the limits are per-instance only.
type MemorySharedState struct {
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
	processed  map[string]time.Time
}

func NewMemorySharedState() *MemorySharedState {
	return &MemorySharedState{
		rateLimits: make(map[string]*rateLimitEntry),
		processed:  make(map[string]time.Time),
	}
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySharedState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}

func (r *MemorySharedState) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if expiry, ok := r.processed[id]; ok && now.Before(expiry) {
		return false, nil
	}
	r.processed[id] = now.Add(ttl)

	// Opportunistic cleanup of stale marks.
	for k, expiry := range r.processed {
		if now.After(expiry) {
			delete(r.processed, k)
		}
	}
	return true, nil
}

func (r *MemorySharedState) ClearProcessed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processed, id)
	return nil
}
