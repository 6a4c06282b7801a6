package store

import (
	"context"
	"sync"
	"time"

	"sylo/internal/ratelimit"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore implements ratelimit.Store with a mutex-guarded map of fixed
// windows. Counters are process-local; they do not survive restarts and are
// not shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Allow(ctx context.Context, key string, limit int, dur time.Duration) (*ratelimit.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w := s.windows[key]

	if w == nil || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(dur)}
		s.windows[key] = w
		return &ratelimit.Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= limit {
		// Rejected attempts don't mutate the window; the ceiling stays at
		// exactly `limit` requests until resetAt passes.
		return &ratelimit.Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return &ratelimit.Result{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}
