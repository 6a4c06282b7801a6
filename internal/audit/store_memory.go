package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps audit entries in process memory. Used in tests and when
// no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.ExecutedAt.IsZero() {
		cp.ExecutedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if f.Service != "" && e.Service != f.Service {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Status != "" && string(e.Status) != f.Status {
			continue
		}
		if !f.StartDate.IsZero() && e.ExecutedAt.Before(f.StartDate) {
			continue
		}
		if !f.EndDate.IsZero() && e.ExecutedAt.After(f.EndDate) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ExecutedAt.After(matched[j].ExecutedAt)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*Entry, len(matched))
	for i, e := range matched {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) ListByService(_ context.Context, service string, start, end time.Time) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.Service != service {
			continue
		}
		if !start.IsZero() && e.ExecutedAt.Before(start) {
			continue
		}
		if !end.IsZero() && e.ExecutedAt.After(end) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	deleted := 0
	for _, e := range s.entries {
		if e.ExecutedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}
