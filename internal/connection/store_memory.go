package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-instance
// deployments without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection // key: userID + "/" + service
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conns: make(map[string]*Connection)}
}

func key(userID, service string) string {
	return userID + "/" + service
}

func (s *MemoryStore) Upsert(ctx context.Context, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.conns[key(conn.UserID, conn.Service)]; ok {
		existing.ConnectionID = conn.ConnectionID
		existing.Scopes = append([]string(nil), conn.Scopes...)
		existing.IsActive = true
		existing.UpdatedAt = now
		return nil
	}

	stored := *conn
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Scopes = append([]string(nil), conn.Scopes...)
	stored.IsActive = true
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.conns[key(conn.UserID, conn.Service)] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID, service string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[key(userID, service)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, userID string) ([]*Connection, error) {
	return s.list(userID, true)
}

func (s *MemoryStore) List(ctx context.Context, userID string) ([]*Connection, error) {
	return s.list(userID, false)
}

func (s *MemoryStore) list(userID string, activeOnly bool) ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Connection
	for _, conn := range s.conns {
		if conn.UserID != userID {
			continue
		}
		if activeOnly && !conn.IsActive {
			continue
		}
		cp := *conn
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, userID, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[key(userID, service)]
	if !ok {
		return ErrNotFound
	}
	conn.IsActive = false
	conn.UpdatedAt = time.Now()
	return nil
}
