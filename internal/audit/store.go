package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Implementations must tolerate concurrent
// appends; readers see entries in most-recent-first order.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID string, f Filter) ([]*Entry, error)
	ListByService(ctx context.Context, service string, start, end time.Time) ([]*Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
