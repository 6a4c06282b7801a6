package connection

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no connection exists for a (user, service) pair.
var ErrNotFound = errors.New("connection not found")

// Store persists connection records. Connections are keyed by
// (userID, service); a disconnect deactivates, never deletes.
type Store interface {
	// Upsert creates the record on first OAuth completion and refreshes
	// scopes/timestamps on broker refresh events.
	Upsert(ctx context.Context, conn *Connection) error
	// Get returns the connection for a (user, service) pair, active or not.
	Get(ctx context.Context, userID, service string) (*Connection, error)
	// ListActive returns all active connections for a user.
	ListActive(ctx context.Context, userID string) ([]*Connection, error)
	// List returns all connections for a user, including inactive ones.
	List(ctx context.Context, userID string) ([]*Connection, error)
	// Deactivate soft-deletes the connection for a (user, service) pair.
	Deactivate(ctx context.Context, userID, service string) error
}
