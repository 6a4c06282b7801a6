// Package ratelimit enforces per-identifier request ceilings over fixed time
// windows. The backing store is pluggable: the in-memory store serves a
// single process; multi-instance deployments need the Redis store so counters
// survive beyond one runtime.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Store counts requests per key within a fixed window. Implementations must
// tolerate concurrent calls for the same key.
type Store interface {
	// Allow records one request against key and reports whether it fits
	// within limit for the current window. The attempt that reaches the
	// limit is still counted, so at most `limit` requests land in any
	// window; attempts beyond it must not extend the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Service wraps a Store with window-spec parsing.
type Service struct {
	store Store
}

func New(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	return &Service{store: store}, nil
}

// Limit checks identifier against maxRequests per window. The window is a
// compact duration spec ("5s", "30m", "1h", "1d"); unrecognized specs fall
// back to one hour.
func (s *Service) Limit(ctx context.Context, identifier string, maxRequests int, window string) (*Result, error) {
	return s.store.Allow(ctx, identifier, maxRequests, ParseWindow(window))
}

// ParseWindow converts a compact window spec into a duration. Unknown units
// or malformed values default to one hour.
func ParseWindow(spec string) time.Duration {
	if len(spec) < 2 {
		return time.Hour
	}
	value, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || value <= 0 {
		return time.Hour
	}

	switch spec[len(spec)-1] {
	case 's':
		return time.Duration(value) * time.Second
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return time.Hour
	}
}
