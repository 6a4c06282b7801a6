package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"sylo/internal/platform/metrics"
)

// Service records command executions for compliance review. Writes are
// best-effort: a failing store must never block or fail the command that
// triggered the entry, so Log swallows store errors after counting them.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Log persists an audit entry. It never returns an error; persistence
// failures are logged and counted instead.
func (s *Service) Log(ctx context.Context, e *Entry) {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	if err := s.store.Append(ctx, e); err != nil {
		s.logger.Error("failed to write audit log",
			"error", err,
			"user_id", e.UserID,
			"service", e.Service,
			"action", e.Action,
		)
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
	}
}

// LogSuccess records a completed command with its result payload.
func (s *Service) LogSuccess(ctx context.Context, e *Entry, result map[string]any, executionMs int64) {
	e.Status = StatusSuccess
	e.Result = result
	e.ExecutionTimeMs = &executionMs
	s.Log(ctx, e)
}

// LogError records a failed command with its error classification.
func (s *Service) LogError(ctx context.Context, e *Entry, code, message string, executionMs int64) {
	e.Status = StatusError
	e.ErrorCode = code
	e.ErrorMessage = message
	e.ExecutionTimeMs = &executionMs
	s.Log(ctx, e)
}

// ListUserLogs returns a user's audit trail, newest first.
func (s *Service) ListUserLogs(ctx context.Context, userID string, f Filter) ([]*Entry, error) {
	entries, err := s.store.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}

// ServiceStats aggregates a service's audit trail over a date range.
// TopActions holds at most five actions ordered by count descending; ties
// keep the order actions were first seen in.
func (s *Service) ServiceStats(ctx context.Context, service string, start, end time.Time) (*Stats, error) {
	entries, err := s.store.ListByService(ctx, service, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate audit stats: %w", err)
	}

	stats := &Stats{TopActions: []ActionCount{}}
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var totalMs int64
	var timedEntries int64

	for _, e := range entries {
		stats.TotalActions++
		switch e.Status {
		case StatusSuccess:
			stats.SuccessfulActions++
		case StatusError:
			stats.FailedActions++
		}
		if _, ok := counts[e.Action]; !ok {
			firstSeen[e.Action] = len(firstSeen)
		}
		counts[e.Action]++
		if e.ExecutionTimeMs != nil {
			totalMs += *e.ExecutionTimeMs
			timedEntries++
		}
	}

	if timedEntries > 0 {
		stats.AverageExecutionTime = int64(math.Round(float64(totalMs) / float64(timedEntries)))
	}
	if stats.TotalActions > 0 {
		stats.ErrorRate = float64(stats.FailedActions) / float64(stats.TotalActions)
	}

	actions := make([]ActionCount, 0, len(counts))
	for action, count := range counts {
		actions = append(actions, ActionCount{Action: action, Count: count})
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Count != actions[j].Count {
			return actions[i].Count > actions[j].Count
		}
		return firstSeen[actions[i].Action] < firstSeen[actions[j].Action]
	})
	if len(actions) > 5 {
		actions = actions[:5]
	}
	stats.TopActions = actions

	return stats, nil
}

// CleanupOldLogs deletes entries older than the retention period and
// returns how many were removed.
func (s *Service) CleanupOldLogs(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit logs: %w", err)
	}
	s.logger.Info("cleaned up old audit logs", "deleted", deleted, "retention_days", retentionDays)
	return deleted, nil
}
