package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type failingStore struct{}

func (failingStore) Append(context.Context, *Entry) error { return errors.New("db down") }
func (failingStore) ListByUser(context.Context, string, Filter) ([]*Entry, error) {
	return nil, errors.New("db down")
}
func (failingStore) ListByService(context.Context, string, time.Time, time.Time) ([]*Entry, error) {
	return nil, errors.New("db down")
}
func (failingStore) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, errors.New("db down")
}

func TestLogNeverPropagatesStoreFailure(t *testing.T) {
	svc := NewService(failingStore{}, testLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &Entry{UserID: "u1", Service: "gmail", Action: "send_email"})
	})
}

func TestLogSuccessAndError(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	svc.LogSuccess(ctx, &Entry{UserID: "u1", Service: "asana", Action: "get_tasks"}, map[string]any{"count": 3}, 120)
	svc.LogError(ctx, &Entry{UserID: "u1", Service: "gmail", Action: "send_email"}, "UPSTREAM_REJECTED", "Failed to send email", 85)

	logs, err := svc.ListUserLogs(ctx, "u1", Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	byAction := map[string]*Entry{}
	for _, e := range logs {
		byAction[e.Action] = e
	}

	ok := byAction["get_tasks"]
	require.NotNil(t, ok)
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.Equal(t, map[string]any{"count": 3}, ok.Result)
	require.NotNil(t, ok.ExecutionTimeMs)
	assert.Equal(t, int64(120), *ok.ExecutionTimeMs)

	failed := byAction["send_email"]
	require.NotNil(t, failed)
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "UPSTREAM_REJECTED", failed.ErrorCode)
	assert.Equal(t, "Failed to send email", failed.ErrorMessage)
}

func TestListUserLogsFilters(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []*Entry{
		{UserID: "u1", Service: "gmail", Action: "send_email", Status: StatusSuccess, ExecutedAt: now.Add(-3 * time.Hour)},
		{UserID: "u1", Service: "gmail", Action: "get_emails", Status: StatusError, ExecutedAt: now.Add(-2 * time.Hour)},
		{UserID: "u1", Service: "asana", Action: "get_tasks", Status: StatusSuccess, ExecutedAt: now.Add(-1 * time.Hour)},
		{UserID: "u2", Service: "gmail", Action: "send_email", Status: StatusSuccess, ExecutedAt: now},
	}
	for _, e := range entries {
		svc.Log(ctx, e)
	}

	gmail, err := svc.ListUserLogs(ctx, "u1", Filter{Service: "gmail"})
	require.NoError(t, err)
	require.Len(t, gmail, 2)
	assert.Equal(t, "get_emails", gmail[0].Action)
	assert.Equal(t, "send_email", gmail[1].Action)

	failed, err := svc.ListUserLogs(ctx, "u1", Filter{Status: "error"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "get_emails", failed[0].Action)

	recent, err := svc.ListUserLogs(ctx, "u1", Filter{StartDate: now.Add(-90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "get_tasks", recent[0].Action)

	paged, err := svc.ListUserLogs(ctx, "u1", Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "get_emails", paged[0].Action)
}

func TestServiceStats(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	ms := func(v int64) *int64 { return &v }
	logs := []*Entry{
		{UserID: "u1", Service: "gmail", Action: "send_email", Status: StatusSuccess, ExecutionTimeMs: ms(100)},
		{UserID: "u1", Service: "gmail", Action: "send_email", Status: StatusSuccess, ExecutionTimeMs: ms(200)},
		{UserID: "u1", Service: "gmail", Action: "get_emails", Status: StatusError, ExecutionTimeMs: ms(51)},
		{UserID: "u1", Service: "gmail", Action: "get_unread_emails", Status: StatusSuccess},
		{UserID: "u1", Service: "asana", Action: "get_tasks", Status: StatusSuccess},
	}
	for _, e := range logs {
		svc.Log(ctx, e)
	}

	stats, err := svc.ServiceStats(ctx, "gmail", time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalActions)
	assert.Equal(t, 3, stats.SuccessfulActions)
	assert.Equal(t, 1, stats.FailedActions)
	assert.Equal(t, int64(117), stats.AverageExecutionTime)
	assert.InDelta(t, 0.25, stats.ErrorRate, 1e-9)

	require.Len(t, stats.TopActions, 3)
	assert.Equal(t, ActionCount{Action: "send_email", Count: 2}, stats.TopActions[0])
	// first-seen order breaks the tie between the two single-count actions
	assert.Equal(t, ActionCount{Action: "get_emails", Count: 1}, stats.TopActions[1])
	assert.Equal(t, ActionCount{Action: "get_unread_emails", Count: 1}, stats.TopActions[2])
}

func TestServiceStatsEmpty(t *testing.T) {
	svc := NewService(NewMemoryStore(), testLogger())

	stats, err := svc.ServiceStats(context.Background(), "xero", time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalActions)
	assert.Zero(t, stats.ErrorRate)
	assert.Zero(t, stats.AverageExecutionTime)
	assert.Empty(t, stats.TopActions)
}

func TestServiceStatsTopFiveCap(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	actions := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"}
	for i, action := range actions {
		for j := 0; j <= i; j++ {
			svc.Log(ctx, &Entry{UserID: "u1", Service: "asana", Action: action, Status: StatusSuccess})
		}
	}

	stats, err := svc.ServiceStats(ctx, "asana", time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Len(t, stats.TopActions, 5)
	assert.Equal(t, "a7", stats.TopActions[0].Action)
	assert.Equal(t, 7, stats.TopActions[0].Count)
	assert.Equal(t, "a3", stats.TopActions[4].Action)
}

func TestCleanupOldLogs(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	svc.Log(ctx, &Entry{UserID: "u1", Service: "gmail", Action: "old", ExecutedAt: time.Now().UTC().AddDate(0, 0, -40)})
	svc.Log(ctx, &Entry{UserID: "u1", Service: "gmail", Action: "older", ExecutedAt: time.Now().UTC().AddDate(0, 0, -31)})
	svc.Log(ctx, &Entry{UserID: "u1", Service: "gmail", Action: "recent", ExecutedAt: time.Now().UTC().AddDate(0, 0, -5)})

	deleted, err := svc.CleanupOldLogs(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	logs, err := svc.ListUserLogs(ctx, "u1", Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "recent", logs[0].Action)
}
