package projectcontext

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sylo/internal/connection"
	"sylo/internal/connector/asana"
	"sylo/internal/connector/gmail"
	"sylo/internal/connector/xero"
)

type fakeGmail struct {
	stats  *gmail.Stats
	urgent []gmail.Email
	recent []gmail.Email
	err    error
}

func (f *fakeGmail) GetEmailStats(context.Context, string) (*gmail.Stats, error) {
	return f.stats, f.err
}

func (f *fakeGmail) GetUrgentEmails(context.Context, string) ([]gmail.Email, error) {
	return f.urgent, f.err
}

func (f *fakeGmail) GetEmails(context.Context, string, int, string) ([]gmail.Email, error) {
	return f.recent, f.err
}

type fakeAsana struct {
	stats    *asana.TaskStats
	upcoming []asana.Task
	myTasks  []asana.Task
	err      error
}

func (f *fakeAsana) GetTaskStats(context.Context, string) (*asana.TaskStats, error) {
	return f.stats, f.err
}

func (f *fakeAsana) GetUpcomingTasks(context.Context, string) ([]asana.Task, error) {
	return f.upcoming, f.err
}

func (f *fakeAsana) GetMyTasks(context.Context, string) ([]asana.Task, error) {
	return f.myTasks, f.err
}

type fakeXero struct {
	summary *xero.FinancialSummary
	err     error
}

func (f *fakeXero) GetFinancialSummary(context.Context, string) (*xero.FinancialSummary, error) {
	return f.summary, f.err
}

func connStore(t *testing.T, userID string, services ...string) connection.Store {
	t.Helper()
	store := connection.NewMemoryStore()
	for _, svc := range services {
		require.NoError(t, store.Upsert(context.Background(), &connection.Connection{
			UserID:   userID,
			Service:  svc,
			IsActive: true,
		}))
	}
	return store
}

func fixedClock() func() time.Time {
	ts := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestCompileNoConnections(t *testing.T) {
	c := NewCompiler(connStore(t, "u1"), &fakeGmail{}, &fakeAsana{}, &fakeXero{},
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	pc, err := c.Compile(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", pc.UserID)
	assert.Empty(t, pc.Services)
	assert.Empty(t, pc.UrgentItems)
	assert.Nil(t, pc.Communications)
	assert.Nil(t, pc.Financials)
	assert.Zero(t, pc.Summary.TotalItems)
}

func TestCompileMergesAllServices(t *testing.T) {
	g := &fakeGmail{
		stats: &gmail.Stats{Unread: 7, Urgent: 2},
		urgent: []gmail.Email{
			{Subject: "Server down", From: "ops@studio.com"},
			{Subject: "Contract deadline", From: "legal@studio.com"},
		},
		recent: []gmail.Email{
			{Subject: "Weekly update", From: "team@studio.com", Date: time.Now()},
		},
	}
	a := &fakeAsana{
		stats: &asana.TaskStats{Total: 5, Overdue: 2},
		upcoming: []asana.Task{
			{GID: "t1", Name: "Ship release", DueDate: "2025-03-20"},
		},
		myTasks: []asana.Task{
			{GID: "t1", Name: "Ship release", DueDate: "2025-03-20"},
			{GID: "t2", Name: "Done already", Completed: true},
			{GID: "t3", Name: "Write docs"},
		},
	}
	x := &fakeXero{
		summary: &xero.FinancialSummary{
			TotalReceivables: 15000.50,
			TotalPayables:    3200,
			OverdueAmount:    4200.25,
			OverdueCount:     3,
			TotalInvoices:    12,
		},
	}

	c := NewCompiler(connStore(t, "u1", "gmail", "asana", "xero"), g, a, x,
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	pc, err := c.Compile(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, pc.Services, 3)
	byName := map[string]ServiceStatus{}
	for _, s := range pc.Services {
		byName[s.Name] = s
	}
	assert.Equal(t, "active", byName["gmail"].Status)
	assert.Equal(t, 7, byName["gmail"].ItemCount)
	assert.Equal(t, 2, byName["asana"].ItemCount)
	assert.Equal(t, 12, byName["xero"].ItemCount)

	assert.Equal(t, 21, pc.Summary.TotalItems)
	assert.Equal(t, len(pc.UrgentItems), pc.Summary.UrgentItems)
	assert.Equal(t, 1, pc.Summary.RecentActivity)

	require.NotNil(t, pc.Communications)
	assert.Equal(t, 7, pc.Communications.UnreadCount)
	assert.Len(t, pc.Communications.UrgentItems, 2)

	require.Len(t, pc.Projects, 2)
	assert.Equal(t, "Ship release", pc.Projects[0].Name)
	assert.Equal(t, "in_progress", pc.Projects[0].Status)

	require.NotNil(t, pc.Financials)
	assert.Equal(t, 3, pc.Financials.OverdueCount)
	assert.Equal(t, "USD", pc.Financials.Currency)

	// 2 gmail emails, 1 upcoming task, overdue tasks, overdue invoices,
	// high receivables
	require.Len(t, pc.UrgentItems, 6)
	for i := 1; i < len(pc.UrgentItems); i++ {
		assert.GreaterOrEqual(t,
			priorityRank(pc.UrgentItems[i-1].Priority),
			priorityRank(pc.UrgentItems[i].Priority),
			"urgent items must be ordered high to low")
	}
	assert.Equal(t, "2 Overdue Tasks", pc.UrgentItems[0].Title)
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

func TestCompileServiceFailureDegrades(t *testing.T) {
	g := &fakeGmail{err: errors.New("token expired")}
	a := &fakeAsana{
		stats:   &asana.TaskStats{},
		myTasks: []asana.Task{{GID: "t1", Name: "Task one"}},
	}

	c := NewCompiler(connStore(t, "u1", "gmail", "asana"), g, a, &fakeXero{},
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	pc, err := c.Compile(context.Background(), "u1")
	require.NoError(t, err)

	byName := map[string]ServiceStatus{}
	for _, s := range pc.Services {
		byName[s.Name] = s
	}

	gmailStatus := byName["gmail"]
	assert.Equal(t, "error", gmailStatus.Status)
	assert.Zero(t, gmailStatus.ItemCount)
	assert.Contains(t, gmailStatus.Error, "Gmail context compilation failed")

	asanaStatus := byName["asana"]
	assert.Equal(t, "active", asanaStatus.Status)
	assert.Equal(t, 1, asanaStatus.ItemCount)
	assert.Nil(t, pc.Communications)
}

func TestCompileSkipsUnknownService(t *testing.T) {
	c := NewCompiler(connStore(t, "u1", "slack"), &fakeGmail{}, &fakeAsana{}, &fakeXero{},
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	pc, err := c.Compile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, pc.Services)
}

func TestGenerateMarkdownFullSnapshot(t *testing.T) {
	g := &fakeGmail{
		stats:  &gmail.Stats{Unread: 3},
		urgent: []gmail.Email{{Subject: "Invoice question", From: "client@x.com"}},
	}
	a := &fakeAsana{
		stats:    &asana.TaskStats{},
		upcoming: []asana.Task{{Name: "Mix album", DueDate: "2025-03-21"}},
		myTasks:  []asana.Task{{Name: "Mix album", DueDate: "2025-03-21"}},
	}
	x := &fakeXero{
		summary: &xero.FinancialSummary{
			TotalReceivables: 1234.5,
			TotalPayables:    99,
			OverdueAmount:    500,
			OverdueCount:     1,
			TotalInvoices:    4,
		},
	}

	c := NewCompiler(connStore(t, "u1", "gmail", "asana", "xero"), g, a, x,
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	md, err := c.GenerateMarkdown(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Studio Status - 3/15/2025, 2:30:00 PM"))
	assert.Contains(t, md, "## 🚨 Immediate Attention Required")
	assert.Contains(t, md, "- **Email: Invoice question**: From client@x.com")
	assert.Contains(t, md, "- **Task: Mix album**: Due: 2025-03-21 (Due: 2025-03-21)")
	assert.Contains(t, md, "- **1 Overdue Invoices**: $500.00 in overdue payments")
	assert.Contains(t, md, "## 📋 Active Projects")
	assert.Contains(t, md, "- **Mix album**: 0% complete, deadline 2025-03-21")
	assert.Contains(t, md, "## Communications Summary")
	assert.Contains(t, md, "- 3 unread emails")
	assert.Contains(t, md, "- 1 urgent items requiring response")
	assert.Contains(t, md, "## 💰 Financial Overview")
	assert.Contains(t, md, "- Outstanding Receivables: $1234.50")
	assert.Contains(t, md, "- Overdue Amount: $500.00 (1 invoices)")
	assert.Contains(t, md, "## Service Status")
	assert.Contains(t, md, "- **gmail**: active (3 items, last sync: 2:30:00 PM)")
	assert.Contains(t, md, "*Total items tracked: 8*")
}

func TestGenerateMarkdownEmptySnapshot(t *testing.T) {
	c := NewCompiler(connStore(t, "u1"), &fakeGmail{}, &fakeAsana{}, &fakeXero{},
		slog.New(slog.DiscardHandler), WithClock(fixedClock()))

	md, err := c.GenerateMarkdown(context.Background(), "u1")
	require.NoError(t, err)

	assert.Contains(t, md, "No urgent items")
	assert.Contains(t, md, "No active projects")
	assert.Contains(t, md, "- No communication data available")
	assert.Contains(t, md, "- No financial data available")
	assert.Contains(t, md, "*Total items tracked: 0*")
}
