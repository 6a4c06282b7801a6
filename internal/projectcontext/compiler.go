package projectcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"sylo/internal/connection"
	"sylo/internal/connector/asana"
	"sylo/internal/connector/gmail"
	"sylo/internal/connector/xero"
	"sylo/internal/platform/metrics"
)

// GmailSource is the slice of the Gmail client the compiler needs.
type GmailSource interface {
	GetEmailStats(ctx context.Context, connectionID string) (*gmail.Stats, error)
	GetUrgentEmails(ctx context.Context, connectionID string) ([]gmail.Email, error)
	GetEmails(ctx context.Context, connectionID string, maxResults int, query string) ([]gmail.Email, error)
}

// AsanaSource is the slice of the Asana client the compiler needs.
type AsanaSource interface {
	GetTaskStats(ctx context.Context, connectionID string) (*asana.TaskStats, error)
	GetUpcomingTasks(ctx context.Context, connectionID string) ([]asana.Task, error)
	GetMyTasks(ctx context.Context, connectionID string) ([]asana.Task, error)
}

// XeroSource is the slice of the Xero client the compiler needs.
type XeroSource interface {
	GetFinancialSummary(ctx context.Context, connectionID string) (*xero.FinancialSummary, error)
}

// Compiler fans out to every active connection in parallel and merges the
// per-service results. A failing service degrades to an error entry in the
// snapshot instead of failing the whole compilation.
type Compiler struct {
	connections connection.Store
	gmail       GmailSource
	asana       AsanaSource
	xero        XeroSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Compiler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithClock overrides the timestamp source, for deterministic output.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

func NewCompiler(conns connection.Store, g GmailSource, a AsanaSource, x XeroSource, logger *slog.Logger, opts ...Option) *Compiler {
	c := &Compiler{
		connections: conns,
		gmail:       g,
		asana:       a,
		xero:        x,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// serviceContext is one service's contribution before merging.
type serviceContext struct {
	service        string
	status         string
	lastSync       time.Time
	itemCount      int
	errMessage     string
	communications *Communications
	projects       []Project
	financials     *Financials
	urgentItems    []UrgentItem
}

// Compile builds the snapshot for a user from their active connections.
func (c *Compiler) Compile(ctx context.Context, userID string) (*ProjectContext, error) {
	conns, err := c.connections.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}

	if c.metrics != nil {
		c.metrics.ContextCompilations.Inc()
	}

	results := make([]*serviceContext, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range conns {
		g.Go(func() error {
			// Connections are keyed by user; the broker connection id is
			// the user id.
			results[i] = c.compileService(gctx, conn.Service, userID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ProjectContext{
		Timestamp:   c.now(),
		UserID:      userID,
		Services:    []ServiceStatus{},
		UrgentItems: []UrgentItem{},
	}
	c.merge(out, results)
	return out, nil
}

// compileService never returns nil error paths to the caller: a failure is
// folded into an error-status serviceContext. Unknown services yield nil and
// are skipped during the merge.
func (c *Compiler) compileService(ctx context.Context, service, connectionID string) *serviceContext {
	var (
		sc  *serviceContext
		err error
	)
	switch service {
	case "gmail":
		sc, err = c.compileGmail(ctx, connectionID)
	case "asana":
		sc, err = c.compileAsana(ctx, connectionID)
	case "xero":
		sc, err = c.compileXero(ctx, connectionID)
	default:
		return nil
	}
	if err != nil {
		c.logger.Error("failed to compile service context", "service", service, "error", err)
		if c.metrics != nil {
			c.metrics.RecordContextServiceFailure(service)
		}
		return &serviceContext{
			service:    service,
			status:     "error",
			lastSync:   c.now(),
			errMessage: err.Error(),
		}
	}
	return sc
}

func (c *Compiler) compileGmail(ctx context.Context, connectionID string) (*serviceContext, error) {
	var (
		stats        *gmail.Stats
		urgentEmails []gmail.Email
		recentEmails []gmail.Email
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = c.gmail.GetEmailStats(gctx, connectionID)
		return err
	})
	g.Go(func() (err error) {
		urgentEmails, err = c.gmail.GetUrgentEmails(gctx, connectionID)
		return err
	})
	g.Go(func() (err error) {
		recentEmails, err = c.gmail.GetEmails(gctx, connectionID, 10, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Gmail context compilation failed: %w", err)
	}

	comms := &Communications{
		UnreadCount:    stats.Unread,
		UrgentItems:    []CommunicationItem{},
		RecentActivity: []Activity{},
	}
	for _, email := range firstN(urgentEmails, 5) {
		comms.UrgentItems = append(comms.UrgentItems, CommunicationItem{
			Title:       email.Subject,
			Description: fmt.Sprintf("From: %s", email.From),
			Source:      "gmail",
			Priority:    PriorityHigh,
		})
	}
	for _, email := range firstN(recentEmails, 10) {
		comms.RecentActivity = append(comms.RecentActivity, Activity{
			Title:       email.Subject,
			Description: fmt.Sprintf("From: %s", email.From),
			Timestamp:   email.Date,
			Source:      "gmail",
		})
	}

	var urgent []UrgentItem
	for _, email := range firstN(urgentEmails, 3) {
		urgent = append(urgent, UrgentItem{
			Title:       fmt.Sprintf("Email: %s", email.Subject),
			Description: fmt.Sprintf("From %s", email.From),
			Priority:    PriorityHigh,
			Source:      "gmail",
		})
	}

	return &serviceContext{
		service:        "gmail",
		status:         "active",
		lastSync:       c.now(),
		itemCount:      stats.Unread,
		communications: comms,
		urgentItems:    urgent,
	}, nil
}

func (c *Compiler) compileAsana(ctx context.Context, connectionID string) (*serviceContext, error) {
	var (
		stats    *asana.TaskStats
		upcoming []asana.Task
		myTasks  []asana.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = c.asana.GetTaskStats(gctx, connectionID)
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = c.asana.GetUpcomingTasks(gctx, connectionID)
		return err
	})
	g.Go(func() (err error) {
		myTasks, err = c.asana.GetMyTasks(gctx, connectionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Asana context compilation failed: %w", err)
	}

	var projects []Project
	incomplete := 0
	for _, task := range myTasks {
		if task.Completed {
			continue
		}
		incomplete++
		projects = append(projects, Project{
			Name:       task.Name,
			Completion: 0,
			Deadline:   task.DueDate,
			Status:     "in_progress",
			Source:     "asana",
		})
	}

	var urgent []UrgentItem
	for _, task := range firstN(upcoming, 2) {
		desc := "No due date"
		if task.DueDate != "" {
			desc = fmt.Sprintf("Due: %s", task.DueDate)
		}
		urgent = append(urgent, UrgentItem{
			Title:       fmt.Sprintf("Task: %s", task.Name),
			Description: desc,
			Priority:    PriorityMedium,
			Source:      "asana",
			DueDate:     task.DueDate,
		})
	}
	if stats.Overdue > 0 {
		urgent = append(urgent, UrgentItem{
			Title:       fmt.Sprintf("%d Overdue Tasks", stats.Overdue),
			Description: "Tasks that are past their due date",
			Priority:    PriorityHigh,
			Source:      "asana",
		})
	}

	return &serviceContext{
		service:     "asana",
		status:      "active",
		lastSync:    c.now(),
		itemCount:   incomplete,
		projects:    projects,
		urgentItems: urgent,
	}, nil
}

func (c *Compiler) compileXero(ctx context.Context, connectionID string) (*serviceContext, error) {
	summary, err := c.xero.GetFinancialSummary(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("Xero context compilation failed: %w", err)
	}

	var urgent []UrgentItem
	if summary.OverdueCount > 0 {
		urgent = append(urgent, UrgentItem{
			Title:       fmt.Sprintf("%d Overdue Invoices", summary.OverdueCount),
			Description: fmt.Sprintf("$%.2f in overdue payments", summary.OverdueAmount),
			Priority:    PriorityHigh,
			Source:      "xero",
		})
	}
	if summary.TotalReceivables > 10000 {
		urgent = append(urgent, UrgentItem{
			Title:       "High Outstanding Receivables",
			Description: fmt.Sprintf("$%.2f in outstanding payments", summary.TotalReceivables),
			Priority:    PriorityMedium,
			Source:      "xero",
		})
	}

	return &serviceContext{
		service:   "xero",
		status:    "active",
		lastSync:  c.now(),
		itemCount: summary.TotalInvoices,
		financials: &Financials{
			TotalReceivables: summary.TotalReceivables,
			TotalPayables:    summary.TotalPayables,
			OverdueAmount:    summary.OverdueAmount,
			OverdueCount:     summary.OverdueCount,
			Currency:         "USD",
		},
		urgentItems: urgent,
	}, nil
}

func (c *Compiler) merge(out *ProjectContext, results []*serviceContext) {
	for _, sc := range results {
		if sc == nil {
			continue
		}
		out.Services = append(out.Services, ServiceStatus{
			Name:      sc.service,
			Status:    sc.status,
			LastSync:  sc.lastSync,
			ItemCount: sc.itemCount,
			Error:     sc.errMessage,
		})

		if sc.communications != nil {
			if out.Communications == nil {
				out.Communications = &Communications{
					UrgentItems:    []CommunicationItem{},
					RecentActivity: []Activity{},
				}
			}
			out.Communications.UnreadCount += sc.communications.UnreadCount
			out.Communications.UrgentItems = append(out.Communications.UrgentItems, sc.communications.UrgentItems...)
			out.Communications.RecentActivity = append(out.Communications.RecentActivity, sc.communications.RecentActivity...)
		}
		out.Projects = append(out.Projects, sc.projects...)
		if sc.financials != nil {
			out.Financials = sc.financials
		}
		out.UrgentItems = append(out.UrgentItems, sc.urgentItems...)
	}

	totalItems := 0
	for _, s := range out.Services {
		totalItems += s.ItemCount
	}
	recentActivity := 0
	if out.Communications != nil {
		recentActivity = len(out.Communications.RecentActivity)
	}
	out.Summary = Summary{
		TotalItems:     totalItems,
		UrgentItems:    len(out.UrgentItems),
		RecentActivity: recentActivity,
	}

	rank := map[Priority]int{PriorityHigh: 3, PriorityMedium: 2, PriorityLow: 1}
	sort.SliceStable(out.UrgentItems, func(i, j int) bool {
		return rank[out.UrgentItems[i].Priority] > rank[out.UrgentItems[j].Priority]
	})
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
