// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; business rules live below.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sylo/internal/agentconfig"
	"sylo/internal/audit"
	"sylo/internal/command"
	"sylo/internal/connection"
	"sylo/internal/platform/config"
	"sylo/internal/platform/metrics"
	platformmw "sylo/internal/platform/middleware"
	"sylo/internal/projectcontext"
	"sylo/internal/ratelimit"
	ratelimitmw "sylo/internal/ratelimit/middleware"
)

// Deps carries everything the HTTP layer needs. Wiring happens in main.
type Deps struct {
	Logger      *slog.Logger
	Config      config.Server
	Dispatcher  *command.Dispatcher
	Audit       *audit.Service
	Compiler    *projectcontext.Compiler
	Connections connection.Store
	ConfigGen   *agentconfig.Generator
	Limiter     *ratelimit.Service
	Sessions    platformmw.JWTValidator
	Metrics     *metrics.Metrics
	Health      []HealthCheck
}

// HealthCheck probes one backing component for the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	logger      *slog.Logger
	cfg         config.Server
	dispatcher  *command.Dispatcher
	audit       *audit.Service
	compiler    *projectcontext.Compiler
	connections connection.Store
	configGen   *agentconfig.Generator
	limiter     *ratelimit.Service
	metrics     *metrics.Metrics
	health      []HealthCheck
}

// serviceBudgets caps how often one user may drive each upstream through the
// webhook, on top of the overall webhook budget.
var serviceBudgets = map[string]struct {
	requests int
	window   string
}{
	"gmail": {30, "1h"},
	"asana": {50, "1h"},
	"xero":  {20, "1h"},
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{
		logger:      d.Logger,
		cfg:         d.Config,
		dispatcher:  d.Dispatcher,
		audit:       d.Audit,
		compiler:    d.Compiler,
		connections: d.Connections,
		configGen:   d.ConfigGen,
		limiter:     d.Limiter,
		metrics:     d.Metrics,
		health:      d.Health,
	}

	rl := ratelimitmw.New(d.Limiter, d.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(platformmw.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/command", h.handleWebhookCommand)

	r.Route("/cron", func(r chi.Router) {
		r.Get("/cleanup-audit-logs", h.handleAuditCleanup)
		r.Post("/cleanup-audit-logs", h.handleAuditCleanup)
	})

	// First-party session endpoints.
	r.Group(func(r chi.Router) {
		r.Use(platformmw.RequireAuth(d.Sessions, d.Logger))

		r.Get("/context", h.handleContext)
		r.Get("/connections", h.handleConnections)
		r.Get("/config/mcp", h.handleAgentConfigGet)
		r.Post("/config/mcp", h.handleAgentConfigGenerate)

		r.Group(func(r chi.Router) {
			r.Use(rl.LimitService("audit", 200, "1h", d.Config.RateLimitBypassToken))
			r.Post("/audit/log", h.handleAuditLogCreate)
			r.Get("/audit/log", h.handleAuditLogList)
			r.Get("/audit/stats", h.handleAuditStats)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := map[string]string{}
	for _, check := range h.health {
		if err := check.Check(r.Context()); err != nil {
			status = "degraded"
			components[check.Name] = err.Error()
			continue
		}
		components[check.Name] = "ok"
	}

	body := map[string]any{"status": status}
	if len(components) > 0 {
		body["components"] = components
	}
	writeJSON(w, http.StatusOK, body)
}
