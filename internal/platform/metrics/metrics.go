package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	CommandsTotal          *prometheus.CounterVec
	CommandDuration        *prometheus.HistogramVec
	RateLimitRejections    prometheus.Counter
	SignatureFailures      prometheus.Counter
	ContextCompilations    prometheus.Counter
	ContextServiceFailures *prometheus.CounterVec
	AuditWriteFailures     prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sylo_webhook_commands_total",
			Help: "Total number of webhook commands dispatched, by service and status",
		}, []string{"service", "status"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sylo_webhook_command_duration_seconds",
			Help:    "Command execution duration from dispatch to result",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sylo_ratelimit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		SignatureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sylo_webhook_signature_failures_total",
			Help: "Total number of webhook requests failing HMAC or timestamp validation",
		}),
		ContextCompilations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sylo_context_compilations_total",
			Help: "Total number of project context compilations",
		}),
		ContextServiceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sylo_context_service_failures_total",
			Help: "Per-service failures during context compilation",
		}, []string{"service"}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sylo_audit_write_failures_total",
			Help: "Total number of audit log writes that failed and were swallowed",
		}),
	}
}

// RecordCommand records a dispatched command outcome.
func (m *Metrics) RecordCommand(service, status string, seconds float64) {
	m.CommandsTotal.WithLabelValues(service, status).Inc()
	m.CommandDuration.WithLabelValues(service).Observe(seconds)
}

// RecordContextServiceFailure counts a failed per-service compilation.
func (m *Metrics) RecordContextServiceFailure(service string) {
	m.ContextServiceFailures.WithLabelValues(service).Inc()
}
