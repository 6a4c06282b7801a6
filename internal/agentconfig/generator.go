// Package agentconfig renders the capability manifest agents download to
// learn how to call the gateway on a user's behalf. The manifest names the
// user's connected services, what each can do, and how requests must be
// signed; the shared secret itself appears only as a placeholder the agent
// operator substitutes at deploy time.
package agentconfig

import (
	"context"
	"fmt"
	"time"

	"sylo/internal/connection"
)

const (
	manifestVersion = "1.0"
	manifestTTL     = 24 * time.Hour

	secretPlaceholder = "{{WEBHOOK_SECRET}}"
)

// Config is the manifest document, serialized as JSON or YAML.
type Config struct {
	MCPVersion  string        `json:"mcpVersion" yaml:"mcpVersion"`
	GeneratedAt time.Time     `json:"generatedAt" yaml:"generatedAt"`
	ExpiresAt   time.Time     `json:"expiresAt" yaml:"expiresAt"`
	Agent       Agent         `json:"agent" yaml:"agent"`
	Services    []Service     `json:"services" yaml:"services"`
	Context     ContextConfig `json:"context" yaml:"context"`
	Webhooks    WebhookConfig `json:"webhooks" yaml:"webhooks"`
}

type Agent struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	UserID      string `json:"userId" yaml:"userId"`
}

type Service struct {
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	Status         string         `json:"status" yaml:"status"`
	Endpoints      Endpoints      `json:"endpoints" yaml:"endpoints"`
	Authentication Authentication `json:"authentication" yaml:"authentication"`
	Capabilities   []string       `json:"capabilities" yaml:"capabilities"`
	Scopes         []string       `json:"scopes" yaml:"scopes"`
}

type Endpoints struct {
	Read   string `json:"read" yaml:"read"`
	Write  string `json:"write" yaml:"write"`
	Search string `json:"search" yaml:"search"`
}

type Authentication struct {
	Type      string `json:"type" yaml:"type"`
	Key       string `json:"key" yaml:"key"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

type ContextConfig struct {
	BaseURL         string  `json:"baseUrl" yaml:"baseUrl"`
	Sources         Sources `json:"sources" yaml:"sources"`
	RefreshInterval int     `json:"refreshInterval" yaml:"refreshInterval"`
	Format          string  `json:"format" yaml:"format"`
}

type Sources struct {
	Projects       string `json:"projects" yaml:"projects"`
	Communications string `json:"communications" yaml:"communications"`
	Tasks          string `json:"tasks" yaml:"tasks"`
	Financials     string `json:"financials" yaml:"financials"`
}

type WebhookConfig struct {
	BaseURL        string      `json:"baseUrl" yaml:"baseUrl"`
	Authentication WebhookAuth `json:"authentication" yaml:"authentication"`
	TimeoutMs      int         `json:"timeout" yaml:"timeout"`
	Retries        int         `json:"retries" yaml:"retries"`
}

type WebhookAuth struct {
	Type      string `json:"type" yaml:"type"`
	Header    string `json:"header" yaml:"header"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

// Validation is the outcome of checking a manifest for completeness.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

var serviceTypes = map[string]string{
	"gmail": "email",
	"asana": "project_management",
	"xero":  "accounting",
}

var serviceCapabilities = map[string][]string{
	"gmail": {"read_emails", "send_emails", "search_emails", "get_email_stats", "list_unread"},
	"asana": {"read_tasks", "create_tasks", "update_tasks", "read_projects", "get_task_stats", "list_upcoming"},
	"xero":  {"read_invoices", "read_contacts", "read_accounts", "get_financial_summary", "list_overdue_invoices"},
}

// Generator builds manifests from a user's active connections.
type Generator struct {
	connections connection.Store
	baseURL     string
	now         func() time.Time
}

type Option func(*Generator)

// WithClock overrides the timestamp source, for deterministic output.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(conns connection.Store, baseURL string, opts ...Option) *Generator {
	g := &Generator{
		connections: conns,
		baseURL:     baseURL,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate builds a fresh manifest for the user. A user with no active
// connections still gets a manifest; it just carries an empty service list.
func (g *Generator) Generate(ctx context.Context, userID string) (*Config, error) {
	conns, err := g.connections.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load connections for manifest: %w", err)
	}

	services := make([]Service, 0, len(conns))
	for _, conn := range conns {
		scopes := conn.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		services = append(services, Service{
			Name:   conn.Service,
			Type:   serviceTypeOf(conn.Service),
			Status: "active",
			Endpoints: Endpoints{
				Read:   g.baseURL + "/webhook/" + conn.Service + "/read",
				Write:  g.baseURL + "/webhook/" + conn.Service + "/write",
				Search: g.baseURL + "/webhook/" + conn.Service + "/search",
			},
			Authentication: Authentication{
				Type:      "hmac",
				Key:       secretPlaceholder,
				Algorithm: "sha256",
			},
			Capabilities: capabilitiesOf(conn.Service),
			Scopes:       scopes,
		})
	}

	now := g.now()
	return &Config{
		MCPVersion:  manifestVersion,
		GeneratedAt: now,
		ExpiresAt:   now.Add(manifestTTL),
		Agent: Agent{
			Name:        "Sylo Studio Manager",
			Description: "Autonomous creative studio management agent",
			UserID:      userID,
		},
		Services: services,
		Context: ContextConfig{
			BaseURL: g.baseURL + "/context",
			Sources: Sources{
				Projects:       "/projects",
				Communications: "/communications",
				Tasks:          "/tasks",
				Financials:     "/financials",
			},
			RefreshInterval: 3600,
			Format:          "markdown",
		},
		Webhooks: WebhookConfig{
			BaseURL: g.baseURL + "/webhook",
			Authentication: WebhookAuth{
				Type:      "hmac",
				Header:    "X-Signature",
				Algorithm: "sha256",
			},
			TimeoutMs: 30000,
			Retries:   3,
		},
	}, nil
}

// Validate checks a manifest for structural problems and soft issues an
// operator should know about before handing it to an agent.
func (g *Generator) Validate(cfg *Config) Validation {
	errs := []string{}
	warnings := []string{}

	if cfg.MCPVersion == "" {
		errs = append(errs, "Missing mcpVersion")
	}
	if cfg.Agent.Name == "" {
		errs = append(errs, "Missing agent name")
	}
	if len(cfg.Services) == 0 {
		errs = append(errs, "No services configured")
	}

	for i, svc := range cfg.Services {
		if svc.Name == "" {
			errs = append(errs, fmt.Sprintf("Service %d: Missing name", i))
		}
		if svc.Endpoints.Read == "" {
			errs = append(errs, fmt.Sprintf("Service %s: Missing read endpoint", svc.Name))
		}
		if len(svc.Capabilities) == 0 {
			warnings = append(warnings, fmt.Sprintf("Service %s: No capabilities defined", svc.Name))
		}
	}

	if cfg.Webhooks.BaseURL == "" {
		errs = append(errs, "Missing webhook baseUrl")
	}
	if cfg.Webhooks.TimeoutMs > 60000 {
		warnings = append(warnings, "Webhook timeout exceeds recommended 60 seconds")
	}

	now := g.now()
	switch {
	case !cfg.ExpiresAt.After(now):
		errs = append(errs, "Configuration has expired")
	case cfg.ExpiresAt.Sub(now) < time.Hour:
		warnings = append(warnings, "Configuration expires soon")
	}

	return Validation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

func serviceTypeOf(service string) string {
	if t, ok := serviceTypes[service]; ok {
		return t
	}
	return "unknown"
}

func capabilitiesOf(service string) []string {
	if caps, ok := serviceCapabilities[service]; ok {
		return caps
	}
	return []string{}
}
