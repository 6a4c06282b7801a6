//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// application schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS oauth_connections (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	service       TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	scopes        TEXT[] NOT NULL DEFAULT '{}',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, service)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	service           TEXT NOT NULL,
	action            TEXT NOT NULL,
	resource          TEXT,
	parameters        JSONB,
	result            JSONB,
	status            TEXT NOT NULL,
	error_code        TEXT,
	error_message     TEXT,
	execution_time_ms BIGINT,
	retry_count       INTEGER NOT NULL DEFAULT 0,
	ip_address        TEXT,
	user_agent        TEXT,
	request_id        TEXT,
	executed_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs (user_id, executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_service ON audit_logs (service, executed_at);
`

// NewPostgresContainer starts a new PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sylo_test"),
		tcpostgres.WithUsername("sylo"),
		tcpostgres.WithPassword("sylo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        db,
	}
}

// Truncate wipes all application tables. Use between tests for isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `TRUNCATE audit_logs, oauth_connections`)
	return err
}
