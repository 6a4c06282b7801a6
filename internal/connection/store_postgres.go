package connection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists connections in the oauth_connections table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, conn *Connection) error {
	now := time.Now()
	id := conn.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO oauth_connections (id, user_id, service, connection_id, scopes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (user_id, service) DO UPDATE
		SET connection_id = EXCLUDED.connection_id,
		    scopes = EXCLUDED.scopes,
		    is_active = TRUE,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, id, conn.UserID, conn.Service, conn.ConnectionID, pq.Array(conn.Scopes), now)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, service string) (*Connection, error) {
	query := `
		SELECT id, user_id, service, connection_id, scopes, is_active, created_at, updated_at
		FROM oauth_connections
		WHERE user_id = $1 AND service = $2
	`
	conn := &Connection{}
	var scopes pq.StringArray
	err := s.db.QueryRowContext(ctx, query, userID, service).Scan(
		&conn.ID, &conn.UserID, &conn.Service, &conn.ConnectionID,
		&scopes, &conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	conn.Scopes = scopes
	return conn, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, userID string) ([]*Connection, error) {
	return s.list(ctx, userID, true)
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]*Connection, error) {
	return s.list(ctx, userID, false)
}

func (s *PostgresStore) list(ctx context.Context, userID string, activeOnly bool) ([]*Connection, error) {
	query := `
		SELECT id, user_id, service, connection_id, scopes, is_active, created_at, updated_at
		FROM oauth_connections
		WHERE user_id = $1
	`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY service"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []*Connection
	for rows.Next() {
		conn := &Connection{}
		var scopes pq.StringArray
		if err := rows.Scan(
			&conn.ID, &conn.UserID, &conn.Service, &conn.ConnectionID,
			&scopes, &conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conn.Scopes = scopes
		out = append(out, conn)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, userID, service string) error {
	query := `
		UPDATE oauth_connections
		SET is_active = FALSE, updated_at = $3
		WHERE user_id = $1 AND service = $2
	`
	res, err := s.db.ExecContext(ctx, query, userID, service, time.Now())
	if err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
