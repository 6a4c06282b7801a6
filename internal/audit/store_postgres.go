package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists audit entries in the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	executedAt := e.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	params, err := marshalJSONB(e.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	result, err := marshalJSONB(e.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, user_id, service, action, resource, parameters, result,
			status, error_code, error_message, execution_time_ms, retry_count,
			ip_address, user_agent, request_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, e.UserID, e.Service, e.Action, nullString(e.Resource), params, result,
		string(e.Status), nullString(e.ErrorCode), nullString(e.ErrorMessage),
		e.ExecutionTimeMs, e.RetryCount,
		nullString(e.IPAddress), nullString(e.UserAgent), nullString(e.RequestID),
		executedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, f Filter) ([]*Entry, error) {
	query := `
		SELECT id, user_id, service, action, resource, parameters, result,
		       status, error_code, error_message, execution_time_ms, retry_count,
		       ip_address, user_agent, request_id, executed_at
		FROM audit_logs
		WHERE user_id = $1`
	args := []any{userID}

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if f.Service != "" {
		add("service =", f.Service)
	}
	if f.Action != "" {
		add("action =", f.Action)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if !f.StartDate.IsZero() {
		add("executed_at >=", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		add("executed_at <=", f.EndDate)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY executed_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) ListByService(ctx context.Context, service string, start, end time.Time) ([]*Entry, error) {
	query := `
		SELECT id, user_id, service, action, resource, parameters, result,
		       status, error_code, error_message, execution_time_ms, retry_count,
		       ip_address, user_agent, request_id, executed_at
		FROM audit_logs
		WHERE service = $1`
	args := []any{service}
	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND executed_at >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND executed_at <= $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs by service: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old audit logs: %w", err)
	}
	return int(n), nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		var (
			e                 Entry
			resource, errCode sql.NullString
			errMsg, ip, ua    sql.NullString
			reqID             sql.NullString
			params, result    []byte
			execMs            sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Service, &e.Action, &resource, &params, &result,
			&e.Status, &errCode, &errMsg, &execMs, &e.RetryCount,
			&ip, &ua, &reqID, &e.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Resource = resource.String
		e.ErrorCode = errCode.String
		e.ErrorMessage = errMsg.String
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		e.RequestID = reqID.String
		if execMs.Valid {
			ms := execMs.Int64
			e.ExecutionTimeMs = &ms
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &e.Parameters); err != nil {
				return nil, fmt.Errorf("unmarshal parameters: %w", err)
			}
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &e.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return out, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
