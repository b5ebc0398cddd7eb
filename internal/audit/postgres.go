package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Queryer is the part of pgxpool.Pool, pgxpool.Conn and pgx.Tx the store
// uses.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Schema creates the audit table. The rules turn UPDATE and DELETE into
// no-ops so the table stays append-only even for direct SQL access.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	log_id              UUID PRIMARY KEY,
	timestamp           TIMESTAMPTZ NOT NULL,
	user_id             TEXT NOT NULL,
	session_id          TEXT NOT NULL,
	user_command        TEXT NOT NULL,
	parsed_intent       JSONB NOT NULL DEFAULT '{}',
	openshift_operation TEXT NOT NULL,
	operation_result    JSONB NOT NULL DEFAULT '{}',
	operation_error     TEXT,
	duration_ms         BIGINT NOT NULL,
	ip_address          TEXT,
	user_agent          TEXT
);
CREATE INDEX IF NOT EXISTS audit_logs_user_ts ON audit_logs (user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS audit_logs_session_ts ON audit_logs (session_id, timestamp);
CREATE OR REPLACE RULE audit_logs_no_update AS ON UPDATE TO audit_logs DO INSTEAD NOTHING;
CREATE OR REPLACE RULE audit_logs_no_delete AS ON DELETE TO audit_logs DO INSTEAD NOTHING;
`

const columns = `log_id, timestamp, user_id, session_id, user_command, parsed_intent,
	openshift_operation, operation_result, operation_error, duration_ms, ip_address, user_agent`

// PostgresStore persists entries to the audit_logs table.
type PostgresStore struct {
	db Queryer
}

var _ Store = &PostgresStore{}

func NewPostgresStore(db Queryer) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pool for url and ensures the schema exists.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, *PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, store, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `SELECT 1`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	fill(e)
	intent, err := jsonObject(e.ParsedIntent)
	if err != nil {
		return err
	}
	result, err := jsonObject(e.Result)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Timestamp, e.UserID, e.SessionID, e.UserCommand, intent,
		e.Operation, result, nullable(e.Error), e.Duration.Milliseconds(), nullable(e.IPAddress), nullable(e.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserActivity(ctx context.Context, userID string, since, until time.Time, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM audit_logs
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR timestamp <= $3)
		ORDER BY timestamp DESC LIMIT $4`,
		userID, nullableTime(since), nullableTime(until), limitOr(limit, 100))
}

func (s *PostgresStore) SessionTrail(ctx context.Context, sessionID string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM audit_logs WHERE session_id = $1 ORDER BY timestamp ASC`,
		sessionID)
}

func (s *PostgresStore) FailedOperations(ctx context.Context, since, until time.Time, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM audit_logs
		WHERE operation_error IS NOT NULL
		  AND ($1::timestamptz IS NULL OR timestamp >= $1)
		  AND ($2::timestamptz IS NULL OR timestamp <= $2)
		ORDER BY timestamp DESC LIMIT $3`,
		nullableTime(since), nullableTime(until), limitOr(limit, 50))
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			intent, result     []byte
			errText, ip, agent *string
			durationMillis     int64
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.SessionID, &e.UserCommand, &intent,
			&e.Operation, &result, &errText, &durationMillis, &ip, &agent); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal(intent, &e.ParsedIntent); err != nil {
			return nil, fmt.Errorf("failed to decode parsed intent: %w", err)
		}
		if err := json.Unmarshal(result, &e.Result); err != nil {
			return nil, fmt.Errorf("failed to decode operation result: %w", err)
		}
		e.Error, e.IPAddress, e.UserAgent = deref(errText), deref(ip), deref(agent)
		e.Duration = time.Duration(durationMillis) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

func jsonObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit payload: %w", err)
	}
	return b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func limitOr(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
