// ABOUTME: SQLite implementation of the audit store using modernc.org/sqlite
// ABOUTME: Provides audit persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/2389/ward-gateway/internal/authz"
)

// SQLiteStore implements AuditStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite audit store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("SQLite audit store initialized", "path", path)
	return s, nil
}

// createSchema creates the audit table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			server TEXT NOT NULL DEFAULT '',
			decision TEXT NOT NULL DEFAULT '',
			decision_id TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			params_json TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			ts TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_tenant_ts ON audit_log(tenant_id, ts);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// AppendAudit appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var paramsJSON *string
	if e.Params != nil {
		data, err := json.Marshal(e.Params)
		if err != nil {
			return fmt.Errorf("marshaling audit params: %w", err)
		}
		str := string(data)
		paramsJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, tenant_id, actor_type, actor_id, action, server, decision, decision_id, result, reason, params_json, latency_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.TenantID,
		string(e.ActorType),
		e.ActorID,
		e.Action,
		e.Server,
		string(e.Decision),
		e.DecisionID,
		string(e.Result),
		e.Reason,
		paramsJSON,
		e.LatencyMS,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit entry",
		"id", e.ID,
		"tenant", e.TenantID,
		"action", e.Action,
		"result", e.Result,
	)
	return nil
}

const auditLogQuery = `
	SELECT audit_id, tenant_id, actor_type, actor_id, action, server, decision, decision_id, result, reason, params_json, latency_ms, ts
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR tenant_id = ?)
	  AND (? IS NULL OR actor_id = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR result = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAudit returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	var sinceStr, untilStr, resultStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339Nano)
		sinceStr = &v
	}
	if f.Until != nil {
		v := f.Until.UTC().Format(time.RFC3339Nano)
		untilStr = &v
	}
	if f.Result != nil {
		v := string(*f.Result)
		resultStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		sinceStr, sinceStr,
		untilStr, untilStr,
		f.TenantID, f.TenantID,
		f.ActorID, f.ActorID,
		f.Action, f.Action,
		resultStr, resultStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actorType, decision, result, tsStr string
	var paramsJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.TenantID,
		&actorType,
		&e.ActorID,
		&e.Action,
		&e.Server,
		&decision,
		&e.DecisionID,
		&result,
		&e.Reason,
		&paramsJSON,
		&e.LatencyMS,
		&tsStr,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.ActorType = authz.ActorType(actorType)
	e.Decision = authz.Decision(decision)
	e.Result = Result(result)

	var err error
	e.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if paramsJSON != nil {
		if err := json.Unmarshal([]byte(*paramsJSON), &e.Params); err != nil {
			return e, fmt.Errorf("unmarshaling params: %w", err)
		}
	}
	return e, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
