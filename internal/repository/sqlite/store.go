// Package sqlite is an audit.Store on an embedded SQLite file
// (modernc.org/sqlite, no CGO). It suits single-node deployments and the
// auditctl tool.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"agritrace.io/agritrace/internal/audit"
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS audit_events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    chain_scope     TEXT NOT NULL,
    tenant_id       INTEGER,
    entity_type     TEXT NOT NULL,
    entity_id       INTEGER,
    entity_code     TEXT NOT NULL,
    operation_type  TEXT NOT NULL,
    description     TEXT NOT NULL,
    before_state    TEXT,
    after_state     TEXT,
    changed_fields  TEXT,
    actor_id        INTEGER NOT NULL,
    self_hash       TEXT NOT NULL,
    previous_hash   TEXT,
    chained         INTEGER NOT NULL DEFAULT 1,
    occurred_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_scope  ON audit_events(chain_scope, id);
CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events(tenant_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id, id DESC);

CREATE TABLE IF NOT EXISTS audit_chain_tails (
    chain_scope TEXT PRIMARY KEY,
    tail_hash   TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TRIGGER IF NOT EXISTS audit_events_no_update BEFORE UPDATE ON audit_events
BEGIN
    SELECT RAISE(ABORT, 'audit_events is append-only');
END;
CREATE TRIGGER IF NOT EXISTS audit_events_no_delete BEFORE DELETE ON audit_events
BEGIN
    SELECT RAISE(ABORT, 'audit_events is append-only');
END;
`,
	},
}

const eventColumns = `id, chain_scope, tenant_id, entity_type, entity_id, entity_code, operation_type,
    description, before_state, after_state, changed_fields, actor_id, self_hash, previous_hash,
    chained, occurred_at`

// Store is a SQLite-backed audit.Store.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ audit.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection serializes writers, so Append's read-compare-write
	// cannot interleave inside this process.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Tail(ctx context.Context, scope string) (*string, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	return tail(ctx, s.db, scope)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tail(ctx context.Context, q queryRower, scope string) (*string, error) {
	var h string
	err := q.QueryRowContext(ctx, `SELECT tail_hash FROM audit_chain_tails WHERE chain_scope = ?`, scope).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tail: %w", err)
	}
	return &h, nil
}

func (s *Store) Append(ctx context.Context, e *audit.Event, expectedPrev *string) error {
	if s.closed.Load() {
		return audit.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := tail(ctx, tx, e.ChainScope)
	if err != nil {
		return err
	}
	if !audit.SameTail(current, expectedPrev) {
		return audit.ErrTailMismatch
	}

	changed, err := encodeFields(e.ChangedFields)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO audit_events (
    chain_scope, tenant_id, entity_type, entity_id, entity_code, operation_type, description,
    before_state, after_state, changed_fields, actor_id, self_hash, previous_hash, chained, occurred_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ChainScope, e.TenantID, e.EntityType, e.EntityID, e.EntityCode, string(e.OperationType), e.Description,
		e.BeforeState, e.AfterState, changed, e.ActorID, e.SelfHash, e.PreviousHash, e.Chained,
		audit.NormalizeTime(e.OccurredAt).Format(audit.TimestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read audit event id: %w", err)
	}

	if e.Chained {
		if _, err := tx.ExecContext(ctx, `INSERT INTO audit_chain_tails (chain_scope, tail_hash, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(chain_scope) DO UPDATE SET tail_hash = excluded.tail_hash, updated_at = excluded.updated_at`,
			e.ChainScope, e.SelfHash, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("advance tail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	e.ID = id
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, tenant *int64, entityType string, entityID int64) ([]audit.Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM audit_events
WHERE (? IS NULL OR tenant_id = ?) AND entity_type = ? AND entity_id = ?
ORDER BY id DESC`, tenant, tenant, entityType, entityID)
}

func (s *Store) ListByTenant(ctx context.Context, tenant *int64) ([]audit.Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM audit_events
WHERE (? IS NULL OR tenant_id = ?)
ORDER BY id DESC`, tenant, tenant)
}

// ListChain reads inside one transaction so the walk sees a single snapshot.
func (s *Store) ListChain(ctx context.Context, scope string) ([]audit.Event, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin chain read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return chainEvents(ctx, tx, scope)
}

// ChainSnapshot reads the tail and the events in one transaction.
func (s *Store) ChainSnapshot(ctx context.Context, scope string) (audit.Chain, error) {
	if s.closed.Load() {
		return audit.Chain{}, audit.ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return audit.Chain{}, fmt.Errorf("begin chain read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := audit.Chain{Scope: scope}
	if c.Tail, err = tail(ctx, tx, scope); err != nil {
		return audit.Chain{}, err
	}
	if c.Events, err = chainEvents(ctx, tx, scope); err != nil {
		return audit.Chain{}, err
	}
	return c, nil
}

func chainEvents(ctx context.Context, tx *sql.Tx, scope string) ([]audit.Event, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+eventColumns+` FROM audit_events
WHERE chain_scope = ? ORDER BY id ASC`, scope)
	if err != nil {
		return nil, fmt.Errorf("query chain: %w", err)
	}
	return scanEvents(rows)
}

func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chain_scope FROM audit_events
UNION
SELECT chain_scope FROM audit_chain_tails
ORDER BY chain_scope`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	scopes := make([]string, 0)
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]audit.Event, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e          audit.Event
			tenantID   sql.NullInt64
			entityID   sql.NullInt64
			op         string
			before     sql.NullString
			after      sql.NullString
			changed    sql.NullString
			prev       sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &e.ChainScope, &tenantID, &e.EntityType, &entityID, &e.EntityCode, &op,
			&e.Description, &before, &after, &changed, &e.ActorID, &e.SelfHash, &prev,
			&e.Chained, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		e.OperationType = audit.OperationType(op)
		e.TenantID = int64Ptr(tenantID)
		e.EntityID = int64Ptr(entityID)
		e.BeforeState = stringPtr(before)
		e.AfterState = stringPtr(after)
		e.PreviousHash = stringPtr(prev)
		if changed.Valid {
			if err := json.Unmarshal([]byte(changed.String), &e.ChangedFields); err != nil {
				return nil, fmt.Errorf("decode changed_fields of event %d: %w", e.ID, err)
			}
		}
		t, err := time.Parse(audit.TimestampLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at of event %d: %w", e.ID, err)
		}
		e.OccurredAt = t.UTC()

		events = append(events, e)
	}
	return events, rows.Err()
}

func encodeFields(fields []string) (*string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode changed_fields: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
