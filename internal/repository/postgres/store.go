// Package postgres is the production audit.Store on PostgreSQL (pgx/v5).
//
// Events live in audit_events; audit_chain_tails holds one row per chain
// scope. Append locks the scope's tail row, so writers on every replica are
// linearized by the database and a stale expected tail is detected inside the
// same transaction that would have advanced it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agritrace.io/agritrace/internal/audit"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
    id              BIGSERIAL PRIMARY KEY,
    chain_scope     TEXT        NOT NULL,
    tenant_id       BIGINT,
    entity_type     TEXT        NOT NULL,
    entity_id       BIGINT,
    entity_code     TEXT        NOT NULL,
    operation_type  TEXT        NOT NULL CHECK (operation_type IN ('CREATE', 'UPDATE', 'DELETE')),
    description     TEXT        NOT NULL,
    before_state    TEXT,
    after_state     TEXT,
    changed_fields  TEXT[],
    actor_id        BIGINT      NOT NULL,
    self_hash       TEXT        NOT NULL,
    previous_hash   TEXT,
    chained         BOOLEAN     NOT NULL DEFAULT TRUE,
    occurred_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_scope  ON audit_events (chain_scope, id);
CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events (tenant_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events (entity_type, entity_id, id DESC);

CREATE TABLE IF NOT EXISTS audit_chain_tails (
    chain_scope TEXT PRIMARY KEY,
    tail_hash   TEXT,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE OR REPLACE FUNCTION audit_events_append_only() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'audit_events is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS audit_events_append_only ON audit_events;
CREATE TRIGGER audit_events_append_only
    BEFORE UPDATE OR DELETE ON audit_events
    FOR EACH ROW EXECUTE FUNCTION audit_events_append_only();
`

const eventColumns = `id, chain_scope, tenant_id, entity_type, entity_id, entity_code, operation_type,
    description, before_state, after_state, changed_fields, actor_id, self_hash, previous_hash,
    chained, occurred_at`

// Store is a PostgreSQL-backed audit.Store. It does not own the pool.
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ audit.Store = (*Store)(nil)

// New wraps pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the audit tables, indexes and the append-only trigger.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *Store) Tail(ctx context.Context, scope string) (*string, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	return tail(ctx, s.pool, scope)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func tail(ctx context.Context, q rowQuerier, scope string) (*string, error) {
	var h *string
	err := q.QueryRow(ctx, `SELECT tail_hash FROM audit_chain_tails WHERE chain_scope = $1`, scope).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tail: %w", err)
	}
	return h, nil
}

func (s *Store) Append(ctx context.Context, e *audit.Event, expectedPrev *string) error {
	if s.closed.Load() {
		return audit.ErrStoreClosed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO audit_chain_tails (chain_scope) VALUES ($1) ON CONFLICT DO NOTHING`, e.ChainScope); err != nil {
		return fmt.Errorf("ensure tail row: %w", err)
	}
	var current *string
	if err := tx.QueryRow(ctx, `SELECT tail_hash FROM audit_chain_tails WHERE chain_scope = $1 FOR UPDATE`, e.ChainScope).Scan(&current); err != nil {
		return fmt.Errorf("lock tail: %w", err)
	}
	if !audit.SameTail(current, expectedPrev) {
		return audit.ErrTailMismatch
	}

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO audit_events (
    chain_scope, tenant_id, entity_type, entity_id, entity_code, operation_type, description,
    before_state, after_state, changed_fields, actor_id, self_hash, previous_hash, chained, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`,
		e.ChainScope, e.TenantID, e.EntityType, e.EntityID, e.EntityCode, string(e.OperationType), e.Description,
		e.BeforeState, e.AfterState, changedFields(e.ChangedFields), e.ActorID, e.SelfHash, e.PreviousHash, e.Chained,
		audit.NormalizeTime(e.OccurredAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	if e.Chained {
		if _, err := tx.Exec(ctx, `UPDATE audit_chain_tails SET tail_hash = $2, updated_at = now() WHERE chain_scope = $1`,
			e.ChainScope, e.SelfHash); err != nil {
			return fmt.Errorf("advance tail: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	e.ID = id
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, tenant *int64, entityType string, entityID int64) ([]audit.Event, error) {
	return s.query(ctx, s.pool, `SELECT `+eventColumns+` FROM audit_events
WHERE ($1::bigint IS NULL OR tenant_id = $1) AND entity_type = $2 AND entity_id = $3
ORDER BY id DESC`, tenant, entityType, entityID)
}

func (s *Store) ListByTenant(ctx context.Context, tenant *int64) ([]audit.Event, error) {
	return s.query(ctx, s.pool, `SELECT `+eventColumns+` FROM audit_events
WHERE ($1::bigint IS NULL OR tenant_id = $1)
ORDER BY id DESC`, tenant)
}

// ListChain reads in a REPEATABLE READ, read-only transaction so a chain
// extended mid-scan is not seen half-written.
func (s *Store) ListChain(ctx context.Context, scope string) ([]audit.Event, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin chain read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return s.query(ctx, tx, `SELECT `+eventColumns+` FROM audit_events
WHERE chain_scope = $1 ORDER BY id ASC`, scope)
}

// ChainSnapshot reads the tail and the events in one REPEATABLE READ
// transaction, so both come from the same snapshot.
func (s *Store) ChainSnapshot(ctx context.Context, scope string) (audit.Chain, error) {
	if s.closed.Load() {
		return audit.Chain{}, audit.ErrStoreClosed
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return audit.Chain{}, fmt.Errorf("begin chain read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := audit.Chain{Scope: scope}
	if c.Tail, err = tail(ctx, tx, scope); err != nil {
		return audit.Chain{}, err
	}
	if c.Events, err = s.query(ctx, tx, `SELECT `+eventColumns+` FROM audit_events
WHERE chain_scope = $1 ORDER BY id ASC`, scope); err != nil {
		return audit.Chain{}, err
	}
	return c, nil
}

func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	rows, err := s.pool.Query(ctx, `SELECT chain_scope FROM audit_events
UNION
SELECT chain_scope FROM audit_chain_tails WHERE tail_hash IS NOT NULL
ORDER BY chain_scope`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	scopes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan scopes: %w", err)
	}
	if scopes == nil {
		scopes = []string{}
	}
	return scopes, nil
}

// Close marks the store closed. The shared pool is closed by its owner.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) query(ctx context.Context, q querier, sql string, args ...any) ([]audit.Event, error) {
	if s.closed.Load() {
		return nil, audit.ErrStoreClosed
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (audit.Event, error) {
	var (
		e  audit.Event
		op string
	)
	err := row.Scan(&e.ID, &e.ChainScope, &e.TenantID, &e.EntityType, &e.EntityID, &e.EntityCode, &op,
		&e.Description, &e.BeforeState, &e.AfterState, &e.ChangedFields, &e.ActorID, &e.SelfHash,
		&e.PreviousHash, &e.Chained, &e.OccurredAt)
	e.OperationType = audit.OperationType(op)
	e.OccurredAt = e.OccurredAt.UTC()
	return e, err
}

func changedFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	return fields
}
