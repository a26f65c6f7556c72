package infrastructure

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/repository/memory"
	"agritrace.io/agritrace/internal/repository/postgres"
	"agritrace.io/agritrace/internal/repository/sqlite"
)

// OpenAuditStore opens the audit store selected by cfg.Store. pool is only
// used by the postgres driver.
func OpenAuditStore(ctx context.Context, cfg config.AuditConfig, pool *pgxpool.Pool) (audit.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres audit store requires a database pool")
		}
		return postgres.New(pool), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit store: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown audit store %q", cfg.Store)
	}
}
