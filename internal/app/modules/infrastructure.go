package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/infrastructure"
	"agritrace.io/agritrace/internal/pkg/logger"
	"agritrace.io/agritrace/internal/pkg/worker"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	// DB is nil unless the audit store or dispatcher needs PostgreSQL.
	DB         *infrastructure.DatabaseClients
	Pools      *worker.Pools
	AuditStore audit.Store

	RiverClient *river.Client[pgx.Tx]
}

// NewInfrastructure initializes DB, pools and the audit store.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{Config: cfg}

	if cfg.Audit.NeedsPostgres() {
		db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		infra.DB = db

		// Dev-mode: auto-create audit tables + River queue tables.
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				infra.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		AuditPoolSize:   cfg.Worker.AuditPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools
	registerPoolMetrics(pools)

	store, err := infrastructure.OpenAuditStore(ctx, cfg.Audit, infra.pgxPool())
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init audit store: %w", err)
	}
	infra.AuditStore = store

	logger.Info("Audit store opened",
		zap.String("store", cfg.Audit.Store),
		zap.String("chain_scope", cfg.Audit.ChainScope),
		zap.String("dispatcher", cfg.Audit.Dispatcher),
	)
	return infra, nil
}

// registerPoolMetrics exposes pools on the default registry, replacing the
// collector of an earlier Infrastructure in the same process.
func registerPoolMetrics(pools *worker.Pools) {
	c := pools.Collector()
	err := prometheus.Register(c)
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		prometheus.Unregister(already.ExistingCollector)
		err = prometheus.Register(c)
	}
	if err != nil {
		logger.Warn("worker pool metrics not registered", zap.Error(err))
	}
}

func (i *Infrastructure) pgxPool() *pgxpool.Pool {
	if i.DB == nil {
		return nil
	}
	return i.DB.Pool
}

// InitRiver initializes River client on top of a prepared worker registry.
// It is a no-op without a database.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if i.DB == nil {
		return nil
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		prometheus.Unregister(i.Pools.Collector())
		i.Pools.Shutdown()
	}
	if i.AuditStore != nil {
		if err := i.AuditStore.Close(); err != nil {
			logger.Warn("audit store close returned error", zap.Error(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
