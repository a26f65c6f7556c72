// Package infrastructure provides database, job queue and audit store setup.
//
// One pgxpool is shared by the PostgreSQL audit store and River so an audit
// append and a job insert can share a transaction.
//
// Import Path: agritrace.io/agritrace/internal/infrastructure
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/jobs"
	"agritrace.io/agritrace/internal/pkg/logger"
	"agritrace.io/agritrace/internal/repository/postgres"
)

// DatabaseClients contains all database-related clients.
//
// Coding Standard: Use this struct to manage connection pools.
// Do not create separate pgxpool.New() calls per component.
type DatabaseClients struct {
	// Pool is the shared connection pool (audit store + River).
	Pool *pgxpool.Pool

	// RiverClient is the River job queue client backed by the shared pool.
	// nil until InitRiverClient runs.
	RiverClient *river.Client[pgx.Tx]
}

// NewDatabaseClients creates database clients with a shared connection pool.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	// Audit timestamps are stored and hashed in UTC.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &DatabaseClients{Pool: pool}, nil
}

// AutoMigrate creates the audit tables and River's queue tables.
// Only use in development; production runs migrations out of band.
func (c *DatabaseClients) AutoMigrate(ctx context.Context) error {
	logger.Info("Running audit schema migration...")
	if err := postgres.New(c.Pool).Migrate(ctx); err != nil {
		return fmt.Errorf("audit schema migrate: %w", err)
	}
	logger.Info("Audit schema migration completed")

	logger.Info("Running River migration...")
	migrator, err := rivermigrate.New(riverpgxv5.New(c.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("River migration completed",
			zap.Int("versions_applied", len(res.Versions)),
		)
	} else {
		logger.Info("River migration: already up-to-date")
	}

	return nil
}

// InitRiverClient creates a River client with registered workers.
// Audit appends get their own queue so a backlog never delays other jobs.
func (c *DatabaseClients) InitRiverClient(workers *river.Workers, cfg config.RiverConfig) error {
	riverClient, err := river.NewClient(riverpgxv5.New(c.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
			jobs.QueueAudit:    {MaxWorkers: cfg.AuditMaxWorkers},
		},
		Workers:                     workers,
		CompletedJobRetentionPeriod: cfg.CompletedJobRetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	c.RiverClient = riverClient
	logger.Info("River client initialized",
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("audit_max_workers", cfg.AuditMaxWorkers),
	)
	return nil
}

// Close closes the connection pool.
func (c *DatabaseClients) Close() {
	if c == nil {
		return
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
