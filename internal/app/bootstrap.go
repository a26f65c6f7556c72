// Package app is the composition root; bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"agritrace.io/agritrace/internal/api/handlers"
	"agritrace.io/agritrace/internal/app/modules"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/infrastructure"
	"agritrace.io/agritrace/internal/jobs"
	"agritrace.io/agritrace/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module

	// Lifecycle receives create/update/delete notifications from domain
	// writers; the audit interceptor is registered on it.
	Lifecycle *domain.LifecycleDispatcher

	infra *modules.Infrastructure
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	auditModule, err := modules.NewAuditModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init audit module: %w", err)
	}
	allModules := []modules.Module{auditModule}

	workers := river.NewWorkers()
	for _, mod := range allModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	// Full chain verification: on the configured interval and once on startup.
	if infra.RiverClient != nil {
		infra.RiverClient.PeriodicJobs().Add(jobs.NewChainVerifyPeriodicJob(cfg.River.ChainVerifyInterval))
	}

	if err := auditModule.Connect(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("connect audit dispatcher: %w", err)
	}

	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:    cfg,
		Router:    newRouter(cfg, server, serverDeps.JWTCfg),
		DB:        infra.DB,
		Pools:     infra.Pools,
		Modules:   allModules,
		Lifecycle: auditModule.Lifecycle(),
		infra:     infra,
	}, nil
}
