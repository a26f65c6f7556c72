package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/api/handlers"
	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/jobs"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// AuditModule owns the audit pipeline: interceptor, dispatcher, recorder
// and read service.
type AuditModule struct {
	infra    *Infrastructure
	recorder *audit.Recorder
	service  *audit.Service

	queue       *audit.QueueDispatcher
	interceptor *audit.Interceptor
	lifecycle   *domain.LifecycleDispatcher
}

// NewAuditModule builds the recorder and read service. Call Connect once
// River is initialized to start dispatching.
func NewAuditModule(infra *Infrastructure) (*AuditModule, error) {
	cfg := infra.Config.Audit

	alg, err := audit.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	scopes, err := audit.ParseScopeMode(cfg.ChainScope)
	if err != nil {
		return nil, err
	}

	return &AuditModule{
		infra: infra,
		recorder: audit.NewRecorder(infra.AuditStore,
			audit.WithAlgorithm(alg),
			audit.WithScopeMode(scopes),
			audit.WithRetry(cfg.AppendRetries, cfg.AppendBackoff),
		),
		service:   audit.NewService(infra.AuditStore, scopes),
		lifecycle: domain.NewLifecycleDispatcher(),
	}, nil
}

// Name implements Module.
func (m *AuditModule) Name() string { return "audit" }

// RegisterWorkers implements Module.
func (m *AuditModule) RegisterWorkers(workers *river.Workers) {
	river.AddWorker(workers, jobs.NewAuditRecordWorker(m.recorder))
	river.AddWorker(workers, jobs.NewChainVerifyWorker(m.service))
}

// Connect selects the dispatcher and registers the interceptor on the
// lifecycle hooks.
func (m *AuditModule) Connect() error {
	if m.interceptor != nil {
		return nil
	}
	cfg := m.infra.Config.Audit

	var dispatcher audit.Dispatcher
	switch cfg.Dispatcher {
	case config.DispatcherRiver:
		if m.infra.RiverClient == nil {
			return fmt.Errorf("river dispatcher requires an initialized river client")
		}
		dispatcher = jobs.NewRiverDispatcher(m.infra.RiverClient)
	default:
		policy, err := audit.ParseOverflowPolicy(cfg.OverflowPolicy)
		if err != nil {
			return err
		}
		m.queue = audit.NewQueueDispatcher(m.recorder, audit.QueueConfig{
			Size:           cfg.QueueSize,
			Workers:        cfg.QueueWorkers,
			Policy:         policy,
			EnqueueTimeout: cfg.EnqueueTimeout,
		})
		if err := m.queue.Start(m.infra.Pools); err != nil {
			return fmt.Errorf("start audit queue: %w", err)
		}
		dispatcher = m.queue
	}

	m.interceptor = audit.NewInterceptor(dispatcher, audit.ContextActors)
	m.lifecycle.Register(m.interceptor)
	logger.Info("Audit interceptor connected", zap.String("dispatcher", cfg.Dispatcher))
	return nil
}

// Lifecycle returns the hooks domain writers notify after each change.
func (m *AuditModule) Lifecycle() *domain.LifecycleDispatcher { return m.lifecycle }

// Service returns the audit read service.
func (m *AuditModule) Service() *audit.Service { return m.service }

// ContributeServerDeps implements Module.
func (m *AuditModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Audit = m.service
	store := m.infra.AuditStore
	deps.ReadinessChecks = append(deps.ReadinessChecks, handlers.ReadinessCheck{
		Name: "audit_store",
		Check: func(ctx context.Context) error {
			_, err := store.Scopes(ctx)
			return err
		},
	})
}

// Shutdown drains the in-process queue; changes already dispatched still
// reach the store.
func (m *AuditModule) Shutdown(ctx context.Context) error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Close(ctx)
}
