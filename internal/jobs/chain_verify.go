package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// DefaultChainVerifyInterval is how often every chain is re-verified.
const DefaultChainVerifyInterval = 24 * time.Hour

// ChainVerifyArgs is a periodic job that walks every audit chain.
type ChainVerifyArgs struct{}

// Kind returns the job kind identifier for chain verification.
func (ChainVerifyArgs) Kind() string { return "audit_chain_verify" }

// InsertOpts ensures at most one verification is enqueued per hour.
func (ChainVerifyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// ChainVerifyWorker verifies all chains and logs every broken one. A broken
// chain is a finding, not a job failure.
type ChainVerifyWorker struct {
	river.WorkerDefaults[ChainVerifyArgs]
	service *audit.Service
}

// NewChainVerifyWorker creates a ChainVerifyWorker.
func NewChainVerifyWorker(service *audit.Service) *ChainVerifyWorker {
	return &ChainVerifyWorker{service: service}
}

// Work runs the verification.
func (w *ChainVerifyWorker) Work(ctx context.Context, _ *river.Job[ChainVerifyArgs]) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("chain verify worker is not initialized")
	}

	results, err := w.service.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("verify audit chains: %w", err)
	}

	broken := 0
	for _, res := range results {
		if !res.Valid {
			broken++
		}
	}
	if broken > 0 {
		logger.Error("audit chain verification found broken chains",
			zap.Int("chains", len(results)),
			zap.Int("broken", broken),
		)
		return nil
	}
	logger.Info("audit chain verification completed",
		zap.Int("chains", len(results)),
	)
	return nil
}

// NewChainVerifyPeriodicJob schedules ChainVerifyArgs every interval and once
// on start. Non-positive intervals fall back to the default.
func NewChainVerifyPeriodicJob(interval time.Duration) *river.PeriodicJob {
	if interval <= 0 {
		interval = DefaultChainVerifyInterval
	}
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ChainVerifyArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
