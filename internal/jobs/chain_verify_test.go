package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/repository/memory"
)

func TestChainVerifyArgs_KindAndInsertOpts(t *testing.T) {
	args := ChainVerifyArgs{}
	if got := args.Kind(); got != "audit_chain_verify" {
		t.Fatalf("Kind() = %q, want %q", got, "audit_chain_verify")
	}

	opts := args.InsertOpts()
	if opts.MaxAttempts != 1 {
		t.Fatalf("InsertOpts().MaxAttempts = %d, want 1", opts.MaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod != time.Hour {
		t.Fatalf("InsertOpts().UniqueOpts.ByPeriod = %s, want %s", opts.UniqueOpts.ByPeriod, time.Hour)
	}
}

func TestChainVerifyWorker_Work(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := audit.NewRecorder(store)
	for i := 0; i < 3; i++ {
		_, err := rec.Apply(ctx, testChange())
		require.NoError(t, err)
	}

	w := NewChainVerifyWorker(audit.NewService(store, audit.ScopePerTenant))
	job := &river.Job[ChainVerifyArgs]{JobRow: &rivertype.JobRow{ID: 9}}

	require.NoError(t, w.Work(ctx, job))

	// A broken chain is reported in logs, not as a job failure.
	require.True(t, store.Tamper(2, func(e *audit.Event) { e.Description = "forged" }))
	require.NoError(t, w.Work(ctx, job))

	results, err := audit.NewService(store, audit.ScopePerTenant).VerifyAll(ctx)
	require.NoError(t, err)
	assert.False(t, audit.AllValid(results))
}

func TestChainVerifyWorker_Work_NilService(t *testing.T) {
	w := NewChainVerifyWorker(nil)
	if err := w.Work(context.Background(), &river.Job[ChainVerifyArgs]{JobRow: &rivertype.JobRow{}}); err == nil {
		t.Fatal("Work() error = nil, want not initialized error")
	}
}

func TestNewChainVerifyPeriodicJob(t *testing.T) {
	assert.NotNil(t, NewChainVerifyPeriodicJob(time.Hour))
	assert.NotNil(t, NewChainVerifyPeriodicJob(0))
}
