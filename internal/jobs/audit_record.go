// Package jobs defines River Queue job types for durable audit processing.
//
// The audit_record job carries a whole audit.Change: the change is small and
// immutable, so there is nothing to claim-check.
//
// Import Path: agritrace.io/agritrace/internal/jobs
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// QueueAudit is the River queue audit appends run on.
const QueueAudit = "audit"

// ---------------------------------------------------------------------------
// Job Args
// ---------------------------------------------------------------------------

// AuditRecordArgs asks a worker to append one change to its chain.
type AuditRecordArgs struct {
	Change audit.Change `json:"change"`
}

// Kind returns the job kind identifier for audit appends.
func (AuditRecordArgs) Kind() string { return "audit_record" }

// InsertOpts returns default insert options for audit appends.
func (AuditRecordArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueAudit,
		MaxAttempts: 10,
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

// AuditRecordWorker appends dispatched changes through the recorder.
// River retries failed appends; records that can never be appended are
// cancelled instead.
type AuditRecordWorker struct {
	river.WorkerDefaults[AuditRecordArgs]
	recorder audit.Applier
}

// NewAuditRecordWorker creates an AuditRecordWorker.
func NewAuditRecordWorker(recorder audit.Applier) *AuditRecordWorker {
	return &AuditRecordWorker{recorder: recorder}
}

// Work appends the job's change.
func (w *AuditRecordWorker) Work(ctx context.Context, job *river.Job[AuditRecordArgs]) error {
	if w == nil || w.recorder == nil {
		return fmt.Errorf("audit record worker is not initialized")
	}

	c := job.Args.Change
	if !c.Operation.Valid() || c.EntityType == "" {
		return river.JobCancel(fmt.Errorf("invalid audit change %q on %q", c.Operation, c.EntityType))
	}

	e, err := w.recorder.Apply(ctx, c)
	if err != nil {
		if errors.Is(err, audit.ErrNoActor) {
			return river.JobCancel(err)
		}
		return fmt.Errorf("record %s %s: %w", c.Operation, c.EntityCode, err)
	}

	logger.Debug("Audit event recorded",
		zap.Int64("job_id", job.ID),
		zap.Int64("event_id", e.ID),
		zap.String("scope", e.ChainScope),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// JobInserter is the subset of the River client the dispatcher needs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// RiverDispatcher hands changes to River. Enqueued changes survive restarts
// and are appended at least once.
type RiverDispatcher struct {
	client JobInserter
}

var _ audit.Dispatcher = (*RiverDispatcher)(nil)

// NewRiverDispatcher creates a RiverDispatcher.
func NewRiverDispatcher(client JobInserter) *RiverDispatcher {
	return &RiverDispatcher{client: client}
}

// Dispatch enqueues an audit_record job.
func (d *RiverDispatcher) Dispatch(ctx context.Context, c audit.Change) error {
	if d == nil || d.client == nil {
		return audit.ErrQueueClosed
	}
	if _, err := d.client.Insert(ctx, AuditRecordArgs{Change: c}, nil); err != nil {
		return fmt.Errorf("enqueue audit_record: %w", err)
	}
	return nil
}
