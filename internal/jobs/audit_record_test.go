package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/repository/memory"
)

func testChange() audit.Change {
	tenant, id := int64(3), int64(12)
	after := `{"codigo":"LOTE-001"}`
	return audit.Change{
		Operation: audit.OpCreate,
		Record: audit.Record{
			TenantID:    &tenant,
			EntityType:  "LOTE",
			EntityID:    &id,
			EntityCode:  "LOTE-001",
			Description: "Creación de lote: LOTE-001",
			AfterState:  &after,
			ActorID:     7,
		},
	}
}

func newJob(c audit.Change) *river.Job[AuditRecordArgs] {
	return &river.Job[AuditRecordArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args:   AuditRecordArgs{Change: c},
	}
}

type applierFunc func(ctx context.Context, c audit.Change) (*audit.Event, error)

func (f applierFunc) Apply(ctx context.Context, c audit.Change) (*audit.Event, error) { return f(ctx, c) }

func TestAuditRecordArgs_KindAndInsertOpts(t *testing.T) {
	args := AuditRecordArgs{}
	if got := args.Kind(); got != "audit_record" {
		t.Fatalf("Kind() = %q, want %q", got, "audit_record")
	}

	opts := args.InsertOpts()
	if opts.Queue != QueueAudit {
		t.Fatalf("InsertOpts().Queue = %q, want %q", opts.Queue, QueueAudit)
	}
	if opts.MaxAttempts <= 1 {
		t.Fatalf("InsertOpts().MaxAttempts = %d, want retries", opts.MaxAttempts)
	}
}

func TestAuditRecordWorker_Work_AppendsEvent(t *testing.T) {
	store := memory.New()
	w := NewAuditRecordWorker(audit.NewRecorder(store))

	require.NoError(t, w.Work(context.Background(), newJob(testChange())))

	events, err := store.ListChain(context.Background(), audit.TenantScope(3))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "LOTE-001", events[0].EntityCode)
	assert.True(t, audit.EventIntegrity(&events[0]))
}

func TestAuditRecordWorker_Work_NilRecorder(t *testing.T) {
	var w *AuditRecordWorker
	if err := w.Work(context.Background(), newJob(testChange())); err == nil {
		t.Fatal("Work() error = nil, want not initialized error")
	}
}

func TestAuditRecordWorker_Work_CancelsInvalidChange(t *testing.T) {
	called := false
	w := NewAuditRecordWorker(applierFunc(func(context.Context, audit.Change) (*audit.Event, error) {
		called = true
		return nil, nil
	}))

	c := testChange()
	c.Operation = "PURGE"
	err := w.Work(context.Background(), newJob(c))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid audit change")
	assert.False(t, called)
}

func TestAuditRecordWorker_Work_CancelsWithoutActor(t *testing.T) {
	w := NewAuditRecordWorker(applierFunc(func(context.Context, audit.Change) (*audit.Event, error) {
		return nil, audit.ErrNoActor
	}))

	err := w.Work(context.Background(), newJob(testChange()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, audit.ErrNoActor))
}

func TestAuditRecordWorker_Work_RetriesStoreFailure(t *testing.T) {
	store := memory.New()
	store.FailAppend = errors.New("disk full")
	w := NewAuditRecordWorker(audit.NewRecorder(store))

	err := w.Work(context.Background(), newJob(testChange()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, store.Len())
}

type fakeInserter struct {
	args []river.JobArgs
	err  error
}

func (f *fakeInserter) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.args = append(f.args, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(f.args))}}, nil
}

func TestRiverDispatcher_Dispatch(t *testing.T) {
	ins := &fakeInserter{}
	d := NewRiverDispatcher(ins)

	require.NoError(t, d.Dispatch(context.Background(), testChange()))
	require.Len(t, ins.args, 1)

	args, ok := ins.args[0].(AuditRecordArgs)
	require.True(t, ok)
	assert.Equal(t, "LOTE-001", args.Change.EntityCode)
	assert.Equal(t, audit.OpCreate, args.Change.Operation)
}

func TestRiverDispatcher_Dispatch_Errors(t *testing.T) {
	ins := &fakeInserter{err: errors.New("connection refused")}
	err := NewRiverDispatcher(ins).Dispatch(context.Background(), testChange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	var nilDispatcher *RiverDispatcher
	assert.ErrorIs(t, nilDispatcher.Dispatch(context.Background(), testChange()), audit.ErrQueueClosed)
}
