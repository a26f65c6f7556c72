package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/pkg/worker"
)

type applied struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (a *applied) Apply(_ context.Context, c audit.Change) (*audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil, errors.New("store down")
	}
	a.codes = append(a.codes, c.EntityCode)
	return &audit.Event{}, nil
}

func (a *applied) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.codes...)
}

func newPools(t *testing.T) *worker.Pools {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, AuditPoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)
	return pools
}

func change(code string) audit.Change {
	return audit.Change{Operation: audit.OpCreate, Record: audit.Record{EntityType: "LOTE", EntityCode: code, ActorID: 1}}
}

func TestQueueDispatcher_DeliversAndDrains(t *testing.T) {
	sink := &applied{}
	d := audit.NewQueueDispatcher(sink, audit.QueueConfig{Size: 16, Workers: 1, EnqueueTimeout: time.Second})
	require.NoError(t, d.Start(newPools(t)))

	for _, code := range []string{"A", "B", "C"} {
		require.NoError(t, d.Dispatch(context.Background(), change(code)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, []string{"A", "B", "C"}, sink.snapshot(), "one consumer keeps dispatch order")

	assert.ErrorIs(t, d.Dispatch(context.Background(), change("D")), audit.ErrQueueClosed)
	require.NoError(t, d.Close(ctx), "second close is a no-op")
}

func TestQueueDispatcher_BlockPolicyTimesOut(t *testing.T) {
	d := audit.NewQueueDispatcher(&applied{}, audit.QueueConfig{
		Size: 1, Workers: 1, Policy: audit.OverflowBlock, EnqueueTimeout: 20 * time.Millisecond,
	})

	require.NoError(t, d.Dispatch(context.Background(), change("A")))

	before := testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropQueueFull))
	start := time.Now()
	err := d.Dispatch(context.Background(), change("B"))
	assert.ErrorIs(t, err, audit.ErrQueueFull)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropQueueFull))-before)
	assert.Equal(t, 1, d.Len())
}

func TestQueueDispatcher_DropOldest(t *testing.T) {
	sink := &applied{}
	d := audit.NewQueueDispatcher(sink, audit.QueueConfig{Size: 2, Workers: 1, Policy: audit.OverflowDropOldest})

	before := testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropEvicted))
	for _, code := range []string{"A", "B", "C"} {
		require.NoError(t, d.Dispatch(context.Background(), change(code)))
	}
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropEvicted))-before)

	require.NoError(t, d.Start(newPools(t)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, []string{"B", "C"}, sink.snapshot())
}

func TestQueueDispatcher_ApplyFailureIsLogged(t *testing.T) {
	sink := &applied{fail: true}
	d := audit.NewQueueDispatcher(sink, audit.QueueConfig{Size: 4, Workers: 2})
	require.NoError(t, d.Start(newPools(t)))

	before := testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropAppendFailed))
	require.NoError(t, d.Dispatch(context.Background(), change("A")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(audit.ChangesDropped.WithLabelValues(audit.DropAppendFailed))-before)
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := audit.ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, audit.OverflowBlock, p)

	p, err = audit.ParseOverflowPolicy("drop_oldest")
	require.NoError(t, err)
	assert.Equal(t, audit.OverflowDropOldest, p)

	_, err = audit.ParseOverflowPolicy("drop_newest")
	assert.Error(t, err)
}
