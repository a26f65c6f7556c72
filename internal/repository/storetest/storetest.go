// Package storetest is a behavioural test suite every audit.Store
// implementation runs against itself.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) audit.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("AppendAndTail", func(t *testing.T) { testAppendAndTail(t, newStore(t)) })
	t.Run("StaleTailRejected", func(t *testing.T) { testStaleTail(t, newStore(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, newStore(t)) })
	t.Run("ConcurrentRecorders", func(t *testing.T) { testConcurrentRecorders(t, newStore(t)) })
	t.Run("ChainSnapshot", func(t *testing.T) { testChainSnapshot(t, newStore(t)) })
	t.Run("UnchainedAppendDetected", func(t *testing.T) { testUnchainedAppend(t, newStore(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newStore(t)) })
}

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func record(tenant int64, entityType string, entityID int64, code string) audit.Record {
	return audit.Record{
		TenantID:    i64(tenant),
		EntityType:  entityType,
		EntityID:    i64(entityID),
		EntityCode:  code,
		Description: "Creación de " + entityType + ": " + code,
		AfterState:  str(fmt.Sprintf(`{"id":%d,"codigo":%q}`, entityID, code)),
		ActorID:     42,
	}
}

func testAppendAndTail(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s)

	tail, err := s.Tail(ctx, audit.TenantScope(1))
	require.NoError(t, err)
	assert.Nil(t, tail)

	first, err := r.RecordCreation(ctx, record(1, "LOTE", 10, "LOTE-001"))
	require.NoError(t, err)
	assert.Positive(t, first.ID)
	assert.Nil(t, first.PreviousHash)

	second, err := r.RecordCreation(ctx, record(1, "LOTE", 11, "LOTE-002"))
	require.NoError(t, err)
	require.NotNil(t, second.PreviousHash)
	assert.Equal(t, first.SelfHash, *second.PreviousHash)
	assert.Greater(t, second.ID, first.ID)

	tail, err = s.Tail(ctx, audit.TenantScope(1))
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, second.SelfHash, *tail)
}

func testStaleTail(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s)
	first, err := r.RecordCreation(ctx, record(1, "FINCA", 1, "Santa Rosa"))
	require.NoError(t, err)

	stale := &audit.Event{
		ChainScope:    audit.TenantScope(1),
		TenantID:      i64(1),
		EntityType:    "FINCA",
		EntityCode:    "X",
		OperationType: audit.OpCreate,
		ActorID:       1,
		SelfHash:      "sha256:deadbeef",
		Chained:       true,
		OccurredAt:    time.Now(),
	}
	assert.ErrorIs(t, s.Append(ctx, stale, nil), audit.ErrTailMismatch)

	tail, err := s.Tail(ctx, audit.TenantScope(1))
	require.NoError(t, err)
	assert.Equal(t, first.SelfHash, *tail)

	chain, err := s.ListChain(ctx, audit.TenantScope(1))
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func testRoundTrip(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s, audit.WithAlgorithm(audit.BLAKE2b256))

	rec := record(3, "LOTE", 7, "LOTE-007")
	rec.BeforeState = str(`{"id":7,"nombre":"A"}`)
	rec.AfterState = str(`{"id":7,"nombre":"B"}`)
	rec.ChangedFields = []string{"nombre"}
	written, err := r.RecordUpdate(ctx, rec)
	require.NoError(t, err)

	chain, err := s.ListChain(ctx, audit.TenantScope(3))
	require.NoError(t, err)
	require.Len(t, chain, 1)
	got := chain[0]

	assert.Equal(t, written.ID, got.ID)
	assert.Equal(t, written.SelfHash, got.SelfHash)
	assert.Equal(t, []string{"nombre"}, got.ChangedFields)
	assert.Equal(t, *rec.BeforeState, *got.BeforeState)
	assert.True(t, written.OccurredAt.Equal(got.OccurredAt))
	assert.True(t, audit.EventIntegrity(&got), "stored event must rehash to its selfHash")
	assert.True(t, audit.VerifyEvents(audit.TenantScope(3), chain).Valid)
}

func testQueries(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s)

	for _, rec := range []audit.Record{
		record(1, "LOTE", 10, "LOTE-010"),
		record(2, "LOTE", 10, "LOTE-010"),
		record(1, "FINCA", 3, "El Alto"),
		record(1, "LOTE", 10, "LOTE-010"),
	} {
		_, err := r.RecordCreation(ctx, rec)
		require.NoError(t, err)
	}

	byEntity, err := s.ListByEntity(ctx, i64(1), "LOTE", 10)
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Greater(t, byEntity[0].ID, byEntity[1].ID, "newest first")

	anyTenant, err := s.ListByEntity(ctx, nil, "LOTE", 10)
	require.NoError(t, err)
	assert.Len(t, anyTenant, 3)

	byTenant, err := s.ListByTenant(ctx, i64(1))
	require.NoError(t, err)
	require.Len(t, byTenant, 3)
	for _, e := range byTenant {
		assert.EqualValues(t, 1, *e.TenantID)
	}

	other, err := s.ListByTenant(ctx, i64(99))
	require.NoError(t, err)
	assert.Empty(t, other)

	scopes, err := s.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{audit.TenantScope(1), audit.TenantScope(2)}, scopes)
}

func testConcurrentRecorders(t *testing.T, s audit.Store) {
	ctx := context.Background()
	// Two recorders share the store but not their locks, like two replicas.
	recorders := []*audit.Recorder{
		audit.NewRecorder(s, audit.WithRetry(50, time.Millisecond)),
		audit.NewRecorder(s, audit.WithRetry(50, time.Millisecond)),
	}

	const perRecorder = 15
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range recorders {
		for n := 0; n < perRecorder; n++ {
			wg.Add(1)
			//nolint:naked-goroutine // contention is the point of this case
			go func(r *audit.Recorder, n int) {
				defer wg.Done()
				_, err := r.RecordCreation(ctx, record(5, "PALLET", int64(n), fmt.Sprintf("PAL-%d", n)))
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(r, n)
		}
	}
	wg.Wait()
	require.Empty(t, errs)

	chain, err := s.ListChain(ctx, audit.TenantScope(5))
	require.NoError(t, err)
	require.Len(t, chain, 2*perRecorder)
	res := audit.VerifyEvents(audit.TenantScope(5), chain)
	assert.True(t, res.Valid, res.Reason)
}

func testChainSnapshot(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s)
	scope := audit.TenantScope(6)

	empty, err := s.ChainSnapshot(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, scope, empty.Scope)
	assert.Empty(t, empty.Events)
	assert.Nil(t, empty.Tail)
	assert.True(t, audit.VerifySnapshot(empty).Valid)

	var last *audit.Event
	for n := int64(1); n <= 3; n++ {
		last, err = r.RecordCreation(ctx, record(6, "LOTE", n, fmt.Sprintf("LOTE-%d", n)))
		require.NoError(t, err)
	}

	c, err := s.ChainSnapshot(ctx, scope)
	require.NoError(t, err)
	require.Len(t, c.Events, 3)
	require.NotNil(t, c.Tail)
	assert.Equal(t, last.SelfHash, *c.Tail)
	assert.Equal(t, last.ID, c.Events[2].ID)

	res := audit.VerifySnapshot(c)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, 3, res.Events)
}

func testUnchainedAppend(t *testing.T, s audit.Store) {
	ctx := context.Background()
	r := audit.NewRecorder(s)
	scope := audit.TenantScope(7)

	_, err := r.RecordCreation(ctx, record(7, "LOTE", 1, "LOTE-1"))
	require.NoError(t, err)
	second, err := r.RecordCreation(ctx, record(7, "LOTE", 2, "LOTE-2"))
	require.NoError(t, err)

	forged := *second
	forged.ID = 0
	forged.Description = "Creación de LOTE: LOTE-X"
	forged.Chained = false
	require.NoError(t, s.Append(ctx, &forged, &second.SelfHash))

	tail, err := s.Tail(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, second.SelfHash, *tail)

	c, err := s.ChainSnapshot(ctx, scope)
	require.NoError(t, err)
	res := audit.VerifySnapshot(c)
	assert.False(t, res.Valid)
	assert.Equal(t, forged.ID, res.BrokenAt)
}

func testClosed(t *testing.T, s audit.Store) {
	require.NoError(t, s.Close())
	_, err := s.Tail(context.Background(), audit.GlobalScope)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audit.ErrStoreClosed), "got %v", err)
}
