package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
)

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func TestStore_AppendCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &audit.Event{ChainScope: "tenant:1", TenantID: i64(1), EntityType: "LOTE", SelfHash: "sha256:a", Chained: true}
	require.NoError(t, s.Append(ctx, first, nil))
	assert.EqualValues(t, 1, first.ID)

	stale := &audit.Event{ChainScope: "tenant:1", SelfHash: "sha256:b", Chained: true}
	assert.ErrorIs(t, s.Append(ctx, stale, nil), audit.ErrTailMismatch)

	second := &audit.Event{ChainScope: "tenant:1", TenantID: i64(1), EntityType: "LOTE", SelfHash: "sha256:b", PreviousHash: str("sha256:a"), Chained: true}
	require.NoError(t, s.Append(ctx, second, str("sha256:a")))

	tail, err := s.Tail(ctx, "tenant:1")
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, "sha256:b", *tail)

	empty, err := s.Tail(ctx, "tenant:2")
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Queries(t *testing.T) {
	ctx := context.Background()
	s := New()

	seed := []audit.Event{
		{ChainScope: "tenant:1", TenantID: i64(1), EntityType: "LOTE", EntityID: i64(10), SelfHash: "h1"},
		{ChainScope: "tenant:2", TenantID: i64(2), EntityType: "LOTE", EntityID: i64(10), SelfHash: "h2"},
		{ChainScope: "tenant:1", TenantID: i64(1), EntityType: "FINCA", EntityID: i64(3), SelfHash: "h3"},
		{ChainScope: "tenant:1", TenantID: i64(1), EntityType: "LOTE", EntityID: i64(10), SelfHash: "h4"},
	}
	for i := range seed {
		e := seed[i]
		e.Chained = true
		prev, err := s.Tail(ctx, e.ChainScope)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, &e, prev))
	}

	byEntity, err := s.ListByEntity(ctx, i64(1), "LOTE", 10)
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, "h4", byEntity[0].SelfHash)
	assert.Equal(t, "h1", byEntity[1].SelfHash)

	allTenants, err := s.ListByEntity(ctx, nil, "LOTE", 10)
	require.NoError(t, err)
	assert.Len(t, allTenants, 3)

	byTenant, err := s.ListByTenant(ctx, i64(2))
	require.NoError(t, err)
	require.Len(t, byTenant, 1)
	assert.Equal(t, "h2", byTenant[0].SelfHash)

	chain, err := s.ListChain(ctx, "tenant:1")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"h1", "h3", "h4"}, []string{chain[0].SelfHash, chain[1].SelfHash, chain[2].SelfHash})

	scopes, err := s.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant:1", "tenant:2"}, scopes)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Tail(ctx, "global")
	assert.ErrorIs(t, err, audit.ErrStoreClosed)
	assert.ErrorIs(t, s.Append(ctx, &audit.Event{ChainScope: "global"}, nil), audit.ErrStoreClosed)
	_, err = s.ListChain(ctx, "global")
	assert.ErrorIs(t, err, audit.ErrStoreClosed)
}
