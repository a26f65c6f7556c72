package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/repository/memory"
)

func TestService_GlobalChainFilteredPerTenant(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := audit.NewRecorder(store, audit.WithScopeMode(audit.ScopeSingle))
	for _, tenant := range []int64{1, 2, 1} {
		_, err := rec.RecordCreation(ctx, loteRecord(tenant, "L"))
		require.NoError(t, err)
	}

	svc := audit.NewService(store, audit.ScopeSingle)
	scope, filter := svc.ScopeMode().ChainView(i64(1))
	assert.Equal(t, audit.GlobalScope, scope)

	mine, err := svc.ListChain(ctx, scope, filter)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.ListChain(ctx, scope, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, svc.VerifyChainIntegrity(ctx, scope))
}

func TestService_ListAllChains(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := audit.NewRecorder(store)
	for _, tenant := range []int64{2, 1, 2} {
		_, err := rec.RecordCreation(ctx, loteRecord(tenant, "L"))
		require.NoError(t, err)
	}

	svc := audit.NewService(store, audit.ScopePerTenant)
	all, err := svc.ListAllChains(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, audit.TenantScope(1), all[0].ChainScope)
	assert.Equal(t, audit.TenantScope(2), all[1].ChainScope)
	assert.Less(t, all[1].ID, all[2].ID)
}

type failingStore struct{ *memory.Store }

func (failingStore) ListChain(context.Context, string) ([]audit.Event, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) ChainSnapshot(context.Context, string) (audit.Chain, error) {
	return audit.Chain{}, errors.New("connection reset")
}

func TestService_VerifyFailsClosed(t *testing.T) {
	svc := audit.NewService(failingStore{memory.New()}, audit.ScopePerTenant)
	assert.False(t, svc.VerifyChainIntegrity(context.Background(), audit.TenantScope(1)))

	_, err := svc.VerifyChain(context.Background(), audit.TenantScope(1))
	assert.Error(t, err)
}

func TestScopeMode(t *testing.T) {
	tests := []struct {
		mode       audit.ScopeMode
		tenant     *int64
		scope      string
		viewFilter bool
	}{
		{audit.ScopePerTenant, i64(7), "tenant:7", false},
		{audit.ScopePerTenant, nil, audit.SystemScope, false},
		{audit.ScopeSingle, i64(7), audit.GlobalScope, true},
		{audit.ScopeSingle, nil, audit.GlobalScope, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.scope, func(t *testing.T) {
			assert.Equal(t, tt.scope, tt.mode.ScopeFor(tt.tenant))
			scope, filter := tt.mode.ChainView(tt.tenant)
			assert.Equal(t, tt.scope, scope)
			assert.Equal(t, tt.viewFilter, filter != nil)
		})
	}

	m, err := audit.ParseScopeMode("GLOBAL")
	require.NoError(t, err)
	assert.Equal(t, audit.ScopeSingle, m)
	_, err = audit.ParseScopeMode("per-region")
	assert.Error(t, err)
}

func TestDescriptors(t *testing.T) {
	assert.True(t, audit.Excluded("AuditEvent"))
	assert.True(t, audit.Excluded("Session"))
	assert.False(t, audit.Excluded("Lote"))

	assert.Equal(t, "RECEPCION", audit.Category("Recepcion"))
	assert.Equal(t, "BODEGA", audit.Category("Bodega"))
	assert.True(t, audit.KnownCategory("ENVIO"))
	assert.False(t, audit.KnownCategory("BODEGA"))

	assert.Equal(t, "Actualización de envío: ENV-1", audit.Describe(audit.OpUpdate, "Envio", "ENV-1"))
	assert.Equal(t, "Eliminación de bodega: B-1", audit.Describe(audit.OpDelete, "Bodega", "B-1"))
	assert.Equal(t, "ID-5", audit.EntityCode("", i64(5)))
	assert.Equal(t, audit.UnknownCode, audit.EntityCode("", nil))
}
