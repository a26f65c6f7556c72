package domain

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingListener) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingListener) OnAfterCreate(_ context.Context, e Entity) {
	r.add("create:" + e.EntityKind())
}

func (r *recordingListener) OnAfterUpdate(_ context.Context, before, after Entity) {
	suffix := ""
	if before != nil {
		suffix = "+before"
	}
	r.add("update:" + after.EntityKind() + suffix)
}

func (r *recordingListener) OnBeforeDelete(_ context.Context, e Entity) {
	r.add("delete:" + e.EntityKind())
}

type panickingListener struct{}

func (panickingListener) OnAfterCreate(context.Context, Entity) { panic("boom") }
func (panickingListener) OnAfterUpdate(context.Context, Entity, Entity) { panic("boom") }
func (panickingListener) OnBeforeDelete(context.Context, Entity) { panic("boom") }

func TestLifecycleDispatcher_FansOut(t *testing.T) {
	d := NewLifecycleDispatcher()
	first, second := &recordingListener{}, &recordingListener{}
	d.Register(first)
	d.Register(nil)
	d.Register(second)
	require.Equal(t, 2, d.Len())

	ctx := context.Background()
	lote := &Lote{ID: 1, EmpresaID: 7, Codigo: "LOTE-001"}
	d.OnAfterCreate(ctx, lote)
	d.OnAfterUpdate(ctx, &Lote{ID: 1}, lote)
	d.OnAfterUpdate(ctx, nil, lote)
	d.OnBeforeDelete(ctx, lote)

	want := []string{"create:Lote", "update:Lote+before", "update:Lote", "delete:Lote"}
	assert.Equal(t, want, first.events)
	assert.Equal(t, want, second.events)
}

func TestLifecycleDispatcher_PanicIsolated(t *testing.T) {
	d := NewLifecycleDispatcher()
	after := &recordingListener{}
	d.Register(panickingListener{})
	d.Register(after)

	ctx := context.Background()
	pallet := &Pallet{ID: 3, CodigoPallet: "PAL-3"}
	require.NotPanics(t, func() {
		d.OnAfterCreate(ctx, pallet)
		d.OnAfterUpdate(ctx, nil, pallet)
		d.OnBeforeDelete(ctx, pallet)
	})
	assert.Equal(t, []string{"create:Pallet", "update:Pallet", "delete:Pallet"}, after.events)
}

func TestEntities_IdentityAndTenant(t *testing.T) {
	tests := []struct {
		name       string
		entity     Entity
		wantKind   string
		wantID     int64
		wantOK     bool
		wantTenant *int64
	}{
		{"lote", &Lote{ID: 5, EmpresaID: 2}, KindLote, 5, true, ptr(2)},
		{"unsaved finca", &Finca{EmpresaID: 2}, KindFinca, 0, false, ptr(2)},
		{"empresa owns itself", &Empresa{ID: 9}, KindEmpresa, 9, true, ptr(9)},
		{"envio without tenant", &Envio{ID: 4}, KindEnvio, 4, true, nil},
		{"usuario", &Usuario{ID: 1}, KindUsuario, 1, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.entity.EntityKind())
			id, ok := tt.entity.AuditID()
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, ok)

			owned, isOwned := tt.entity.(TenantOwned)
			if !isOwned {
				assert.Nil(t, tt.wantTenant)
				return
			}
			assert.Equal(t, tt.wantTenant, owned.OwnerTenant())
		})
	}
}

func ptr(v int64) *int64 { return &v }
