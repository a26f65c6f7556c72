package domain

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/pkg/logger"
)

// LifecycleListener observes persistence lifecycle events.
// Implementations must not block and must never fail the triggering write.
type LifecycleListener interface {
	// OnAfterCreate runs once the entity has been assigned its identity.
	OnAfterCreate(ctx context.Context, entity Entity)
	// OnAfterUpdate runs after the update is durable. before may be nil when
	// the pre-image was not loaded.
	OnAfterUpdate(ctx context.Context, before, after Entity)
	// OnBeforeDelete runs while the entity is still readable.
	OnBeforeDelete(ctx context.Context, entity Entity)
}

// LifecycleDispatcher fans lifecycle events out to registered listeners.
// Delivery is best-effort: a panicking listener is logged and skipped, and
// the remaining listeners still run.
type LifecycleDispatcher struct {
	listeners []LifecycleListener
	mu        sync.RWMutex
}

var _ LifecycleListener = (*LifecycleDispatcher)(nil)

// NewLifecycleDispatcher creates a new LifecycleDispatcher.
func NewLifecycleDispatcher() *LifecycleDispatcher {
	return &LifecycleDispatcher{}
}

// Register adds a listener.
func (d *LifecycleDispatcher) Register(l LifecycleListener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Len returns the number of registered listeners.
func (d *LifecycleDispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

// OnAfterCreate implements LifecycleListener.
func (d *LifecycleDispatcher) OnAfterCreate(ctx context.Context, entity Entity) {
	d.each("after_create", entity, func(l LifecycleListener) { l.OnAfterCreate(ctx, entity) })
}

// OnAfterUpdate implements LifecycleListener.
func (d *LifecycleDispatcher) OnAfterUpdate(ctx context.Context, before, after Entity) {
	d.each("after_update", after, func(l LifecycleListener) { l.OnAfterUpdate(ctx, before, after) })
}

// OnBeforeDelete implements LifecycleListener.
func (d *LifecycleDispatcher) OnBeforeDelete(ctx context.Context, entity Entity) {
	d.each("before_delete", entity, func(l LifecycleListener) { l.OnBeforeDelete(ctx, entity) })
}

func (d *LifecycleDispatcher) each(event string, entity Entity, call func(LifecycleListener)) {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()

	for _, l := range listeners {
		notify(event, entity, l, call)
	}
}

func notify(event string, entity Entity, l LifecycleListener, call func(LifecycleListener)) {
	defer func() {
		if r := recover(); r != nil {
			kind := ""
			if entity != nil {
				kind = entity.EntityKind()
			}
			logger.Error("Lifecycle listener panicked",
				zap.String("event", event),
				zap.String("entity_kind", kind),
				zap.Any("panic", r),
			)
		}
	}()
	call(l)
}
