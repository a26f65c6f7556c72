// Package usecase holds the persistence wrappers business services write
// through. EntityWriter fires the lifecycle hooks around each write so the
// audit trail never depends on a service remembering to log.
//
// Import Path: agritrace.io/agritrace/internal/usecase
package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// Repository is the storage port for one entity type. Insert must assign the
// entity's identity before returning.
type Repository[E domain.Entity] interface {
	Get(ctx context.Context, id int64) (E, error)
	Insert(ctx context.Context, entity E) error
	Update(ctx context.Context, entity E) error
	Delete(ctx context.Context, id int64) error
}

// EntityWriter writes entities through a Repository and notifies listeners:
// after create, after update (with the pre-image when it can be loaded) and
// before delete. Listener behaviour never changes the returned error.
type EntityWriter[E domain.Entity] struct {
	repo  Repository[E]
	hooks domain.LifecycleListener
}

// NewEntityWriter creates an EntityWriter. hooks may be nil.
func NewEntityWriter[E domain.Entity](repo Repository[E], hooks domain.LifecycleListener) *EntityWriter[E] {
	return &EntityWriter[E]{repo: repo, hooks: hooks}
}

// Create inserts entity.
func (w *EntityWriter[E]) Create(ctx context.Context, entity E) error {
	if err := w.repo.Insert(ctx, entity); err != nil {
		return err
	}
	w.notify("after_create", func() { w.hooks.OnAfterCreate(ctx, entity) })
	return nil
}

// Update persists entity, which must already have an identity.
func (w *EntityWriter[E]) Update(ctx context.Context, entity E) error {
	id, ok := entity.AuditID()
	if !ok {
		return fmt.Errorf("update %s: entity has no id", entity.EntityKind())
	}

	var before domain.Entity
	if w.hooks != nil {
		prev, err := w.repo.Get(ctx, id)
		if err != nil {
			logger.Debug("Pre-image not available for update",
				zap.String("entity_kind", entity.EntityKind()),
				zap.Int64("entity_id", id),
				zap.Error(err),
			)
		} else {
			before = prev
		}
	}

	if err := w.repo.Update(ctx, entity); err != nil {
		return err
	}
	w.notify("after_update", func() { w.hooks.OnAfterUpdate(ctx, before, entity) })
	return nil
}

// Delete removes the entity with id. The entity is loaded first so listeners
// still see its fields.
func (w *EntityWriter[E]) Delete(ctx context.Context, id int64) error {
	current, err := w.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	w.notify("before_delete", func() { w.hooks.OnBeforeDelete(ctx, current) })
	return w.repo.Delete(ctx, id)
}

func (w *EntityWriter[E]) notify(event string, fn func()) {
	if w.hooks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Lifecycle hook panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	fn()
}
