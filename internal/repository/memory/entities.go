package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agritrace.io/agritrace/internal/domain"
	apperrors "agritrace.io/agritrace/internal/pkg/errors"
)

// Entities is an in-process repository for one domain entity type. Rows are
// kept as JSON so callers never share memory with stored state.
type Entities[E domain.Entity] struct {
	mu     sync.RWMutex
	rows   map[int64][]byte
	nextID int64

	newEntity func() E
	assignID  func(E, int64)
}

// NewEntities creates an empty repository. newEntity returns a zero value
// to decode into; assignID sets the identity on insert.
func NewEntities[E domain.Entity](newEntity func() E, assignID func(E, int64)) *Entities[E] {
	return &Entities[E]{
		rows:      make(map[int64][]byte),
		nextID:    1,
		newEntity: newEntity,
		assignID:  assignID,
	}
}

// Get returns a copy of the row with id.
func (r *Entities[E]) Get(_ context.Context, id int64) (E, error) {
	r.mu.RLock()
	raw, ok := r.rows[id]
	r.mu.RUnlock()

	entity := r.newEntity()
	if !ok {
		return entity, fmt.Errorf("%s %d: %w", entity.EntityKind(), id, apperrors.ErrNotFound)
	}
	if err := json.Unmarshal(raw, entity); err != nil {
		return entity, fmt.Errorf("decode %s %d: %w", entity.EntityKind(), id, err)
	}
	return entity, nil
}

// Insert assigns the next id and stores entity.
func (r *Entities[E]) Insert(_ context.Context, entity E) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.assignID(entity, id)
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity.EntityKind(), err)
	}
	r.rows[id] = raw
	r.nextID++
	return nil
}

// Update replaces an existing row.
func (r *Entities[E]) Update(_ context.Context, entity E) error {
	id, ok := entity.AuditID()
	if !ok {
		return fmt.Errorf("update %s: entity has no id", entity.EntityKind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[id]; !exists {
		return fmt.Errorf("%s %d: %w", entity.EntityKind(), id, apperrors.ErrNotFound)
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity.EntityKind(), err)
	}
	r.rows[id] = raw
	return nil
}

// Delete removes the row with id.
func (r *Entities[E]) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[id]; !exists {
		return fmt.Errorf("entity %d: %w", id, apperrors.ErrNotFound)
	}
	delete(r.rows, id)
	return nil
}

// Count returns the number of stored rows.
func (r *Entities[E]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
