// Package memory is an in-process audit.Store. It keeps nothing across
// restarts and is meant for tests and the "memory" store driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"agritrace.io/agritrace/internal/audit"
)

// Store is a map-backed audit.Store.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
	tails  map[string]string
	nextID int64
	closed bool

	// FailAppend, when set, is returned by every Append.
	FailAppend error
}

var _ audit.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{tails: make(map[string]string), nextID: 1}
}

func (s *Store) Tail(_ context.Context, scope string) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, audit.ErrStoreClosed
	}
	tail, ok := s.tails[scope]
	if !ok {
		return nil, nil
	}
	return &tail, nil
}

func (s *Store) Append(_ context.Context, e *audit.Event, expectedPrev *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audit.ErrStoreClosed
	}
	if s.FailAppend != nil {
		return s.FailAppend
	}

	var current *string
	if tail, ok := s.tails[e.ChainScope]; ok {
		current = &tail
	}
	if !audit.SameTail(current, expectedPrev) {
		return audit.ErrTailMismatch
	}

	e.ID = s.nextID
	s.nextID++
	s.events = append(s.events, clone(*e))
	if e.Chained {
		s.tails[e.ChainScope] = e.SelfHash
	}
	return nil
}

func (s *Store) ListByEntity(_ context.Context, tenant *int64, entityType string, entityID int64) ([]audit.Event, error) {
	return s.newestFirst(func(e *audit.Event) bool {
		return matchTenant(e, tenant) && e.EntityType == entityType &&
			e.EntityID != nil && *e.EntityID == entityID
	})
}

func (s *Store) ListByTenant(_ context.Context, tenant *int64) ([]audit.Event, error) {
	return s.newestFirst(func(e *audit.Event) bool { return matchTenant(e, tenant) })
}

func (s *Store) ListChain(_ context.Context, scope string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, audit.ErrStoreClosed
	}
	return s.chain(scope), nil
}

func (s *Store) ChainSnapshot(_ context.Context, scope string) (audit.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return audit.Chain{}, audit.ErrStoreClosed
	}
	c := audit.Chain{Scope: scope, Events: s.chain(scope)}
	if tail, ok := s.tails[scope]; ok {
		c.Tail = &tail
	}
	return c, nil
}

// chain expects s.mu to be held.
func (s *Store) chain(scope string) []audit.Event {
	out := make([]audit.Event, 0)
	for i := range s.events {
		if s.events[i].ChainScope == scope {
			out = append(out, clone(s.events[i]))
		}
	}
	return out
}

func (s *Store) Scopes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, audit.ErrStoreClosed
	}
	seen := make(map[string]struct{})
	for i := range s.events {
		seen[s.events[i].ChainScope] = struct{}{}
	}
	for scope := range s.tails {
		seen[scope] = struct{}{}
	}
	scopes := make([]string, 0, len(seen))
	for scope := range seen {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Tamper rewrites a stored event in place. Test helper for integrity checks.
func (s *Store) Tamper(id int64, mutate func(*audit.Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			mutate(&s.events[i])
			return true
		}
	}
	return false
}

// Remove deletes a stored event without touching the tail. Test helper for
// integrity checks.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) newestFirst(match func(*audit.Event) bool) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, audit.ErrStoreClosed
	}
	out := make([]audit.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if match(&s.events[i]) {
			out = append(out, clone(s.events[i]))
		}
	}
	return out, nil
}

func matchTenant(e *audit.Event, tenant *int64) bool {
	return tenant == nil || (e.TenantID != nil && *e.TenantID == *tenant)
}

func clone(e audit.Event) audit.Event {
	if e.ChangedFields != nil {
		e.ChangedFields = append([]string(nil), e.ChangedFields...)
	}
	return e
}
