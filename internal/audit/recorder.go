package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/pkg/logger"
)

// Recorder appends events to their chain. Appends to one scope are
// serialized by an in-process mutex; the Store's compare-and-set on the tail
// catches writers in other processes, and those conflicts are retried.
type Recorder struct {
	store      Store
	algorithm  Algorithm
	scopes     ScopeMode
	maxRetries int
	backoff    time.Duration
	now        func() time.Time

	locks sync.Map // scope -> *sync.Mutex
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithAlgorithm sets the digest for new events.
func WithAlgorithm(a Algorithm) RecorderOption {
	return func(r *Recorder) { r.algorithm = a }
}

// WithScopeMode sets how events are grouped into chains.
func WithScopeMode(m ScopeMode) RecorderOption {
	return func(r *Recorder) { r.scopes = m }
}

// WithRetry bounds the retries after ErrTailMismatch. The wait before retry n
// is n*backoff.
func WithRetry(maxRetries int, backoff time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.maxRetries = maxRetries
		r.backoff = backoff
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder over store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:      store,
		algorithm:  DefaultAlgorithm,
		scopes:     ScopePerTenant,
		maxRetries: 5,
		backoff:    10 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScopeMode returns the configured scope mode.
func (r *Recorder) ScopeMode() ScopeMode { return r.scopes }

// RecordCreation appends a CREATE event. Any before state is discarded.
func (r *Recorder) RecordCreation(ctx context.Context, rec Record) (*Event, error) {
	rec.BeforeState = nil
	rec.ChangedFields = nil
	return r.append(ctx, OpCreate, rec)
}

// RecordUpdate appends an UPDATE event.
func (r *Recorder) RecordUpdate(ctx context.Context, rec Record) (*Event, error) {
	return r.append(ctx, OpUpdate, rec)
}

// RecordDeletion appends a DELETE event. Any after state is discarded.
func (r *Recorder) RecordDeletion(ctx context.Context, rec Record) (*Event, error) {
	rec.AfterState = nil
	rec.ChangedFields = nil
	return r.append(ctx, OpDelete, rec)
}

// Apply records a dispatched change.
func (r *Recorder) Apply(ctx context.Context, c Change) (*Event, error) {
	switch c.Operation {
	case OpCreate:
		return r.RecordCreation(ctx, c.Record)
	case OpUpdate:
		return r.RecordUpdate(ctx, c.Record)
	case OpDelete:
		return r.RecordDeletion(ctx, c.Record)
	}
	return nil, fmt.Errorf("unknown operation %q", c.Operation)
}

func (r *Recorder) lock(scope string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(scope, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (r *Recorder) append(ctx context.Context, op OperationType, rec Record) (*Event, error) {
	if rec.ActorID <= 0 {
		return nil, ErrNoActor
	}
	if rec.EntityType == "" {
		return nil, errors.New("audit: entity type is required")
	}

	scope := r.scopes.ScopeFor(rec.TenantID)
	mu := r.lock(scope)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; ; attempt++ {
		tail, err := r.store.Tail(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("read chain tail %s: %w", scope, err)
		}

		e := &Event{
			ChainScope:    scope,
			TenantID:      rec.TenantID,
			EntityType:    rec.EntityType,
			EntityID:      rec.EntityID,
			EntityCode:    rec.EntityCode,
			OperationType: op,
			Description:   rec.Description,
			BeforeState:   rec.BeforeState,
			AfterState:    rec.AfterState,
			ChangedFields: rec.ChangedFields,
			ActorID:       rec.ActorID,
			PreviousHash:  tail,
			Chained:       true,
			OccurredAt:    NormalizeTime(r.now()),
		}
		if e.SelfHash, err = ComputeHash(r.algorithm, e); err != nil {
			return nil, err
		}

		err = r.store.Append(ctx, e, tail)
		if err == nil {
			EventsRecorded.WithLabelValues(string(op)).Inc()
			return e, nil
		}
		if !errors.Is(err, ErrTailMismatch) || attempt >= r.maxRetries {
			return nil, fmt.Errorf("append to chain %s: %w", scope, err)
		}

		AppendRetries.Inc()
		logger.Debug("Chain tail moved, retrying append",
			zap.String("scope", scope),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * r.backoff):
		}
	}
}
