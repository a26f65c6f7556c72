package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/pkg/logger"
	"agritrace.io/agritrace/internal/pkg/worker"
)

// OverflowPolicy decides what happens when the dispatch queue is full.
type OverflowPolicy string

const (
	// OverflowBlock waits up to the enqueue timeout, then drops the new change.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest evicts the oldest queued change to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
)

// ParseOverflowPolicy parses a configured overflow policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case OverflowBlock, OverflowDropOldest:
		return p, nil
	case "":
		return OverflowBlock, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q", s)
}

// Applier records a change. *Recorder implements it.
type Applier interface {
	Apply(ctx context.Context, c Change) (*Event, error)
}

// QueueConfig sizes a QueueDispatcher.
type QueueConfig struct {
	Size           int
	Workers        int
	Policy         OverflowPolicy
	EnqueueTimeout time.Duration
}

// QueueDispatcher buffers changes in a bounded in-process queue drained by
// consumers running on the audit worker pool. Changes still queued when the
// process dies are lost; use the River dispatcher where that matters.
type QueueDispatcher struct {
	applier Applier
	cfg     QueueConfig
	queue   chan Change
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool

	active      atomic.Int32
	drained     chan struct{}
	drainedOnce sync.Once
}

var _ Dispatcher = (*QueueDispatcher)(nil)

// NewQueueDispatcher creates a QueueDispatcher. Call Start to begin draining.
func NewQueueDispatcher(applier Applier, cfg QueueConfig) *QueueDispatcher {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = OverflowBlock
	}
	return &QueueDispatcher{
		applier: applier,
		cfg:     cfg,
		queue:   make(chan Change, cfg.Size),
		drained: make(chan struct{}),
		log:     logger.Named("audit.dispatcher"),
	}
}

// Start submits the consumers to the audit pool.
func (d *QueueDispatcher) Start(pools *worker.Pools) error {
	for n := 0; n < d.cfg.Workers; n++ {
		d.active.Add(1)
		if err := pools.SubmitDetached(worker.PoolAudit, d.consume); err != nil {
			d.consumerDone()
			return fmt.Errorf("start audit consumer %d: %w", n, err)
		}
	}
	d.log.Info("Audit dispatch queue started",
		zap.Int("size", d.cfg.Size),
		zap.Int("workers", d.cfg.Workers),
		zap.String("policy", string(d.cfg.Policy)),
	)
	return nil
}

// Dispatch enqueues c according to the overflow policy.
func (d *QueueDispatcher) Dispatch(ctx context.Context, c Change) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	if d.cfg.Policy == OverflowDropOldest {
		d.enqueueDropOldest(c)
		return nil
	}
	return d.enqueueBlocking(ctx, c)
}

func (d *QueueDispatcher) enqueueBlocking(ctx context.Context, c Change) error {
	select {
	case d.queue <- c:
		QueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case d.queue <- c:
		QueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-timer.C:
		ChangesDropped.WithLabelValues(DropQueueFull).Inc()
		return ErrQueueFull
	case <-ctx.Done():
		ChangesDropped.WithLabelValues(DropQueueFull).Inc()
		return ctx.Err()
	}
}

func (d *QueueDispatcher) enqueueDropOldest(c Change) {
	for {
		select {
		case d.queue <- c:
			QueueDepth.Set(float64(len(d.queue)))
			return
		default:
		}
		select {
		case old := <-d.queue:
			ChangesDropped.WithLabelValues(DropEvicted).Inc()
			d.log.Warn("Audit queue full, dropped oldest change",
				zap.String("operation", string(old.Operation)),
				zap.String("entity_type", old.EntityType),
				zap.String("entity_code", old.EntityCode),
			)
		default:
		}
	}
}

func (d *QueueDispatcher) consume(ctx context.Context) {
	defer d.consumerDone()
	for {
		select {
		case c, ok := <-d.queue:
			if !ok {
				return
			}
			QueueDepth.Set(float64(len(d.queue)))
			d.apply(ctx, c)
		case <-ctx.Done():
			return
		}
	}
}

func (d *QueueDispatcher) apply(ctx context.Context, c Change) {
	defer func() {
		if r := recover(); r != nil {
			ChangesDropped.WithLabelValues(DropAppendFailed).Inc()
			d.log.Error("Audit append panicked", zap.Any("panic", r))
		}
	}()
	if _, err := d.applier.Apply(ctx, c); err != nil {
		ChangesDropped.WithLabelValues(DropAppendFailed).Inc()
		d.log.Error("Failed to record audit change",
			zap.String("operation", string(c.Operation)),
			zap.String("entity_type", c.EntityType),
			zap.String("entity_code", c.EntityCode),
			zap.Error(err),
		)
	}
}

func (d *QueueDispatcher) consumerDone() {
	if d.active.Add(-1) == 0 {
		d.drainedOnce.Do(func() { close(d.drained) })
	}
}

// Len returns the number of queued changes.
func (d *QueueDispatcher) Len() int { return len(d.queue) }

// Close stops accepting changes and waits until the consumers drained the
// queue or ctx expires.
func (d *QueueDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if d.active.Load() == 0 {
		return nil
	}
	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit queue (%d left): %w", len(d.queue), ctx.Err())
	}
}
