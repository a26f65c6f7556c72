package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "agritrace"
	metricsSubsystem = "audit"
)

// Reasons a change never reaches the chain.
const (
	DropExcluded       = "excluded"
	DropNoActor        = "no_actor"
	DropQueueFull      = "queue_full"
	DropEvicted        = "evicted"
	DropDispatchFailed = "dispatch_failed"
	DropAppendFailed   = "append_failed"
	DropInterceptPanic = "intercept_panic"
)

var (
	// EventsRecorded counts events appended to a chain.
	// operation: CREATE | UPDATE | DELETE
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_recorded_total",
			Help:      "Total number of audit events appended, by operation.",
		},
		[]string{"operation"},
	)

	// ChangesDropped counts changes that were observed but not recorded.
	ChangesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "changes_dropped_total",
			Help:      "Total number of observed changes that were not recorded, by reason.",
		},
		[]string{"reason"},
	)

	// QueueDepth is the number of changes waiting in the dispatch queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Number of changes waiting in the in-process dispatch queue.",
		},
	)

	// AppendRetries counts appends retried after a tail mismatch.
	AppendRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "append_retries_total",
			Help:      "Total number of appends retried because the chain tail moved.",
		},
	)

	// ChainVerifications counts integrity checks by result.
	// result: valid | broken | error
	ChainVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "chain_verifications_total",
			Help:      "Total number of chain integrity verifications, by result.",
		},
		[]string{"result"},
	)
)
