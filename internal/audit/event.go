// Package audit implements the tamper-evident audit trail: a hash-linked,
// append-only log of every create, update and delete on traceability entities.
//
// Events are grouped into chain scopes. Within a scope every event carries the
// selfHash of its predecessor, so rewriting any stored field breaks the chain
// from that point on. The Interceptor turns lifecycle notifications into
// Changes, a Dispatcher hands them off the caller's goroutine, and the Recorder
// appends them to a Store under a per-scope lock plus a storage-level
// compare-and-set on the chain tail.
//
// Import Path: agritrace.io/agritrace/internal/audit
package audit

import (
	"errors"
	"time"
)

// OperationType is the kind of change an event records.
type OperationType string

const (
	OpCreate OperationType = "CREATE"
	OpUpdate OperationType = "UPDATE"
	OpDelete OperationType = "DELETE"
)

// Valid reports whether op is one of the known operations.
func (op OperationType) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

var (
	// ErrTailMismatch is returned by Store.Append when the chain tail moved
	// since the caller read it.
	ErrTailMismatch = errors.New("audit: chain tail mismatch")
	// ErrStoreClosed is returned by a Store after Close.
	ErrStoreClosed = errors.New("audit: store closed")
	// ErrQueueClosed is returned by Dispatch after the dispatcher shut down.
	ErrQueueClosed = errors.New("audit: dispatch queue closed")
	// ErrQueueFull is returned when a change could not be enqueued in time.
	ErrQueueFull = errors.New("audit: dispatch queue full")
	// ErrNoActor is returned when a record carries no actor.
	ErrNoActor = errors.New("audit: no actor")
)

// Event is one immutable entry of the audit trail.
type Event struct {
	ID            int64         `json:"id" yaml:"id"`
	ChainScope    string        `json:"chainScope" yaml:"chainScope"`
	TenantID      *int64        `json:"tenantId" yaml:"tenantId"`
	EntityType    string        `json:"entityType" yaml:"entityType"`
	EntityID      *int64        `json:"entityId" yaml:"entityId"`
	EntityCode    string        `json:"entityCode" yaml:"entityCode"`
	OperationType OperationType `json:"operationType" yaml:"operationType"`
	Description   string        `json:"description" yaml:"description"`
	BeforeState   *string       `json:"beforeState,omitempty" yaml:"beforeState,omitempty"`
	AfterState    *string       `json:"afterState,omitempty" yaml:"afterState,omitempty"`
	ChangedFields []string      `json:"changedFields,omitempty" yaml:"changedFields,omitempty"`
	ActorID       int64         `json:"actorId" yaml:"actorId"`
	SelfHash      string        `json:"selfHash" yaml:"selfHash"`
	PreviousHash  *string       `json:"previousHash" yaml:"previousHash"`
	Chained       bool          `json:"chained" yaml:"chained"`
	OccurredAt    time.Time     `json:"occurredAt" yaml:"occurredAt"`
}

// Record is the content of a change before it is placed on a chain.
type Record struct {
	TenantID      *int64   `json:"tenant_id,omitempty"`
	EntityType    string   `json:"entity_type"`
	EntityID      *int64   `json:"entity_id,omitempty"`
	EntityCode    string   `json:"entity_code"`
	Description   string   `json:"description"`
	BeforeState   *string  `json:"before_state,omitempty"`
	AfterState    *string  `json:"after_state,omitempty"`
	ChangedFields []string `json:"changed_fields,omitempty"`
	ActorID       int64    `json:"actor_id"`
}

// Change is a Record tagged with its operation, the unit a Dispatcher carries.
type Change struct {
	Operation OperationType `json:"operation"`
	Record
}
