package audit

import "context"

// Store persists audit events. Implementations must make Append atomic: the
// event row and the scope's tail move together or not at all.
type Store interface {
	// Tail returns the selfHash of the last chained event in scope, nil when
	// the chain is empty.
	Tail(ctx context.Context, scope string) (*string, error)
	// Append inserts e if the scope's tail still equals expectedPrev, assigns
	// e.ID and advances the tail to e.SelfHash. A stale expectedPrev yields
	// ErrTailMismatch and leaves the store untouched.
	Append(ctx context.Context, e *Event, expectedPrev *string) error
	// ListByEntity returns the events of one entity, newest first. A nil
	// tenant matches every tenant.
	ListByEntity(ctx context.Context, tenant *int64, entityType string, entityID int64) ([]Event, error)
	// ListByTenant returns the events of a tenant, newest first. A nil tenant
	// matches every tenant.
	ListByTenant(ctx context.Context, tenant *int64) ([]Event, error)
	// ListChain returns every event of scope in chain order, read from one
	// consistent snapshot.
	ListChain(ctx context.Context, scope string) ([]Event, error)
	// ChainSnapshot returns the events of scope in chain order together with
	// the scope's tail, both read from the same snapshot.
	ChainSnapshot(ctx context.Context, scope string) (Chain, error)
	// Scopes returns the known chain scopes, sorted. A scope counts as known
	// once it has events or a tail.
	Scopes(ctx context.Context) ([]string, error)
	Close() error
}

// Chain is one scope read at a single point in time.
type Chain struct {
	Scope  string
	Events []Event
	Tail   *string
}

// SameTail reports whether two tail pointers are equal. Store
// implementations use it for the compare-and-set in Append.
func SameTail(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
