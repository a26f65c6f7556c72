package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/repository/memory"
)

func buildChain(t *testing.T, n int) []audit.Event {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	r := audit.NewRecorder(store)
	for i := 0; i < n; i++ {
		_, err := r.RecordCreation(ctx, audit.Record{
			TenantID:    i64(1),
			EntityType:  "PALLET",
			EntityID:    i64(int64(i + 1)),
			EntityCode:  "PAL",
			Description: "Creación de pallet: PAL",
			ActorID:     9,
		})
		require.NoError(t, err)
	}
	events, err := store.ListChain(ctx, audit.TenantScope(1))
	require.NoError(t, err)
	return events
}

func TestVerifyEvents(t *testing.T) {
	scope := audit.TenantScope(1)
	tests := []struct {
		name       string
		mutate     func([]audit.Event) []audit.Event
		wantValid  bool
		wantBroken int // index into the chain, -1 for none
	}{
		{"intact", func(e []audit.Event) []audit.Event { return e }, true, -1},
		{"empty", func([]audit.Event) []audit.Event { return nil }, true, -1},
		{"tampered description", func(e []audit.Event) []audit.Event {
			e[1].Description = "rewritten"
			return e
		}, false, 1},
		{"tampered self hash", func(e []audit.Event) []audit.Event {
			e[1].SelfHash = "sha256:0000"
			return e
		}, false, 1},
		{"gap", func(e []audit.Event) []audit.Event {
			return append(e[:1:1], e[2:]...)
		}, false, 2},
		{"first links somewhere", func(e []audit.Event) []audit.Event {
			return e[1:]
		}, false, 1},
		{"missing previous", func(e []audit.Event) []audit.Event {
			e[2].PreviousHash = nil
			return e
		}, false, 2},
		{"reordered", func(e []audit.Event) []audit.Event {
			e[1], e[2] = e[2], e[1]
			return e
		}, false, 2},
		{"unchained events skipped", func(e []audit.Event) []audit.Event {
			extra := audit.Event{ID: 100, ChainScope: scope, Chained: false}
			return append(e, extra)
		}, true, -1},
		{"foreign scope", func(e []audit.Event) []audit.Event {
			e[0].ChainScope = audit.GlobalScope
			return e
		}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := buildChain(t, 4)
			ids := make([]int64, len(chain))
			for i := range chain {
				ids[i] = chain[i].ID
			}
			res := audit.VerifyEvents(scope, tt.mutate(chain))
			assert.Equal(t, tt.wantValid, res.Valid, res.Reason)
			if tt.wantBroken >= 0 {
				assert.Equal(t, ids[tt.wantBroken], res.BrokenAt)
				assert.NotEmpty(t, res.Reason)
			} else {
				assert.Zero(t, res.BrokenAt)
			}
		})
	}
}

func TestVerifyEvents_CountsChecked(t *testing.T) {
	chain := buildChain(t, 3)
	res := audit.VerifyEvents(audit.TenantScope(1), chain)
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.Events)
	assert.Equal(t, audit.TenantScope(1), res.Scope)
}

func TestVerifySnapshot(t *testing.T) {
	scope := audit.TenantScope(1)
	tests := []struct {
		name       string
		mutate     func(c *audit.Chain)
		wantValid  bool
		wantBroken int // index into the chain, -1 for none
	}{
		{"intact", func(*audit.Chain) {}, true, -1},
		{"truncated last", func(c *audit.Chain) {
			c.Events = c.Events[:3]
		}, false, 2},
		{"forged last unchained", func(c *audit.Chain) {
			c.Events[3].Description = "rewritten"
			c.Events[3].Chained = false
		}, false, 3},
		{"unchained in the middle", func(c *audit.Chain) {
			c.Events[1].Chained = false
		}, false, 1},
		{"missing tail", func(c *audit.Chain) {
			c.Tail = nil
		}, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := buildChain(t, 4)
			ids := make([]int64, len(events))
			for i := range events {
				ids[i] = events[i].ID
			}
			tail := events[3].SelfHash
			c := audit.Chain{Scope: scope, Events: events, Tail: &tail}
			tt.mutate(&c)

			res := audit.VerifySnapshot(c)
			assert.Equal(t, tt.wantValid, res.Valid, res.Reason)
			if tt.wantBroken >= 0 {
				assert.Equal(t, ids[tt.wantBroken], res.BrokenAt)
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestVerifySnapshot_TailWithoutEvents(t *testing.T) {
	tail := "sha256:ab"
	res := audit.VerifySnapshot(audit.Chain{Scope: audit.GlobalScope, Tail: &tail})
	assert.False(t, res.Valid)
	assert.Zero(t, res.BrokenAt)
	assert.Equal(t, "chain does not end at the stored tail", res.Reason)
}
