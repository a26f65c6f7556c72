package audit

import "fmt"

// VerifyResult is the outcome of walking one chain.
type VerifyResult struct {
	Scope string `json:"scope" yaml:"scope"`
	Valid bool   `json:"valid" yaml:"valid"`
	// Events is the number of chained events checked before stopping.
	Events int `json:"events" yaml:"events"`
	// BrokenAt is the id of the first event that failed, zero when valid.
	BrokenAt int64  `json:"brokenAt,omitempty" yaml:"brokenAt,omitempty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// VerifySnapshot walks c.Events like VerifyEvents and then requires the last
// chained event to be the one c.Tail points at. Once a scope has a tail every
// event in it must be chained, so unchaining a row cannot hide it from the
// walk and removing trailing rows leaves the tail dangling.
func VerifySnapshot(c Chain) VerifyResult {
	if c.Tail != nil {
		for i := range c.Events {
			if !c.Events[i].Chained {
				res := VerifyResult{Scope: c.Scope}
				return res.broken(&c.Events[i], "unchained event in a chained scope")
			}
		}
	}

	res, last := walk(c.Scope, c.Events)
	if !res.Valid {
		return res
	}
	var lastHash *string
	if last != nil {
		lastHash = &last.SelfHash
	}
	if !SameTail(lastHash, c.Tail) {
		res.Valid = false
		if last != nil {
			res.BrokenAt = last.ID
		}
		res.Reason = "chain does not end at the stored tail"
	}
	return res
}

// VerifyEvents walks events in chain order. Every chained event must hash to
// its stored selfHash and point at the selfHash of the chained event before
// it; the first one must have no previousHash. Events with Chained=false are
// skipped. An empty chain is valid. VerifyEvents knows nothing about the
// stored tail; use VerifySnapshot to catch removed or unchained trailing
// events.
func VerifyEvents(scope string, events []Event) VerifyResult {
	res, _ := walk(scope, events)
	return res
}

func walk(scope string, events []Event) (VerifyResult, *Event) {
	res := VerifyResult{Scope: scope, Valid: true}

	var prev *Event
	for i := range events {
		e := &events[i]
		if !e.Chained {
			continue
		}
		if e.ChainScope != scope {
			return res.broken(e, fmt.Sprintf("event belongs to scope %q", e.ChainScope)), nil
		}
		if prev != nil && e.ID <= prev.ID {
			return res.broken(e, "events out of chain order"), nil
		}

		switch {
		case prev == nil && e.PreviousHash != nil:
			return res.broken(e, "first event links to a predecessor"), nil
		case prev != nil && e.PreviousHash == nil:
			return res.broken(e, "missing previous hash"), nil
		case prev != nil && *e.PreviousHash != prev.SelfHash:
			return res.broken(e, fmt.Sprintf("previous hash does not match event %d", prev.ID)), nil
		}

		got, err := RecomputeHash(e)
		if err != nil {
			return res.broken(e, err.Error()), nil
		}
		if got != e.SelfHash {
			return res.broken(e, "self hash mismatch"), nil
		}

		res.Events++
		prev = e
	}
	return res, prev
}

func (r VerifyResult) broken(e *Event, reason string) VerifyResult {
	r.Valid = false
	r.BrokenAt = e.ID
	r.Reason = reason
	return r
}
