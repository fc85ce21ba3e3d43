// Package tracker counts how many times each open position has been added to.
//
// A Tracker is owned by the dispatcher and is not safe for concurrent use;
// cycles never overlap, so no locking is needed.
package tracker

import (
	"fmt"
	"sort"
)

// Action is a position lifecycle transition confirmed by the broker
type Action string

// Lifecycle actions
const (
	Opened Action = "opened"
	Added  Action = "added"
	Closed Action = "closed"
)

// Tracker maps symbol to the number of pyramiding additions
type Tracker struct {
	counts map[string]int
	dirty  bool
}

// New creates an empty Tracker
func New() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

// Update applies a lifecycle action to a symbol's counter
func (t *Tracker) Update(symbol string, action Action) error {
	switch action {
	case Opened:
		t.counts[symbol] = 0
	case Added:
		t.counts[symbol]++
	case Closed:
		delete(t.counts, symbol)
	default:
		return fmt.Errorf("unknown position action: %q", action)
	}
	t.dirty = true
	return nil
}

// Additions returns the counter for symbol, 0 when untracked
func (t *Tracker) Additions(symbol string) int {
	return t.counts[symbol]
}

// Tracked reports whether symbol has an entry
func (t *Tracker) Tracked(symbol string) bool {
	_, ok := t.counts[symbol]
	return ok
}

// Symbols returns the tracked symbols in ascending order
func (t *Tracker) Symbols() []string {
	symbols := make([]string, 0, len(t.counts))
	for s := range t.counts {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Snapshot returns a copy of all counters
func (t *Tracker) Snapshot() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Restore replaces all counters, typically from persisted state at startup
func (t *Tracker) Restore(counts map[string]int) {
	t.counts = make(map[string]int, len(counts))
	for k, v := range counts {
		t.counts[k] = v
	}
	t.dirty = false
}

// Dirty reports whether counters changed since the last MarkClean or Restore
func (t *Tracker) Dirty() bool {
	return t.dirty
}

// MarkClean records that the current counters have been persisted
func (t *Tracker) MarkClean() {
	t.dirty = false
}
