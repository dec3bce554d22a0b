package schedule

import (
	"context"
	"sort"
	"time"
)

// DefaultRetentionHours bounds how long completed items are kept.
const DefaultRetentionHours = 24

// HistoryStore persists archived schedule items per agent. Implementations
// may be in-memory or backed by an external key-value store; the engine
// assumes best effort, eventually consistent semantics and nothing more.
// Entries are keyed by Item.StartTime, so Add is an idempotent upsert.
type HistoryStore interface {
	// Add upserts an entry and prunes entries whose ActualEnd is older than
	// retention, measured against now. Eviction happens on write, not in a
	// background sweep.
	Add(ctx context.Context, agentID string, entry HistoryEntry, retention time.Duration, now time.Time) error

	// List returns the agent's entries ordered by ActualStart ascending.
	List(ctx context.Context, agentID string) ([]HistoryEntry, error)

	// Prune removes entries whose ActualEnd is older than retention,
	// measured against now.
	Prune(ctx context.Context, agentID string, retention time.Duration, now time.Time) error
}

// RecentEntries returns the newest n entries by ActualStart, oldest first.
// The incremental generator feeds these to the LLM as context.
func RecentEntries(entries []HistoryEntry, n int) []HistoryEntry {
	sorted := make([]HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ActualStart.Before(sorted[j].ActualStart)
	})
	if len(sorted) <= n {
		return sorted
	}
	return sorted[len(sorted)-n:]
}

// OpenShutdownEntry finds an unclosed shutdown record from a previous run:
// the newest entry with CompletionStatus shutdown. Startup uses it to
// compute elapsed downtime.
func OpenShutdownEntry(entries []HistoryEntry) (HistoryEntry, bool) {
	var found HistoryEntry
	var ok bool
	for _, e := range entries {
		if e.CompletionStatus != CompletionShutdown {
			continue
		}
		if !ok || e.ActualStart.After(found.ActualStart) {
			found = e
			ok = true
		}
	}
	return found, ok
}
