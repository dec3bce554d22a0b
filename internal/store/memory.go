// Package store provides history persistence backends for the schedule
// engine: an in-memory store for single-process setups and tests, and a
// Valkey-backed store for deployments that survive restarts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/persona-dev/personad/internal/schedule"
)

// MemoryStore keeps schedule history in process memory. Entries are keyed
// by the item's start time, so repeated writes of the same item upsert.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[int64]schedule.HistoryEntry
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[int64]schedule.HistoryEntry),
	}
}

// Add upserts an entry and prunes expired ones in the same write.
func (s *MemoryStore) Add(ctx context.Context, agentID string, entry schedule.HistoryEntry, retention time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agentEntries := s.entries[agentID]
	if agentEntries == nil {
		agentEntries = make(map[int64]schedule.HistoryEntry)
		s.entries[agentID] = agentEntries
	}
	agentEntries[entry.Item.StartTime.Unix()] = entry

	s.pruneLocked(agentID, retention, now)
	return nil
}

// List returns the agent's entries ordered by actual start ascending.
func (s *MemoryStore) List(ctx context.Context, agentID string) ([]schedule.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agentEntries := s.entries[agentID]
	out := make([]schedule.HistoryEntry, 0, len(agentEntries))
	for _, e := range agentEntries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActualStart.Before(out[j].ActualStart)
	})
	return out, nil
}

// Prune removes entries whose ActualEnd is older than retention before now.
func (s *MemoryStore) Prune(ctx context.Context, agentID string, retention time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(agentID, retention, now)
	return nil
}

func (s *MemoryStore) pruneLocked(agentID string, retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention)
	for key, e := range s.entries[agentID] {
		if e.ActualEnd.Before(cutoff) {
			delete(s.entries[agentID], key)
		}
	}
}
