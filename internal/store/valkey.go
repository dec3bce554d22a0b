package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/persona-dev/personad/internal/schedule"
)

const historyKeyPrefix = "schedule:history:"

// ValkeyConfig holds connection settings for a Valkey or Redis server.
type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

// ValkeyStore persists schedule history in a Valkey hash per agent. Hash
// fields are the item's start time in unix seconds, values are JSON
// entries; writing the same start time twice upserts. Multiple processes
// sharing one store get last-writer-wins semantics, nothing stronger.
type ValkeyStore struct {
	client *redis.Client
}

// NewValkeyStore creates a Valkey-backed history store.
func NewValkeyStore(cfg ValkeyConfig) *ValkeyStore {
	return &ValkeyStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Ping verifies the connection.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("valkey ping failed: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (s *ValkeyStore) Close() error {
	return s.client.Close()
}

func historyKey(agentID string) string {
	return historyKeyPrefix + agentID
}

// Add upserts an entry and prunes expired ones in the same write.
func (s *ValkeyStore) Add(ctx context.Context, agentID string, entry schedule.HistoryEntry, retention time.Duration, now time.Time) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	field := strconv.FormatInt(entry.Item.StartTime.Unix(), 10)
	if err := s.client.HSet(ctx, historyKey(agentID), field, data).Err(); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}

	return s.Prune(ctx, agentID, retention, now)
}

// List returns the agent's entries ordered by actual start ascending.
func (s *ValkeyStore) List(ctx context.Context, agentID string) ([]schedule.HistoryEntry, error) {
	values, err := s.client.HGetAll(ctx, historyKey(agentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]schedule.HistoryEntry, 0, len(values))
	for _, raw := range values {
		var entry schedule.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Skip undecodable entries rather than failing the whole read;
			// they are pruned once their field ages out.
			continue
		}
		out = append(out, entry)
	}

	sortEntries(out)
	return out, nil
}

// Prune removes entries whose ActualEnd is older than retention before now.
func (s *ValkeyStore) Prune(ctx context.Context, agentID string, retention time.Duration, now time.Time) error {
	key := historyKey(agentID)
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read history for pruning: %w", err)
	}

	cutoff := now.Add(-retention)
	var stale []string
	for field, raw := range values {
		var entry schedule.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			stale = append(stale, field)
			continue
		}
		if entry.ActualEnd.Before(cutoff) {
			stale = append(stale, field)
		}
	}

	if len(stale) > 0 {
		if err := s.client.HDel(ctx, key, stale...).Err(); err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}
	return nil
}

func sortEntries(entries []schedule.HistoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ActualStart.Before(entries[j].ActualStart)
	})
}
