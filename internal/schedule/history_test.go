package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(day time.Time, hour int, activity string, status CompletionStatus) HistoryEntry {
	start := AtClock(day, hour, 0)
	return HistoryEntry{
		Item: Item{
			StartTime: start,
			EndTime:   start.Add(time.Hour),
			Activity:  activity,
			Status:    StatusWorking,
		},
		ActualStart:      start,
		ActualEnd:        start.Add(time.Hour),
		CompletionStatus: status,
	}
}

func TestRecentEntries(t *testing.T) {
	day := tokyoDay(t)
	entries := []HistoryEntry{
		entryAt(day, 13, "c", CompletionCompleted),
		entryAt(day, 9, "a", CompletionCompleted),
		entryAt(day, 11, "b", CompletionCompleted),
		entryAt(day, 15, "d", CompletionCompleted),
	}

	recent := RecentEntries(entries, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Item.Activity)
	assert.Equal(t, "d", recent[1].Item.Activity)

	all := RecentEntries(entries, 10)
	assert.Len(t, all, 4)
}

func TestOpenShutdownEntry(t *testing.T) {
	day := tokyoDay(t)

	_, ok := OpenShutdownEntry(nil)
	assert.False(t, ok)

	entries := []HistoryEntry{
		entryAt(day, 9, "work", CompletionCompleted),
		entryAt(day, 10, "stop", CompletionShutdown),
		entryAt(day, 14, "stop again", CompletionShutdown),
	}

	found, ok := OpenShutdownEntry(entries)
	require.True(t, ok)
	assert.Equal(t, "stop again", found.Item.Activity, "newest shutdown record wins")
}
