package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCurrentLastWriteWins(t *testing.T) {
	day := tokyoDay(t)
	cache := NewCache()

	_, ok := cache.Current("mio")
	assert.False(t, ok)

	first := mkItem(day, 9, 0, 10, 0, "Work", StatusWorking)
	override := mkItem(day, 9, 30, 10, 0, "Talking", StatusAvailable)

	cache.SetCurrent("mio", first)
	cache.SetCurrent("mio", override)

	got, ok := cache.Current("mio")
	require.True(t, ok)
	assert.Equal(t, override, got)
}

func TestCachePromote(t *testing.T) {
	day := tokyoDay(t)
	cache := NewCache()

	current := mkItem(day, 9, 0, 10, 0, "Work", StatusWorking)
	next := mkItem(day, 10, 0, 11, 0, "Break", StatusAvailable)
	cache.SetCurrent("mio", current)
	cache.SetNext("mio", next)

	expired, hadCurrent, promotedItem, promoted := cache.Promote("mio")
	require.True(t, hadCurrent)
	require.True(t, promoted)
	assert.Equal(t, current, expired)
	assert.Equal(t, next, promotedItem)

	got, ok := cache.Current("mio")
	require.True(t, ok)
	assert.Equal(t, next, got)

	_, ok = cache.Next("mio")
	assert.False(t, ok, "promoted item must leave the next slot")
}

func TestCachePromoteWithoutNextClearsCurrent(t *testing.T) {
	day := tokyoDay(t)
	cache := NewCache()
	cache.SetCurrent("mio", mkItem(day, 9, 0, 10, 0, "Work", StatusWorking))

	_, hadCurrent, _, promoted := cache.Promote("mio")
	assert.True(t, hadCurrent)
	assert.False(t, promoted)

	_, ok := cache.Current("mio")
	assert.False(t, ok)
}

func TestCachePromoteEmpty(t *testing.T) {
	cache := NewCache()
	_, hadCurrent, _, promoted := cache.Promote("ghost")
	assert.False(t, hadCurrent)
	assert.False(t, promoted)
}

func TestCacheAgentIDs(t *testing.T) {
	day := tokyoDay(t)
	cache := NewCache()
	cache.SetCurrent("a", mkItem(day, 9, 0, 10, 0, "x", StatusWorking))
	cache.SetNext("b", mkItem(day, 10, 0, 11, 0, "y", StatusAvailable))
	cache.SetDay("c", fullDay(t, day))
	cache.SetCurrent("a", mkItem(day, 10, 0, 11, 0, "z", StatusEating))

	ids := cache.AgentIDs()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}
