package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-dev/personad/internal/llm"
)

func newMonitorFixture(t *testing.T, provider *llm.MockProvider, now time.Time) (*Monitor, *serviceFixture) {
	t.Helper()

	f := newServiceFixture(t, provider, now)
	gen := NewGenerator(provider, GeneratorConfig{}, testLogger(t))
	monitor := NewMonitor(f.service, gen, f.directory, f.clock, MonitorConfig{}, testLogger(t), nil)
	return monitor, f
}

func TestTickRotatesExpiredItem(t *testing.T) {
	day := tokyoDay(t)
	monitor, f := newMonitorFixture(t, llm.NewEchoProvider(), AtClock(day, 12, 0))

	expired := mkItem(day, 9, 0, 12, 0, "Work", StatusWorking)
	next := mkItem(day, 12, 0, 13, 0, "Lunch", StatusEating)
	f.service.Cache().SetCurrent("mio", expired)
	f.service.Cache().SetNext("mio", next)

	monitor.Tick(context.Background())

	current, ok := f.service.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, next, current)

	_, ok = f.service.Cache().Next("mio")
	assert.False(t, ok, "promoted item must leave the next slot")

	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CompletionCompleted, entries[0].CompletionStatus)
	assert.Equal(t, "Work", entries[0].Item.Activity)
}

func TestTickLeavesActiveItemAlone(t *testing.T) {
	day := tokyoDay(t)
	provider := llm.NewErrorProvider()
	monitor, f := newMonitorFixture(t, provider, AtClock(day, 10, 0))

	active := mkItem(day, 9, 0, 12, 0, "Work", StatusWorking)
	f.service.Cache().SetCurrent("mio", active)

	monitor.Tick(context.Background())

	current, ok := f.service.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, active, current)
	assert.Equal(t, 0, provider.GetCallCount(),
		"an item with more than the lookahead remaining triggers no generation")
}

func TestTickLookaheadFromDayPlan(t *testing.T) {
	day := tokyoDay(t)
	provider := llm.NewErrorProvider()
	monitor, f := newMonitorFixture(t, provider, AtClock(day, 8, 45))

	plan := fullDay(t, day)
	f.service.Cache().SetDay("mio", plan)
	f.service.Cache().SetCurrent("mio", plan.Items[1]) // Breakfast until 09:00

	monitor.Tick(context.Background())

	next, ok := f.service.Cache().Next("mio")
	require.True(t, ok, "next item comes from the cached day plan without an LLM call")
	assert.Equal(t, "Work", next.Activity)
	assert.Equal(t, 0, provider.GetCallCount())

	// Subsequent ticks see the cached next item and stay idle.
	monitor.Tick(context.Background())
	monitor.Tick(context.Background())
	assert.Equal(t, 0, provider.GetCallCount())
}

func TestTickLookaheadGeneratesOnce(t *testing.T) {
	day := tokyoDay(t)
	provider := llm.NewFixedProvider(`{"start_time": "12:00", "end_time": "13:00", "activity": "Lunch", "status": "eating"}`)
	monitor, f := newMonitorFixture(t, provider, AtClock(day, 11, 45))

	f.service.Cache().SetCurrent("mio", mkItem(day, 9, 0, 12, 0, "Work", StatusWorking))

	monitor.Tick(context.Background())

	require.Eventually(t, func() bool {
		_, ok := f.service.Cache().Next("mio")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	next, _ := f.service.Cache().Next("mio")
	assert.Equal(t, "Lunch", next.Activity)
	assert.True(t, next.StartTime.Equal(AtClock(day, 12, 0)))

	monitor.Tick(context.Background())
	assert.Equal(t, 1, provider.GetCallCount(),
		"a cached next item suppresses further generation")
}

func TestTickRegeneratesEmptyCurrentSlot(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)

	provider := llm.NewErrorProvider()
	monitor, f := newMonitorFixture(t, provider, now)

	monitor.Tick(context.Background())

	require.Eventually(t, func() bool {
		_, ok := f.service.Cache().Current("mio")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	current, _ := f.service.Cache().Current("mio")
	assert.Equal(t, StatusSleeping, current.Status, "late night regeneration synthesizes sleep")
	assert.Equal(t, 0, provider.GetCallCount())
}

func TestTickExpiredWithoutNextWarnsAndRegenerates(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, loc)

	monitor, f := newMonitorFixture(t, llm.NewErrorProvider(), now)
	f.service.Cache().SetCurrent("mio", Item{
		StartTime: time.Date(2026, 3, 10, 21, 0, 0, 0, loc),
		EndTime:   time.Date(2026, 3, 10, 22, 0, 0, 0, loc),
		Activity:  "Wind down",
		Status:    StatusAvailable,
	})

	monitor.Tick(context.Background())

	// The expired item is archived even though nothing was ready to replace it.
	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CompletionCompleted, entries[0].CompletionStatus)

	require.Eventually(t, func() bool {
		_, ok := f.service.Cache().Current("mio")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTickCancelledContext(t *testing.T) {
	day := tokyoDay(t)
	monitor, f := newMonitorFixture(t, llm.NewEchoProvider(), AtClock(day, 12, 0))
	f.service.Cache().SetCurrent("mio", mkItem(day, 9, 0, 12, 0, "Work", StatusWorking))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	monitor.Tick(ctx)

	current, ok := f.service.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, "Work", current.Activity, "a cancelled tick must not touch the cache")
}

func TestMonitorStartStop(t *testing.T) {
	day := tokyoDay(t)
	monitor, _ := newMonitorFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	require.NoError(t, monitor.Start())
	require.NoError(t, monitor.Start(), "double start is a no-op")
	require.NoError(t, monitor.Stop())
	require.NoError(t, monitor.Stop(), "double stop is a no-op")
}
