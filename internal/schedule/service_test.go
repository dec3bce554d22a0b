package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/llm"
)

// memoryHistory is a minimal in-package history store for service tests.
type memoryHistory struct {
	entries map[string]map[int64]HistoryEntry
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: make(map[string]map[int64]HistoryEntry)}
}

func (s *memoryHistory) Add(ctx context.Context, agentID string, entry HistoryEntry, retention time.Duration, now time.Time) error {
	if s.entries[agentID] == nil {
		s.entries[agentID] = make(map[int64]HistoryEntry)
	}
	s.entries[agentID][entry.Item.StartTime.Unix()] = entry
	return s.Prune(ctx, agentID, retention, now)
}

func (s *memoryHistory) List(ctx context.Context, agentID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, e := range s.entries[agentID] {
		out = append(out, e)
	}
	return out, nil
}

func (s *memoryHistory) Prune(ctx context.Context, agentID string, retention time.Duration, now time.Time) error {
	cutoff := now.Add(-retention)
	for key, e := range s.entries[agentID] {
		if e.ActualEnd.Before(cutoff) {
			delete(s.entries[agentID], key)
		}
	}
	return nil
}

type serviceFixture struct {
	service   *Service
	provider  *llm.MockProvider
	history   *memoryHistory
	directory *agent.Directory
	clock     FixedClock
}

func newServiceFixture(t *testing.T, provider *llm.MockProvider, now time.Time) *serviceFixture {
	t.Helper()

	directory := agent.NewDirectory("")
	require.NoError(t, directory.Register(tokyoProfile()))

	history := newMemoryHistory()
	log := testLogger(t)
	gen := NewGenerator(provider, GeneratorConfig{}, log)
	clock := FixedClock{Instant: now}

	svc := NewService(directory, history, gen, clock, ServiceConfig{}, log, nil)
	return &serviceFixture{
		service:   svc,
		provider:  provider,
		history:   history,
		directory: directory,
		clock:     clock,
	}
}

func TestGetCurrentScheduleBeforeGeneration(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	_, err := f.service.GetCurrentSchedule("mio")
	assert.ErrorIs(t, err, ErrNoSchedule)

	_, err = f.service.GetCurrentSchedule("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestGetCurrentAvailabilityFailsClosed(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	for _, ch := range Channels {
		available, err := f.service.GetCurrentAvailability("mio", ch)
		require.NoError(t, err)
		assert.False(t, available, "no current item must read unavailable on %s", ch)
	}
}

func TestGetCurrentAvailabilityFollowsTable(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 12, 30))

	f.service.Cache().SetCurrent("mio", mkItem(day, 12, 0, 13, 0, "Lunch", StatusEating))

	chat, err := f.service.GetCurrentAvailability("mio", ChannelChat)
	require.NoError(t, err)
	assert.True(t, chat)

	video, err := f.service.GetCurrentAvailability("mio", ChannelVideo)
	require.NoError(t, err)
	assert.False(t, video)
}

func TestForceAvailableOverridesSleepingItem(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)
	f := newServiceFixture(t, llm.NewEchoProvider(), now)

	sleeping := Item{
		StartTime: time.Date(2026, 3, 10, 22, 0, 0, 0, loc),
		EndTime:   time.Date(2026, 3, 11, 8, 0, 0, 0, loc),
		Activity:  "Sleeping",
		Status:    StatusSleeping,
	}
	f.service.Cache().SetCurrent("mio", sleeping)

	override, err := f.service.ForceAvailable(context.Background(), "mio")
	require.NoError(t, err)

	assert.Equal(t, StatusAvailable, override.Status)
	assert.Equal(t, "Talking", override.Activity)
	assert.True(t, override.EndTime.Equal(sleeping.EndTime),
		"override keeps the original end time")

	current, ok := f.service.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, override, current)

	// The interrupted item lands in history.
	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CompletionInterrupted, entries[0].CompletionStatus)
	assert.Equal(t, "Sleeping", entries[0].Item.Activity)
}

func TestForceAvailableWithoutCurrent(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	_, err := f.service.ForceAvailable(context.Background(), "mio")
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestUpdateCurrentScheduleArchivesReplacedItem(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	original := mkItem(day, 9, 0, 12, 0, "Work", StatusWorking)
	replacement := mkItem(day, 10, 0, 11, 0, "Meeting", StatusWorking)
	f.service.Cache().SetCurrent("mio", original)

	require.NoError(t, f.service.UpdateCurrentSchedule(context.Background(), "mio", replacement))

	current, ok := f.service.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, replacement, current)

	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CompletionModified, entries[0].CompletionStatus)
}

func TestUpdateCurrentScheduleRejectsInvalidItem(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	bad := mkItem(day, 12, 0, 9, 0, "Backwards", StatusWorking)
	err := f.service.UpdateCurrentSchedule(context.Background(), "mio", bad)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestHistoryRetention(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	now := time.Now()
	old := HistoryEntry{
		Item:             mkItem(day, 1, 0, 2, 0, "old", StatusWorking),
		ActualStart:      now.Add(-26 * time.Hour),
		ActualEnd:        now.Add(-25 * time.Hour),
		CompletionStatus: CompletionCompleted,
	}
	fresh := HistoryEntry{
		Item:             mkItem(day, 8, 0, 9, 0, "fresh", StatusWorking),
		ActualStart:      now.Add(-2 * time.Hour),
		ActualEnd:        now.Add(-time.Hour),
		CompletionStatus: CompletionCompleted,
	}

	retention := f.service.Retention()
	require.Equal(t, DefaultRetentionHours*time.Hour, retention)

	require.NoError(t, f.history.Add(context.Background(), "mio", old, retention, now))
	require.NoError(t, f.history.Add(context.Background(), "mio", fresh, retention, now))

	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Item.Activity)
}

func TestInitializeLateNightSynthesizesSleep(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)

	provider := llm.NewErrorProvider()
	f := newServiceFixture(t, provider, now)

	require.NoError(t, f.service.Initialize(context.Background()))

	current, err := f.service.GetCurrentSchedule("mio")
	require.NoError(t, err)
	assert.Equal(t, StatusSleeping, current.Status)
	assert.True(t, current.EndTime.Equal(time.Date(2026, 3, 11, 8, 0, 0, 0, loc)))
	assert.Equal(t, 0, provider.GetCallCount())
}

func TestShutdownArchivesShutdownRecord(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	f.service.Cache().SetCurrent("mio", mkItem(day, 9, 0, 12, 0, "Work", StatusWorking))
	f.service.Shutdown(context.Background())

	_, err := f.service.GetCurrentSchedule("mio")
	assert.ErrorIs(t, err, ErrNoSchedule)

	entries, err := f.service.GetAgentScheduleHistory(context.Background(), "mio")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CompletionShutdown, entries[0].CompletionStatus)
	assert.True(t, entries[0].ActualStart.Equal(entries[0].ActualEnd),
		"shutdown record stays open until the next startup closes it")
}

func TestRegenerateDayPlanInstallsCurrentItem(t *testing.T) {
	day := tokyoDay(t)
	provider := llm.NewFixedProvider(`{"schedule": [
		{"start_time": "08:00", "end_time": "12:00", "activity": "Work", "status": "working"},
		{"start_time": "12:00", "end_time": "22:00", "activity": "Afternoon", "status": "available"}
	]}`)
	f := newServiceFixture(t, provider, AtClock(day, 10, 0))

	plan, err := f.service.RegenerateDayPlan(context.Background(), "mio")
	require.NoError(t, err)
	require.NoError(t, plan.Validate())

	current, err := f.service.GetCurrentSchedule("mio")
	require.NoError(t, err)
	assert.Equal(t, "Work", current.Activity)
}

func TestStatusContextComposition(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 12, 30))

	f.service.Cache().SetDay("mio", fullDay(t, day))
	f.service.Cache().SetCurrent("mio", mkItem(day, 9, 0, 22, 0, "Work", StatusWorking))

	sc, err := f.service.GetCurrentStatusContext("mio", ChannelVideo)
	require.NoError(t, err)

	assert.False(t, sc.Available, "working blocks video")
	require.NotNil(t, sc.Current)
	assert.Equal(t, "Work", sc.Current.Activity)
	require.NotNil(t, sc.NextAvailable,
		"no video-capable item in this plan, so the projected wake stands in")
	assert.True(t, sc.NextAvailable.StartTime.Equal(AtClock(day, 8, 0).AddDate(0, 0, 1)))

	scChat, err := f.service.GetCurrentStatusContext("mio", ChannelChat)
	require.NoError(t, err)
	assert.True(t, scChat.Available)
}

func TestStatusContextFallsBackToProjectedWake(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)
	f := newServiceFixture(t, llm.NewEchoProvider(), now)

	// Only a current sleep block is cached: no next slot, no day plan.
	f.service.Cache().SetCurrent("mio", Item{
		StartTime: time.Date(2026, 3, 10, 22, 0, 0, 0, loc),
		EndTime:   time.Date(2026, 3, 11, 8, 0, 0, 0, loc),
		Activity:  "Sleeping",
		Status:    StatusSleeping,
	})

	sc, err := f.service.GetCurrentStatusContext("mio", ChannelChat)
	require.NoError(t, err)
	assert.False(t, sc.Available)
	require.NotNil(t, sc.NextAvailable)
	assert.Equal(t, StatusAvailable, sc.NextAvailable.Status)
	assert.True(t, sc.NextAvailable.StartTime.Equal(time.Date(2026, 3, 11, 8, 0, 0, 0, loc)),
		"the projection lands on the next wake time")
}

func TestStatusContextFailClosedWithoutCurrent(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 10, 0))

	sc, err := f.service.GetCurrentStatusContext("mio", ChannelChat)
	require.NoError(t, err)
	assert.False(t, sc.Available)
	assert.Nil(t, sc.Current)
}

func TestStatusContextNextAvailableFromNextSlot(t *testing.T) {
	day := tokyoDay(t)
	f := newServiceFixture(t, llm.NewEchoProvider(), AtClock(day, 12, 30))

	f.service.Cache().SetCurrent("mio", mkItem(day, 12, 0, 13, 0, "Lunch", StatusEating))
	f.service.Cache().SetNext("mio", mkItem(day, 13, 0, 14, 0, "Free time", StatusAvailable))

	sc, err := f.service.GetCurrentStatusContext("mio", ChannelVideo)
	require.NoError(t, err)
	assert.False(t, sc.Available)
	require.NotNil(t, sc.NextAvailable)
	assert.Equal(t, "Free time", sc.NextAvailable.Activity)
}
