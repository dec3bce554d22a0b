package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/bus"
	"github.com/persona-dev/personad/internal/llm"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/schedule"
	"github.com/persona-dev/personad/internal/store"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

type responderFixture struct {
	responder *Responder
	scheduler *schedule.Service
	provider  *llm.MockProvider
	now       time.Time
}

// newResponderFixture wires a responder against a real schedule service with
// a fixed clock. The schedule generator and the reply generator share the
// mock provider.
func newResponderFixture(t *testing.T, now time.Time) *responderFixture {
	t.Helper()

	directory := agent.NewDirectory("")
	require.NoError(t, directory.Register(&agent.Profile{
		ID:          "mio",
		Name:        "Mio",
		Personality: "A cheerful assistant.",
		Schedule: agent.ScheduleConfig{
			Timezone:  "Asia/Tokyo",
			WakeTime:  "08:00",
			SleepTime: "22:00",
		},
	}))

	log := testLogger(t)
	provider := llm.NewFixedProvider("Hi there!")
	gen := schedule.NewGenerator(provider, schedule.GeneratorConfig{}, log)
	svc := schedule.NewService(directory, store.NewMemoryStore(), gen,
		schedule.FixedClock{Instant: now}, schedule.ServiceConfig{}, log, nil)

	return &responderFixture{
		responder: NewResponder(directory, svc, provider, nil, log),
		scheduler: svc,
		provider:  provider,
		now:       now,
	}
}

func tokyoTime(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return time.Date(2026, 3, 10, hour, minute, 0, 0, loc)
}

func sleepingItem(t *testing.T) schedule.Item {
	t.Helper()
	return schedule.Item{
		StartTime: tokyoTime(t, 22, 0).AddDate(0, 0, -1),
		EndTime:   tokyoTime(t, 8, 0),
		Activity:  "Sleeping",
		Status:    schedule.StatusSleeping,
	}
}

func inbound(content string, force bool) bus.InboundMessage {
	msg := bus.NewInboundMessage(bus.TransportAPI, "mio", "user-1", "session-1", content, schedule.ChannelChat)
	msg.ForceGenerate = force
	return *msg
}

func TestRespondWhileAvailable(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 10, 0))
	f.scheduler.Cache().SetCurrent("mio", schedule.Item{
		StartTime: tokyoTime(t, 9, 0),
		EndTime:   tokyoTime(t, 12, 0),
		Activity:  "Free time",
		Status:    schedule.StatusAvailable,
	})

	reply, err := f.responder.Respond(context.Background(), inbound("hello", false))
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
	assert.Equal(t, 1, f.provider.GetCallCount())

	current, ok := f.scheduler.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, "Free time", current.Activity, "an available agent needs no override")
}

func TestRespondWhileSleepingGivesBusyReply(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 2, 0))
	f.scheduler.Cache().SetCurrent("mio", sleepingItem(t))

	reply, err := f.responder.Respond(context.Background(), inbound("are you up?", false))
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	// The busy path answers without touching the schedule.
	current, ok := f.scheduler.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, schedule.StatusSleeping, current.Status)
}

func TestRespondForceGenerateOverridesSchedule(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 2, 0))
	item := sleepingItem(t)
	f.scheduler.Cache().SetCurrent("mio", item)

	reply, err := f.responder.Respond(context.Background(), inbound("wake up, it's urgent", true))
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	current, ok := f.scheduler.Cache().Current("mio")
	require.True(t, ok)
	assert.Equal(t, "Talking", current.Activity)
	assert.Equal(t, schedule.StatusAvailable, current.Status)
	assert.True(t, current.EndTime.Equal(item.EndTime),
		"the override inherits the interrupted item's end time")

	// Later messages in the same window hit the override and need no force.
	_, err = f.responder.Respond(context.Background(), inbound("still there?", false))
	require.NoError(t, err)
	current, _ = f.scheduler.Cache().Current("mio")
	assert.Equal(t, "Talking", current.Activity)
}

func TestRespondForceGenerateWithoutScheduleStillReplies(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 10, 0))

	reply, err := f.responder.Respond(context.Background(), inbound("anyone home?", true))
	require.NoError(t, err)
	assert.NotEmpty(t, reply, "a missing schedule downgrades the override, not the reply")
}

func TestRespondUnknownAgent(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 10, 0))

	msg := inbound("hello", false)
	msg.AgentID = "ghost"
	_, err := f.responder.Respond(context.Background(), msg)
	assert.Error(t, err)
}

func TestRespondDefaultsToChatMedium(t *testing.T) {
	f := newResponderFixture(t, tokyoTime(t, 12, 30))
	f.scheduler.Cache().SetCurrent("mio", schedule.Item{
		StartTime: tokyoTime(t, 12, 0),
		EndTime:   tokyoTime(t, 13, 0),
		Activity:  "Lunch",
		Status:    schedule.StatusEating,
	})

	msg := inbound("hello", false)
	msg.Medium = ""

	// Eating allows chat, so the empty medium resolves to a normal reply.
	reply, err := f.responder.Respond(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
}
