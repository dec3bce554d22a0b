package schedule

import (
	"fmt"
	"time"

	"github.com/persona-dev/personad/internal/agent"
)

// StatusContext is the bundle the conversation layer uses to choose its
// reply strategy: a normal reply when the agent is reachable, a
// status-explanation reply otherwise.
type StatusContext struct {
	AgentID     string    `json:"agent_id"`
	Channel     Channel   `json:"channel"`
	Available   bool      `json:"available"`
	CurrentTime time.Time `json:"current_time"`

	// Current is nil when nothing has been generated yet; Available is
	// false in that case.
	Current *Item `json:"current,omitempty"`

	// NextAvailable is the earliest known future item reachable on the
	// requested channel: the cached next item or day plan slot when one
	// qualifies, otherwise a block projected at the agent's next wake.
	NextAvailable *Item `json:"next_available,omitempty"`
}

// GetCurrentStatusContext composes the status context for one agent and
// channel. Fail-closed: no current item means unavailable.
func (s *Service) GetCurrentStatusContext(agentID string, channel Channel) (StatusContext, error) {
	profile, err := s.directory.Get(agentID)
	if err != nil {
		return StatusContext{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	now, err := s.localNow(profile)
	if err != nil {
		return StatusContext{}, err
	}

	sc := StatusContext{
		AgentID:     agentID,
		Channel:     channel,
		CurrentTime: now,
	}

	current, ok := s.cache.Current(agentID)
	if !ok {
		return sc, nil
	}
	sc.Current = &current
	sc.Available = AvailabilityFor(current.Status).On(channel)

	if next, found := s.nextAvailableItem(profile, now, current, channel); found {
		sc.NextAvailable = &next
	}
	return sc, nil
}

// nextAvailableItem scans the cached future items (the pre-generated next
// item, then the remainder of the day plan) for the earliest one reachable
// on the channel. When nothing cached qualifies it falls back to a block
// projected at the agent's next wake, when every channel is open.
func (s *Service) nextAvailableItem(profile *agent.Profile, now time.Time, current Item, channel Channel) (Item, bool) {
	if next, ok := s.cache.Next(profile.ID); ok {
		if AvailabilityFor(next.Status).On(channel) {
			return next, true
		}
	}

	if day, ok := s.cache.Day(profile.ID); ok {
		var best Item
		var found bool
		for _, it := range day.Items {
			if it.StartTime.Before(current.EndTime) {
				continue
			}
			if !AvailabilityFor(it.Status).On(channel) {
				continue
			}
			if !found || it.StartTime.Before(best.StartTime) {
				best = it
				found = true
			}
		}
		if found {
			return best, true
		}
	}

	return s.projectedWakeItem(profile, now, current)
}

// projectedWakeItem synthesizes the availability block at the agent's next
// wake time. The projection never starts before the current item ends.
func (s *Service) projectedWakeItem(profile *agent.Profile, now time.Time, current Item) (Item, bool) {
	wh, wm, err := ParseClockTime(profile.Schedule.WakeTime)
	if err != nil {
		return Item{}, false
	}

	wakeAt := NextWake(now, wh, wm)
	if wakeAt.Before(current.EndTime) {
		wakeAt = current.EndTime
	}

	return Item{
		StartTime:   wakeAt,
		EndTime:     wakeAt.Add(time.Hour),
		Activity:    "Starting the day",
		Status:      StatusAvailable,
		Description: "Projected from wake time",
	}, true
}
