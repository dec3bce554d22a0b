package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/persona-dev/personad/internal/agent"
)

// Prompt builders are deterministic: same profile, same inputs, same
// prompt. All the variability lives in the model.

const daySystemPrompt = `You are a daily schedule planner for a persona. ` +
	`Respond with a single JSON object only, no prose, no markdown fences. ` +
	`The object has one key "schedule" holding an ordered array of items. ` +
	`Each item has keys: "start_time", "end_time" (local "HH:MM"), ` +
	`"activity" (short label), "status" (one of: available, sleeping, eating, ` +
	`working, out, maintenance, shutdown), "description", "location". ` +
	`Items must be contiguous: each item starts exactly when the previous one ends.`

const nextSystemPrompt = `You decide what a persona does next in its simulated day. ` +
	`Respond with a single JSON object only, no prose, no markdown fences, ` +
	`with keys: "start_time", "end_time" (local "HH:MM"), "activity", ` +
	`"status" (one of: available, sleeping, eating, working, out, maintenance, shutdown), ` +
	`"description", "location". ` +
	`The item must start exactly when the current activity ends and describe a ` +
	`natural transition from it.`

// BuildDayPrompt produces the user prompt for full-day generation covering
// the agent's active hours in fixed increments.
func BuildDayPrompt(profile *agent.Profile, day time.Time, incrementMinutes int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Persona: %s\n", profile.Name)
	fmt.Fprintf(&b, "Personality: %s\n", profile.Personality)
	fmt.Fprintf(&b, "Date: %s (%s)\n", day.Format("2006-01-02"), day.Format("Monday"))
	fmt.Fprintf(&b, "Active hours: %s to %s local time.\n",
		profile.Schedule.WakeTime, profile.Schedule.SleepTime)
	if len(profile.Schedule.MealTimes) > 0 {
		fmt.Fprintf(&b, "Meal windows start at: %s.\n",
			strings.Join(profile.Schedule.MealTimes, ", "))
	}
	fmt.Fprintf(&b, "Plan the day from %s to %s in %d-minute blocks. ",
		profile.Schedule.WakeTime, profile.Schedule.SleepTime, incrementMinutes)
	b.WriteString("Adjacent blocks with the same activity may be merged. ")
	b.WriteString("Do not include the sleeping hours; they are added separately.")

	return b.String()
}

// BuildNextPrompt produces the user prompt for incremental next-item
// generation from the current item and recent history.
func BuildNextPrompt(profile *agent.Profile, current Item, recent []HistoryEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Persona: %s\n", profile.Name)
	fmt.Fprintf(&b, "Personality: %s\n", profile.Personality)
	fmt.Fprintf(&b, "Active hours: %s to %s local time.\n",
		profile.Schedule.WakeTime, profile.Schedule.SleepTime)

	if len(recent) > 0 {
		b.WriteString("Recent activities:\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- %s to %s: %s (%s)\n",
				e.Item.StartTime.Format("15:04"),
				e.Item.EndTime.Format("15:04"),
				e.Item.Activity,
				e.Item.Status)
		}
	}

	fmt.Fprintf(&b, "Current activity: %s (%s), %s to %s",
		current.Activity, current.Status,
		current.StartTime.Format("15:04"),
		current.EndTime.Format("15:04"))
	if current.Location != "" {
		fmt.Fprintf(&b, " at %s", current.Location)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Produce the next activity starting at %s.",
		current.EndTime.Format("15:04"))

	return b.String()
}
