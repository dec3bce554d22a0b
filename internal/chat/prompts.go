package chat

import (
	"fmt"
	"strings"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/schedule"
)

// BuildPersonaPrompt produces the system prompt for a normal reply.
func BuildPersonaPrompt(profile *agent.Profile, sc schedule.StatusContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n", profile.Name, profile.Personality)
	fmt.Fprintf(&b, "Local time: %s.\n", sc.CurrentTime.Format("Monday 15:04"))
	if sc.Current != nil {
		fmt.Fprintf(&b, "You are currently: %s", sc.Current.Activity)
		if sc.Current.Location != "" {
			fmt.Fprintf(&b, " at %s", sc.Current.Location)
		}
		b.WriteString(".\n")
	}
	b.WriteString("Reply in the language the user writes in.")

	return b.String()
}

// BuildStatusPrompt produces the system prompt for a busy reply: the agent
// explains, in character, why it cannot talk right now and when it will be
// reachable again.
func BuildStatusPrompt(profile *agent.Profile, sc schedule.StatusContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n", profile.Name, profile.Personality)
	fmt.Fprintf(&b, "Local time: %s.\n", sc.CurrentTime.Format("Monday 15:04"))

	if sc.Current != nil {
		fmt.Fprintf(&b, "You are currently %s: %s", sc.Current.Status, sc.Current.Activity)
		if sc.Current.Location != "" {
			fmt.Fprintf(&b, " at %s", sc.Current.Location)
		}
		if sc.Current.Description != "" {
			fmt.Fprintf(&b, " (%s)", sc.Current.Description)
		}
		b.WriteString(".\n")
	} else {
		b.WriteString("Your schedule is not available right now.\n")
	}

	if sc.NextAvailable != nil {
		fmt.Fprintf(&b, "You will be reachable again around %s.\n",
			sc.NextAvailable.StartTime.Format("15:04"))
	}

	b.WriteString("You cannot hold a conversation right now. ")
	b.WriteString("Write one short in-character message explaining why, ")
	b.WriteString("mentioning when you will be back if known. ")
	b.WriteString("Reply in the language the user writes in.")

	return b.String()
}
