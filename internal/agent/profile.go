// Package agent loads and serves persona profiles. Each agent is a YAML
// file describing who the persona is and how its simulated day is shaped.
package agent

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ScheduleConfig is the per-agent static schedule configuration.
type ScheduleConfig struct {
	// Timezone is the agent's IANA zone name, e.g. "Asia/Tokyo".
	Timezone string `yaml:"timezone"`

	// WakeTime and SleepTime are local "HH:MM" wall-clock strings bounding
	// the agent's active hours.
	WakeTime  string `yaml:"wake_time"`
	SleepTime string `yaml:"sleep_time"`

	// MealTimes optionally pins meal windows the day-plan generator should
	// respect, local "HH:MM" start times.
	MealTimes []string `yaml:"meal_times,omitempty"`
}

// Profile is one configured persona.
type Profile struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Personality string         `yaml:"personality"`
	Language    string         `yaml:"language,omitempty"`
	Model       string         `yaml:"model,omitempty"`
	Schedule    ScheduleConfig `yaml:"schedule"`
}

// Validate checks the profile for the fields the schedule engine depends on.
func (p *Profile) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, fmt.Errorf("agent id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, fmt.Errorf("agent %q: name is required", p.ID))
	}
	if strings.TrimSpace(p.Personality) == "" {
		errs = append(errs, fmt.Errorf("agent %q: personality is required", p.ID))
	}

	if p.Language != "" {
		if _, err := language.Parse(p.Language); err != nil {
			errs = append(errs, fmt.Errorf("agent %q: invalid language tag %q: %w", p.ID, p.Language, err))
		}
	}

	if err := validateClock(p.Schedule.WakeTime); err != nil {
		errs = append(errs, fmt.Errorf("agent %q: wake_time: %w", p.ID, err))
	}
	if err := validateClock(p.Schedule.SleepTime); err != nil {
		errs = append(errs, fmt.Errorf("agent %q: sleep_time: %w", p.ID, err))
	}
	for _, mt := range p.Schedule.MealTimes {
		if err := validateClock(mt); err != nil {
			errs = append(errs, fmt.Errorf("agent %q: meal_times: %w", p.ID, err))
		}
	}

	return errs
}

func validateClock(s string) error {
	if s == "" {
		return fmt.Errorf("required, local HH:MM")
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("clock time %q out of range", s)
	}
	return nil
}

// applyDefaults fills in profile fields that may be omitted in YAML.
func (p *Profile) applyDefaults() {
	if p.Schedule.Timezone == "" {
		p.Schedule.Timezone = "UTC"
	}
	if p.Schedule.WakeTime == "" {
		p.Schedule.WakeTime = "08:00"
	}
	if p.Schedule.SleepTime == "" {
		p.Schedule.SleepTime = "23:00"
	}
	if p.Language == "" {
		p.Language = "en"
	}
}
