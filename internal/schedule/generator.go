package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/llm"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/retry"
)

const (
	// DefaultIncrementMinutes is the day-plan block size.
	DefaultIncrementMinutes = 30

	// recentHistoryCount is how many archived items the incremental prompt
	// carries as context.
	recentHistoryCount = 5

	generationTemperature = 0.7
	generationMaxTokens   = 2048
)

// GeneratorConfig tunes the generator's LLM usage.
type GeneratorConfig struct {
	IncrementMinutes int
	Temperature      float64
	MaxTokens        int
	Retry            retry.Config
}

// Generator builds prompts, calls the LLM, and turns responses into
// validated schedule items. Every failure is soft: callers get an error,
// keep the previous state, and try again on the next tick.
type Generator struct {
	provider llm.Provider
	config   GeneratorConfig
	logger   *logger.Logger
}

// NewGenerator creates a schedule generator.
func NewGenerator(provider llm.Provider, cfg GeneratorConfig, log *logger.Logger) *Generator {
	if cfg.IncrementMinutes <= 0 {
		cfg.IncrementMinutes = DefaultIncrementMinutes
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = generationTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = generationMaxTokens
	}
	cfg.Retry.Logger = log

	return &Generator{
		provider: provider,
		config:   cfg,
		logger:   log,
	}
}

// complete runs one LLM call under the bounded retry policy.
func (g *Generator) complete(ctx context.Context, system, user string, model string) (string, error) {
	format := llm.ResponseFormatText
	if g.provider.SupportsJSONMode() {
		format = llm.ResponseFormatJSON
	}

	return retry.Do(ctx, func() (string, error) {
		resp, err := g.provider.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: user},
			},
			Model:       model,
			Temperature: g.config.Temperature,
			MaxTokens:   g.config.MaxTokens,
			Format:      format,
		})
		if err != nil {
			return "", err
		}
		if resp.FinishReason == llm.FinishReasonError {
			return "", fmt.Errorf("llm returned no choices")
		}
		return resp.Content, nil
	}, g.config.Retry)
}

// GenerateDay produces a full-day plan for the agent's local day containing
// refDay: active hours planned by the LLM, bracketed with synthetic
// sleeping blocks covering midnight to wake and sleep to next midnight.
func (g *Generator) GenerateDay(ctx context.Context, profile *agent.Profile, refDay time.Time) (DaySchedule, error) {
	wake, sleep, err := activeWindow(profile, refDay)
	if err != nil {
		return DaySchedule{}, err
	}

	g.logger.DebugCtx(ctx, "Generating day plan",
		logger.Field{Key: "agent_id", Value: profile.ID},
		logger.Field{Key: "date", Value: refDay.Format("2006-01-02")})

	prompt := BuildDayPrompt(profile, refDay, g.config.IncrementMinutes)
	raw, err := g.complete(ctx, daySystemPrompt, prompt, profile.Model)
	if err != nil {
		return DaySchedule{}, fmt.Errorf("day plan generation failed for %s: %w", profile.ID, err)
	}

	items, err := ParseDay(raw, refDay)
	if err != nil {
		return DaySchedule{}, fmt.Errorf("day plan parse failed for %s: %w", profile.ID, err)
	}

	items = clampToWindow(items, wake, sleep)
	if len(items) == 0 {
		return DaySchedule{}, &ValidationError{Reason: "day plan covers none of the active hours"}
	}

	day := DaySchedule{
		AgentID:     profile.ID,
		Date:        AtClock(refDay, 0, 0),
		Items:       bracketWithSleep(items, refDay, wake, sleep),
		GeneratedAt: time.Now(),
	}
	if err := day.Validate(); err != nil {
		return DaySchedule{}, fmt.Errorf("day plan invalid for %s: %w", profile.ID, err)
	}
	return day, nil
}

// GenerateNext produces the item following current. When the successor
// would begin outside the agent's active hours, a sleeping block running
// to the next wake time is synthesized without an LLM call.
func (g *Generator) GenerateNext(ctx context.Context, profile *agent.Profile, current Item, history []HistoryEntry) (Item, error) {
	wake, sleep, err := activeWindow(profile, current.EndTime)
	if err != nil {
		return Item{}, err
	}

	if current.EndTime.Before(wake) || !current.EndTime.Before(sleep) {
		return g.SleepItem(profile, current.EndTime)
	}

	g.logger.DebugCtx(ctx, "Generating next schedule item",
		logger.Field{Key: "agent_id", Value: profile.ID},
		logger.Field{Key: "after", Value: current.Activity})

	prompt := BuildNextPrompt(profile, current, RecentEntries(history, recentHistoryCount))
	raw, err := g.complete(ctx, nextSystemPrompt, prompt, profile.Model)
	if err != nil {
		return Item{}, fmt.Errorf("next item generation failed for %s: %w", profile.ID, err)
	}

	item, err := ParseItem(raw, current.EndTime)
	if err != nil {
		return Item{}, fmt.Errorf("next item parse failed for %s: %w", profile.ID, err)
	}

	// The model is asked for contiguity but not trusted with it.
	item.StartTime = current.EndTime
	if !item.EndTime.After(item.StartTime) {
		return Item{}, &ValidationError{Reason: "generated item ends before the current one"}
	}
	if item.EndTime.After(sleep) && item.Status != StatusSleeping {
		item.EndTime = sleep
	}
	return item, nil
}

// SleepItem synthesizes a sleeping block starting at start and ending at
// the agent's next wake time.
func (g *Generator) SleepItem(profile *agent.Profile, start time.Time) (Item, error) {
	wh, wm, err := ParseClockTime(profile.Schedule.WakeTime)
	if err != nil {
		return Item{}, err
	}
	end := NextWake(start, wh, wm)

	return Item{
		StartTime:   start,
		EndTime:     end,
		Activity:    "Sleeping",
		Status:      StatusSleeping,
		Description: "Outside active hours",
	}, nil
}

// InitialItem resolves the item an agent should start with. Inside active
// hours it asks the LLM for a current activity; outside them it synthesizes
// a sleep block running to the next wake.
func (g *Generator) InitialItem(ctx context.Context, profile *agent.Profile, now time.Time) (Item, error) {
	wake, sleep, err := activeWindow(profile, now)
	if err != nil {
		return Item{}, err
	}
	if now.Before(wake) || !now.Before(sleep) {
		return g.SleepItem(profile, now)
	}

	// Seed incremental generation with a zero-length anchor ending now.
	anchor := Item{
		StartTime: now.Add(-time.Minute),
		EndTime:   now,
		Activity:  "Starting the day",
		Status:    StatusAvailable,
	}
	return g.GenerateNext(ctx, profile, anchor, nil)
}

// activeWindow resolves the agent's wake and sleep instants for the local
// day containing ref. A sleep clock at or before the wake clock is
// interpreted as the following day.
func activeWindow(profile *agent.Profile, ref time.Time) (wake, sleep time.Time, err error) {
	wh, wm, err := ParseClockTime(profile.Schedule.WakeTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	sh, sm, err := ParseClockTime(profile.Schedule.SleepTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	wake = AtClock(ref, wh, wm)
	sleep = AtClock(ref, sh, sm)
	if !sleep.After(wake) {
		sleep = sleep.AddDate(0, 0, 1)
	}
	return wake, sleep, nil
}

// clampToWindow drops items entirely outside [wake, sleep) and trims the
// boundary items so the plan exactly fills the active window.
func clampToWindow(items []Item, wake, sleep time.Time) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.EndTime.After(wake) || !it.StartTime.Before(sleep) {
			continue
		}
		if it.StartTime.Before(wake) {
			it.StartTime = wake
		}
		if it.EndTime.After(sleep) {
			it.EndTime = sleep
		}
		out = append(out, it)
	}
	return out
}

// bracketWithSleep wraps the active-hours items with the two synthetic
// sleeping blocks covering midnight to wake and sleep to next midnight.
func bracketWithSleep(items []Item, refDay time.Time, wake, sleep time.Time) []Item {
	midnight := AtClock(refDay, 0, 0)
	nextMidnight := MidnightAfter(refDay)

	out := make([]Item, 0, len(items)+2)
	if wake.After(midnight) {
		out = append(out, Item{
			StartTime:   midnight,
			EndTime:     wake,
			Activity:    "Sleeping",
			Status:      StatusSleeping,
			Description: "Outside active hours",
		})
	}
	out = append(out, items...)
	if sleep.Before(nextMidnight) {
		out = append(out, Item{
			StartTime:   sleep,
			EndTime:     nextMidnight,
			Activity:    "Sleeping",
			Status:      StatusSleeping,
			Description: "Outside active hours",
		})
	}
	return out
}
