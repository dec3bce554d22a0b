package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/logger"
)

// ServiceConfig tunes the schedule service.
type ServiceConfig struct {
	RetentionHours int
}

// Service is the schedule engine facade consumed by the conversation layer
// and the API surface. It owns the cache, delegates content generation to
// the Generator, and archives completed items into the history store.
type Service struct {
	directory *agent.Directory
	cache     *Cache
	history   HistoryStore
	generator *Generator
	clock     Clock
	logger    *logger.Logger
	metrics   *Metrics
	retention time.Duration
}

// NewService creates a schedule service.
func NewService(
	directory *agent.Directory,
	history HistoryStore,
	generator *Generator,
	clock Clock,
	cfg ServiceConfig,
	log *logger.Logger,
	metrics *Metrics,
) *Service {
	retention := time.Duration(cfg.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = DefaultRetentionHours * time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Service{
		directory: directory,
		cache:     NewCache(),
		history:   history,
		generator: generator,
		clock:     clock,
		logger:    log,
		metrics:   metrics,
		retention: retention,
	}
}

// Cache exposes the schedule cache to the monitor loop.
func (s *Service) Cache() *Cache { return s.cache }

// Retention returns the configured history retention window.
func (s *Service) Retention() time.Duration { return s.retention }

// localNow resolves the agent's local wall-clock time.
func (s *Service) localNow(profile *agent.Profile) (time.Time, error) {
	loc, err := LoadLocation(profile.Schedule.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return LocalNow(s.clock, loc), nil
}

// GetCurrentSchedule returns the agent's current item. ErrNoSchedule means
// nothing has been generated yet; callers poll rather than block.
func (s *Service) GetCurrentSchedule(agentID string) (Item, error) {
	if _, err := s.directory.Get(agentID); err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	item, ok := s.cache.Current(agentID)
	if !ok {
		return Item{}, ErrNoSchedule
	}
	return item, nil
}

// UpdateCurrentSchedule replaces the agent's current item with an explicit
// override. The replaced item, if any, is archived as modified.
func (s *Service) UpdateCurrentSchedule(ctx context.Context, agentID string, item Item) error {
	profile, err := s.directory.Get(agentID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if err := item.Validate(); err != nil {
		return err
	}

	now, err := s.localNow(profile)
	if err != nil {
		return err
	}

	if previous, ok := s.cache.Current(agentID); ok {
		s.archive(ctx, agentID, previous, previous.StartTime, now, CompletionModified, "replaced by explicit override")
	}
	s.cache.SetCurrent(agentID, item)

	s.logger.InfoCtx(ctx, "Current schedule overridden",
		logger.Field{Key: "agent_id", Value: agentID},
		logger.Field{Key: "activity", Value: item.Activity},
		logger.Field{Key: "status", Value: string(item.Status)})
	return nil
}

// GetCurrentAvailability reports reachability on one channel. An agent with
// no current item is unavailable on every channel.
func (s *Service) GetCurrentAvailability(agentID string, channel Channel) (bool, error) {
	if _, err := s.directory.Get(agentID); err != nil {
		return false, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	item, ok := s.cache.Current(agentID)
	if !ok {
		return false, nil
	}
	return AvailabilityFor(item.Status).On(channel), nil
}

// GetAgentScheduleHistory returns the agent's retained history entries.
func (s *Service) GetAgentScheduleHistory(ctx context.Context, agentID string) ([]HistoryEntry, error) {
	if _, err := s.directory.Get(agentID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return s.history.List(ctx, agentID)
}

// ForceAvailable applies the force-generate override: the agent's current
// item becomes a temporary available "Talking" block with the same end time
// as the item it replaces, so later messages in the same window proceed as
// if available. The replaced item is archived as interrupted.
func (s *Service) ForceAvailable(ctx context.Context, agentID string) (Item, error) {
	profile, err := s.directory.Get(agentID)
	if err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	now, err := s.localNow(profile)
	if err != nil {
		return Item{}, err
	}

	current, ok := s.cache.Current(agentID)
	if !ok {
		return Item{}, ErrNoSchedule
	}

	override := Item{
		StartTime:   now,
		EndTime:     current.EndTime,
		Activity:    "Talking",
		Status:      StatusAvailable,
		Description: "Conversation requested during " + current.Activity,
		Location:    current.Location,
	}

	s.archive(ctx, agentID, current, current.StartTime, now, CompletionInterrupted, "interrupted by conversation")
	s.cache.SetCurrent(agentID, override)
	s.metrics.RecordOverride()

	s.logger.InfoCtx(ctx, "Force-available override applied",
		logger.Field{Key: "agent_id", Value: agentID},
		logger.Field{Key: "interrupted", Value: current.Activity},
		logger.Field{Key: "until", Value: override.EndTime})
	return override, nil
}

// RegenerateDayPlan generates a fresh full-day plan for the agent's current
// local day and installs the item covering now as current. Synchronous
// callers (the regenerate API, the daily cron job) get transient errors
// surfaced rather than swallowed.
func (s *Service) RegenerateDayPlan(ctx context.Context, agentID string) (DaySchedule, error) {
	profile, err := s.directory.Get(agentID)
	if err != nil {
		return DaySchedule{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	now, err := s.localNow(profile)
	if err != nil {
		return DaySchedule{}, err
	}

	started := time.Now()
	day, err := s.generator.GenerateDay(ctx, profile, now)
	if err != nil {
		s.metrics.RecordGeneration("day", "error", time.Since(started))
		return DaySchedule{}, err
	}
	s.metrics.RecordGeneration("day", "ok", time.Since(started))

	s.cache.SetDay(agentID, day)
	s.cache.ClearNext(agentID)
	if item, ok := day.ItemAt(now); ok {
		s.cache.SetCurrent(agentID, item)
	}

	s.logger.InfoCtx(ctx, "Day plan regenerated",
		logger.Field{Key: "agent_id", Value: agentID},
		logger.Field{Key: "items", Value: len(day.Items)})
	return day, nil
}

// Initialize seeds every configured agent with a current item. An open
// shutdown record from a previous run is closed with the resume time before
// fresh generation. Per-agent failures are logged and skipped; the monitor
// loop retries at tick cadence.
func (s *Service) Initialize(ctx context.Context) error {
	for _, profile := range s.directory.List() {
		if err := s.initializeAgent(ctx, profile); err != nil {
			s.logger.ErrorCtx(ctx, "Agent schedule initialization failed", err,
				logger.Field{Key: "agent_id", Value: profile.ID})
		}
	}
	return nil
}

func (s *Service) initializeAgent(ctx context.Context, profile *agent.Profile) error {
	now, err := s.localNow(profile)
	if err != nil {
		return err
	}

	entries, err := s.history.List(ctx, profile.ID)
	if err != nil {
		s.logger.WarnCtx(ctx, "History read failed during startup",
			logger.Field{Key: "agent_id", Value: profile.ID},
			logger.Field{Key: "error", Value: err})
	} else if open, ok := OpenShutdownEntry(entries); ok && open.ActualEnd.Equal(open.ActualStart) {
		open.ActualEnd = now.UTC()
		open.Notes = fmt.Sprintf("downtime %s", now.UTC().Sub(open.ActualStart).Round(time.Second))
		if err := s.history.Add(ctx, profile.ID, open, s.retention, s.clock.Now()); err != nil {
			s.logger.WarnCtx(ctx, "Failed to close shutdown record",
				logger.Field{Key: "agent_id", Value: profile.ID},
				logger.Field{Key: "error", Value: err})
		}
	}

	started := time.Now()
	item, err := s.generator.InitialItem(ctx, profile, now)
	if err != nil {
		s.metrics.RecordGeneration("initial", "error", time.Since(started))
		return err
	}
	s.metrics.RecordGeneration("initial", "ok", time.Since(started))

	s.cache.SetCurrent(profile.ID, item)
	s.logger.InfoCtx(ctx, "Agent schedule initialized",
		logger.Field{Key: "agent_id", Value: profile.ID},
		logger.Field{Key: "activity", Value: item.Activity},
		logger.Field{Key: "status", Value: string(item.Status)},
		logger.Field{Key: "until", Value: item.EndTime})
	return nil
}

// Shutdown archives a shutdown record per agent closing the open interval,
// so the next startup can compute elapsed downtime. The record's ActualEnd
// equals ActualStart until startup closes it.
func (s *Service) Shutdown(ctx context.Context) {
	for _, profile := range s.directory.List() {
		now, err := s.localNow(profile)
		if err != nil {
			now = s.clock.Now()
		}

		current, ok := s.cache.Current(profile.ID)
		if !ok {
			continue
		}

		entry := HistoryEntry{
			Item: Item{
				StartTime:   now,
				EndTime:     current.EndTime,
				Activity:    "Shutdown",
				Status:      StatusShutdown,
				Description: "Process stopped during " + current.Activity,
			},
			ActualStart:      now.UTC(),
			ActualEnd:        now.UTC(),
			CompletionStatus: CompletionShutdown,
		}
		if err := s.history.Add(ctx, profile.ID, entry, s.retention, s.clock.Now()); err != nil {
			s.logger.ErrorCtx(ctx, "Failed to archive shutdown record", err,
				logger.Field{Key: "agent_id", Value: profile.ID})
		}
		s.cache.ClearCurrent(profile.ID)
	}
	s.logger.InfoCtx(ctx, "Schedule service shut down")
}

// archive writes one history entry, logging store failures without
// propagating them. History loss never aborts schedule progress.
func (s *Service) archive(ctx context.Context, agentID string, item Item, actualStart, actualEnd time.Time, status CompletionStatus, notes string) {
	entry := HistoryEntry{
		Item:             item,
		ActualStart:      actualStart.UTC(),
		ActualEnd:        actualEnd.UTC(),
		CompletionStatus: status,
		Notes:            notes,
	}
	if err := s.history.Add(ctx, agentID, entry, s.retention, s.clock.Now()); err != nil {
		s.logger.ErrorCtx(ctx, "Failed to archive schedule item", err,
			logger.Field{Key: "agent_id", Value: agentID},
			logger.Field{Key: "activity", Value: item.Activity})
		return
	}
	if entries, err := s.history.List(ctx, agentID); err == nil {
		s.metrics.SetHistoryEntries(agentID, len(entries))
	}
}
