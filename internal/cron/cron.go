// Package cron schedules the daily full-day plan regeneration: each agent
// gets a fresh day plan at its local wake time.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/schedule"
)

const regenerateTimeout = 5 * time.Minute

// DayPlanScheduler runs one cron entry per agent, firing at the agent's
// wake time in the agent's own timezone.
type DayPlanScheduler struct {
	cron      *cron.Cron
	scheduler *schedule.Service
	directory *agent.Directory
	logger    *logger.Logger
}

// New creates a day-plan scheduler.
func New(scheduler *schedule.Service, directory *agent.Directory, log *logger.Logger) *DayPlanScheduler {
	return &DayPlanScheduler{
		cron:      cron.New(),
		scheduler: scheduler,
		directory: directory,
		logger:    log,
	}
}

// Start registers every agent's wake-time entry and starts the cron runner.
func (s *DayPlanScheduler) Start() error {
	for _, profile := range s.directory.List() {
		spec, err := wakeSpec(profile)
		if err != nil {
			return err
		}

		agentID := profile.ID
		if _, err := s.cron.AddFunc(spec, func() { s.regenerate(agentID) }); err != nil {
			return fmt.Errorf("failed to schedule day plan for %s: %w", agentID, err)
		}

		s.logger.Info("Day plan regeneration scheduled",
			logger.Field{Key: "agent_id", Value: agentID},
			logger.Field{Key: "spec", Value: spec})
	}

	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *DayPlanScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Day plan scheduler stopped")
}

func (s *DayPlanScheduler) regenerate(agentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), regenerateTimeout)
	defer cancel()

	if _, err := s.scheduler.RegenerateDayPlan(ctx, agentID); err != nil {
		s.logger.Error("Scheduled day plan regeneration failed", err,
			logger.Field{Key: "agent_id", Value: agentID})
	}
}

// wakeSpec builds the cron spec firing at the agent's wake time in its own
// timezone, e.g. "CRON_TZ=Asia/Tokyo 0 8 * * *".
func wakeSpec(profile *agent.Profile) (string, error) {
	hour, minute, err := schedule.ParseClockTime(profile.Schedule.WakeTime)
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", profile.ID, err)
	}

	tz := profile.Schedule.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour), nil
}
