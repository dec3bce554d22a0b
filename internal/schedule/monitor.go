package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/logger"
)

const (
	// DefaultTickSeconds is the monitor loop interval.
	DefaultTickSeconds = 60

	// DefaultLookaheadMinutes is the margin before an item's expiry during
	// which the next item is pre-generated.
	DefaultLookaheadMinutes = 30
)

// MonitorConfig tunes the monitor loop.
type MonitorConfig struct {
	TickSeconds      int
	LookaheadMinutes int
}

// Monitor is the background control loop driving schedule progression:
// every tick it rotates expired items into history, promotes pre-generated
// next items, and triggers lookahead generation. The loop never terminates
// except on explicit cancellation; every failure inside a tick is caught,
// logged, and retried on the next tick.
type Monitor struct {
	service   *Service
	generator *Generator
	directory *agent.Directory
	clock     Clock
	logger    *logger.Logger
	metrics   *Metrics

	tick      time.Duration
	lookahead time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	mu      sync.Mutex

	// pending marks agents with an in-flight lookahead generation so a slow
	// LLM call spanning several ticks triggers exactly one generation.
	pendingMu sync.Mutex
	pending   map[string]bool
}

// NewMonitor creates a schedule monitor loop.
func NewMonitor(service *Service, generator *Generator, directory *agent.Directory, clock Clock, cfg MonitorConfig, log *logger.Logger, metrics *Metrics) *Monitor {
	tick := time.Duration(cfg.TickSeconds) * time.Second
	if tick <= 0 {
		tick = DefaultTickSeconds * time.Second
	}
	lookahead := time.Duration(cfg.LookaheadMinutes) * time.Minute
	if lookahead <= 0 {
		lookahead = DefaultLookaheadMinutes * time.Minute
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Monitor{
		service:   service,
		generator: generator,
		directory: directory,
		clock:     clock,
		logger:    log,
		metrics:   metrics,
		tick:      tick,
		lookahead: lookahead,
		pending:   make(map[string]bool),
	}
}

// Start begins the monitor loop. Starting an already-started monitor is a
// no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})
	m.started = true

	m.logger.Info("Schedule monitor started",
		logger.Field{Key: "tick", Value: m.tick},
		logger.Field{Key: "lookahead", Value: m.lookahead})

	go m.run()
	return nil
}

// Stop cancels the loop and waits for the in-progress tick to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Info("Schedule monitor stopping")
	m.cancel()
	<-m.done
	m.started = false
	return nil
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Schedule monitor stopped")
			return
		case <-ticker.C:
			m.Tick(m.ctx)
		}
	}
}

// Tick runs one monitor pass over every configured agent. Exported so the
// serve path can run a pass immediately after startup and tests can drive
// the loop directly.
func (m *Monitor) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.RecordTickError()
			m.logger.Error("Schedule tick panicked", nil,
				logger.Field{Key: "panic", Value: r})
		}
	}()

	select {
	case <-ctx.Done():
		return
	default:
	}

	tracked := 0
	for _, profile := range m.directory.List() {
		if m.tickAgent(ctx, profile) {
			tracked++
		}
	}
	m.metrics.SetAgentsTracked(tracked)
}

// tickAgent advances one agent's schedule. Reports whether the agent holds
// a current item after the pass.
func (m *Monitor) tickAgent(ctx context.Context, profile *agent.Profile) bool {
	loc, err := LoadLocation(profile.Schedule.Timezone)
	if err != nil {
		m.metrics.RecordTickError()
		m.logger.Error("Invalid agent timezone", err,
			logger.Field{Key: "agent_id", Value: profile.ID})
		return false
	}
	now := LocalNow(m.clock, loc)

	cache := m.service.Cache()
	current, ok := cache.Current(profile.ID)
	if !ok {
		// Regeneration gap: keep retrying until an item lands. The agent
		// reads as unavailable on every channel meanwhile.
		m.regenerate(profile, now)
		return false
	}

	if current.Expired(now) {
		m.rotate(ctx, profile.ID, now)
		current, ok = cache.Current(profile.ID)
		if !ok {
			m.regenerate(profile, now)
			return false
		}
	}

	if current.Remaining(now) <= m.lookahead {
		if _, cached := cache.Next(profile.ID); !cached {
			m.generateNext(profile, current)
		}
	}
	return true
}

// rotate archives the expired current item and promotes the cached next
// item when one exists.
func (m *Monitor) rotate(ctx context.Context, agentID string, now time.Time) {
	cache := m.service.Cache()
	expired, hadCurrent, next, promoted := cache.Promote(agentID)
	if !hadCurrent {
		return
	}

	m.service.archive(ctx, agentID, expired, expired.StartTime, expired.EndTime, CompletionCompleted, "")
	m.metrics.RecordRotation()

	if promoted {
		m.logger.InfoCtx(ctx, "Schedule rotated",
			logger.Field{Key: "agent_id", Value: agentID},
			logger.Field{Key: "completed", Value: expired.Activity},
			logger.Field{Key: "current", Value: next.Activity},
			logger.Field{Key: "status", Value: string(next.Status)})
	} else {
		m.logger.WarnCtx(ctx, "Schedule expired with no next item",
			logger.Field{Key: "agent_id", Value: agentID},
			logger.Field{Key: "completed", Value: expired.Activity},
			logger.Field{Key: "local_time", Value: now.Format(time.RFC3339)})
	}
}

// generateNext fills the agent's next-item slot, first from the cached day
// plan, then by incremental LLM generation. The LLM path runs in its own
// goroutine so a slow call never blocks the tick.
func (m *Monitor) generateNext(profile *agent.Profile, current Item) {
	cache := m.service.Cache()

	if day, ok := cache.Day(profile.ID); ok {
		if next, found := day.ItemAfter(current); found {
			cache.SetNext(profile.ID, next)
			m.logger.Debug("Next item taken from day plan",
				logger.Field{Key: "agent_id", Value: profile.ID},
				logger.Field{Key: "activity", Value: next.Activity})
			return
		}
	}

	if !m.markPending(profile.ID) {
		return
	}

	go func() {
		defer m.clearPending(profile.ID)

		ctx, cancel := context.WithTimeout(m.loopContext(), m.tick*2)
		defer cancel()

		history, err := m.service.history.List(ctx, profile.ID)
		if err != nil {
			history = nil
		}

		started := time.Now()
		next, err := m.generator.GenerateNext(ctx, profile, current, history)
		if err != nil {
			m.metrics.RecordGeneration("next", "error", time.Since(started))
			m.logger.Error("Lookahead generation failed", err,
				logger.Field{Key: "agent_id", Value: profile.ID})
			return
		}
		m.metrics.RecordGeneration("next", "ok", time.Since(started))

		cache.SetNext(profile.ID, next)
		m.logger.Info("Next item generated",
			logger.Field{Key: "agent_id", Value: profile.ID},
			logger.Field{Key: "activity", Value: next.Activity},
			logger.Field{Key: "status", Value: string(next.Status)},
			logger.Field{Key: "start", Value: next.StartTime})
	}()
}

// regenerate refills an empty current slot, synthesizing a sleep block
// outside active hours and falling back to LLM generation otherwise.
func (m *Monitor) regenerate(profile *agent.Profile, now time.Time) {
	if !m.markPending(profile.ID) {
		return
	}

	go func() {
		defer m.clearPending(profile.ID)

		ctx, cancel := context.WithTimeout(m.loopContext(), m.tick*2)
		defer cancel()

		started := time.Now()
		item, err := m.generator.InitialItem(ctx, profile, now)
		if err != nil {
			m.metrics.RecordGeneration("initial", "error", time.Since(started))
			m.logger.Error("Schedule regeneration failed", err,
				logger.Field{Key: "agent_id", Value: profile.ID})
			return
		}
		m.metrics.RecordGeneration("initial", "ok", time.Since(started))

		m.service.Cache().SetCurrent(profile.ID, item)
		m.logger.Info("Schedule regenerated",
			logger.Field{Key: "agent_id", Value: profile.ID},
			logger.Field{Key: "activity", Value: item.Activity},
			logger.Field{Key: "status", Value: string(item.Status)})
	}()
}

// loopContext returns the loop's cancellation context, or a background
// context when the monitor is driven manually via Tick.
func (m *Monitor) loopContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

func (m *Monitor) markPending(agentID string) bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pending[agentID] {
		return false
	}
	m.pending[agentID] = true
	return true
}

func (m *Monitor) clearPending(agentID string) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	delete(m.pending, agentID)
}
