// Package app wires the personad components together: agent directory, LLM
// provider, schedule engine, monitor loop, conversation layer, transports,
// and metrics.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/bus"
	"github.com/persona-dev/personad/internal/channels/telegram"
	"github.com/persona-dev/personad/internal/chat"
	"github.com/persona-dev/personad/internal/config"
	"github.com/persona-dev/personad/internal/cron"
	"github.com/persona-dev/personad/internal/llm"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/retry"
	"github.com/persona-dev/personad/internal/schedule"
	"github.com/persona-dev/personad/internal/store"
)

// App owns the component graph and its lifecycle.
type App struct {
	cfg    *config.Config
	logger *logger.Logger

	Directory *agent.Directory
	Provider  llm.Provider
	Bus       *bus.MessageBus
	Scheduler *schedule.Service
	Monitor   *schedule.Monitor
	Responder *chat.Responder
	DayPlans  *cron.DayPlanScheduler
	Telegram  *telegram.Connector

	valkey        *store.ValkeyStore
	metricsServer *http.Server
}

// New builds the component graph from configuration. Nothing is started.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	directory := agent.NewDirectory(cfg.Agents.Dir)
	if err := directory.Load(); err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    log,
		Directory: directory,
		Provider:  provider,
		Bus:       bus.New(cfg.MessageBus.Capacity, log),
	}

	var history schedule.HistoryStore
	switch cfg.Store.Backend {
	case "valkey":
		vs := store.NewValkeyStore(store.ValkeyConfig{
			Addr:     cfg.Store.Valkey.Addr,
			Password: cfg.Store.Valkey.Password,
			DB:       cfg.Store.Valkey.DB,
		})
		a.valkey = vs
		history = vs
	default:
		history = store.NewMemoryStore()
	}

	var metrics *schedule.Metrics
	if cfg.Metrics.Enabled {
		metrics = schedule.InitMetrics(cfg.Metrics.Namespace, nil)
	}

	generator := schedule.NewGenerator(provider, schedule.GeneratorConfig{
		IncrementMinutes: cfg.Schedule.IncrementMinutes,
		Temperature:      cfg.Schedule.Temperature,
		MaxTokens:        cfg.Schedule.MaxTokens,
		Retry: retry.Config{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
		},
	}, log)

	a.Scheduler = schedule.NewService(directory, history, generator, schedule.SystemClock{},
		schedule.ServiceConfig{RetentionHours: cfg.Schedule.RetentionHours}, log, metrics)

	a.Monitor = schedule.NewMonitor(a.Scheduler, generator, directory, schedule.SystemClock{},
		schedule.MonitorConfig{
			TickSeconds:      cfg.Schedule.TickSeconds,
			LookaheadMinutes: cfg.Schedule.LookaheadMinutes,
		}, log, metrics)

	a.Responder = chat.NewResponder(directory, a.Scheduler, provider, a.Bus, log)

	if cfg.Schedule.DailyRegeneration {
		a.DayPlans = cron.New(a.Scheduler, directory, log)
	}

	if cfg.Channels.Telegram.Enabled {
		a.Telegram = telegram.NewConnector(cfg.Channels.Telegram, a.Bus, log)
	}

	return a, nil
}

func buildProvider(cfg *config.Config, log *logger.Logger) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:            cfg.LLM.OpenAI.APIKey,
			BaseURL:           cfg.LLM.OpenAI.BaseURL,
			Model:             cfg.LLM.OpenAI.Model,
			TimeoutSeconds:    cfg.LLM.OpenAI.TimeoutSeconds,
			RequestsPerMinute: cfg.LLM.OpenAI.RequestsPerMinute,
		}, log), nil
	case "mock":
		return llm.NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// Start brings the components up in dependency order.
func (a *App) Start(ctx context.Context) error {
	if a.valkey != nil {
		if err := a.valkey.Ping(ctx); err != nil {
			return err
		}
	}

	if err := a.Bus.Start(ctx); err != nil {
		return err
	}

	if err := a.Scheduler.Initialize(ctx); err != nil {
		return err
	}

	if err := a.Monitor.Start(); err != nil {
		return err
	}

	if err := a.Responder.Start(ctx); err != nil {
		return err
	}

	if a.DayPlans != nil {
		if err := a.DayPlans.Start(); err != nil {
			return err
		}
	}

	if a.Telegram != nil {
		if err := a.Telegram.Start(ctx); err != nil {
			return err
		}
	}

	if a.cfg.Metrics.Enabled {
		a.startMetricsServer()
	}

	a.logger.Info("personad started",
		logger.Field{Key: "agents", Value: len(a.Directory.List())},
		logger.Field{Key: "llm_provider", Value: a.cfg.LLM.Provider},
		logger.Field{Key: "store", Value: a.cfg.Store.Backend})
	return nil
}

// Stop shuts the components down in reverse order. Shutdown records are
// archived so the next startup can account for the downtime.
func (a *App) Stop(ctx context.Context) {
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = a.metricsServer.Shutdown(shutdownCtx)
		cancel()
	}

	if a.Telegram != nil {
		_ = a.Telegram.Stop()
	}
	if a.DayPlans != nil {
		a.DayPlans.Stop()
	}
	a.Responder.Stop()
	_ = a.Monitor.Stop()

	a.Scheduler.Shutdown(ctx)

	_ = a.Bus.Stop()

	if a.valkey != nil {
		_ = a.valkey.Close()
	}

	a.logger.Info("personad stopped")
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{
		Addr:    a.cfg.Metrics.Listen,
		Handler: mux,
	}

	go func() {
		a.logger.Info("metrics server listening",
			logger.Field{Key: "addr", Value: a.cfg.Metrics.Listen})
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", err)
		}
	}()
}
