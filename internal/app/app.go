// Package app assembles the configured stores and adapters into a runnable
// pipeline and drives it either for a single invocation or on a schedule.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ContentForge/internal/artifact"
	"ContentForge/internal/config"
	"ContentForge/internal/infrastructure/feeds"
	"ContentForge/internal/infrastructure/llm"
	"ContentForge/internal/infrastructure/scheduler"
	"ContentForge/internal/infrastructure/telegram"
	"ContentForge/internal/logging"
	"ContentForge/internal/pipeline"
	"ContentForge/internal/ports"
	"ContentForge/internal/state"
	"ContentForge/internal/trend"
)

// Application wires config to the pipeline and owns component lifecycles.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	trend    *trend.Store
	driver   ports.Scheduler
}

// New builds the application. The analytics sidecar is optional: when its
// database cannot be opened the pipeline still runs without it.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	stateStore := state.NewStore(cfg.Paths.StateFile(), state.Options{
		CooldownDays:  cfg.Pipeline.CooldownDays,
		RetentionDays: cfg.Pipeline.RetentionDays,
		MaxURLs:       cfg.Pipeline.MaxURLs,
		FlagCapacity:  cfg.Pipeline.FlagCapacity,
		MaxFreePerDay: cfg.Pipeline.MaxFreePerDay,
	}, logging.Component(baseLogger, "state"))

	artifacts := artifact.NewRepository(cfg.Paths.DataDir + "/artifacts")

	trendStore, err := trend.Open(cfg.Paths.TrendDB(), logging.Component(baseLogger, "trend"))
	if err != nil {
		baseLogger.Warn("analytics database unavailable, continuing without it", "error", err)
		trendStore = nil
	}

	var chat ports.ChatClient
	if cfg.LLM.APIKey != "" {
		chat = llm.NewChatGPTClient(cfg.LLM)
	}

	search := feeds.NewSource(
		&http.Client{Timeout: 20 * time.Second},
		cfg.Feeds,
		cfg.Pipeline.SearchWorkers,
		time.Duration(cfg.Pipeline.SearchTimeoutMS)*time.Millisecond,
		logging.Component(baseLogger, "feeds"),
	)

	var transport, paidChan ports.Transport
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		transport = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			logging.Component(baseLogger, "telegram"))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.PaidChatID != "" {
		paidChan = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.PaidChatID,
			logging.Component(baseLogger, "telegram.paid"))
	}

	loc := cfg.Clock.Location()
	pipe := pipeline.New(pipeline.Deps{
		State:     stateStore,
		Artifacts: artifacts,
		Trend:     trendStore,
		Chat:      chat,
		Search:    search,
		Transport: transport,
		PaidChan:  paidChan,
		Logger:    logging.Component(baseLogger, "pipeline"),
		Cfg:       cfg.Pipeline,
		Now:       func() time.Time { return time.Now().In(loc) },
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: pipe,
		trend:    trendStore,
		driver:   scheduler.NewTickScheduler(time.Hour),
	}
}

// Trend exposes the analytics store for inspection commands; nil when the
// database is unavailable.
func (a *Application) Trend() *trend.Store {
	return a.trend
}

// RunStep executes one named stage with explicit parameters.
func (a *Application) RunStep(ctx context.Context, stage string, req pipeline.Request) []pipeline.Result {
	return a.pipeline.Run(ctx, []string{stage}, req)
}

// RunTick resolves the schedule for the current wall clock and runs
// whatever stages are due.
func (a *Application) RunTick(ctx context.Context) []pipeline.Result {
	return a.pipeline.RunAt(ctx, time.Now().In(a.cfg.Clock.Location()))
}

// Serve ticks the pipeline hourly until the context ends.
func (a *Application) Serve(ctx context.Context) error {
	err := a.driver.Start(ctx, func(t time.Time) {
		results := a.pipeline.RunAt(ctx, t.In(a.cfg.Clock.Location()))
		for _, r := range results {
			if r.Skipped {
				a.logger.Info("stage skipped", "stage", r.Stage, "reason", r.Reason)
			} else {
				a.logger.Info("stage done", "stage", r.Stage, "artifact", r.Artifact)
			}
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return a.driver.Stop(context.Background())
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.trend != nil {
		return a.trend.Close()
	}
	return nil
}
