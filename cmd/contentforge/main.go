package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ContentForge/internal/app"
	"ContentForge/internal/config"
	"ContentForge/internal/logging"
	"ContentForge/internal/pipeline"
)

func main() {
	var (
		step     = flag.String("step", "", "run one stage: scout | publish | observe | paid")
		mode     = flag.String("mode", "lite", "analysis mode: lite | full")
		date     = flag.String("date", "", "date key YYYYMMDD (default: today)")
		hour     = flag.Int("hour", -1, "scan hour override (default: current hour)")
		theme    = flag.String("theme", "", "scan theme override")
		topic    = flag.String("topic", "", "deep-report topic override")
		serve    = flag.Bool("serve", false, "run on the hourly schedule until interrupted")
		hot      = flag.Int("hot", 0, "print the top N topics of the last 30 days and exit")
		stats    = flag.String("stats", "", "print analytics counts for a date key and exit")
		evidence = flag.String("evidence", "", "print stored evidence matching a topic and exit")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application := app.New(cfg, logger)
	defer application.Close()

	switch {
	case *hot > 0:
		os.Exit(printHotTopics(application, *hot))
	case *stats != "":
		os.Exit(printStats(application, *stats))
	case *evidence != "":
		os.Exit(printEvidence(application, *evidence))
	case *serve:
		if err := application.Serve(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	var results []pipeline.Result
	if *step != "" {
		stage := *step
		if stage == "observe" {
			stage = pipeline.StageObserver
		}
		h := *hour
		if h < 0 {
			h = time.Now().In(cfg.Clock.Location()).Hour()
		}
		results = application.RunStep(ctx, stage, pipeline.Request{
			DateKey: *date,
			Hour:    h,
			Mode:    *mode,
			Theme:   *theme,
			Topic:   *topic,
		})
	} else {
		results = application.RunTick(ctx)
	}

	failed := false
	for _, r := range results {
		if r.Skipped {
			logger.Info("stage skipped", "stage", r.Stage, "reason", r.Reason)
			if r.Reason == "unknown stage" {
				failed = true
			}
		} else {
			logger.Info("stage done", "stage", r.Stage, "artifact", r.Artifact)
		}
	}
	if failed {
		os.Exit(2)
	}
}

func printHotTopics(application *app.Application, n int) int {
	store := application.Trend()
	if store == nil {
		fmt.Fprintln(os.Stderr, "analytics database unavailable")
		return 1
	}
	topics, err := store.HotTopics(30, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, t := range topics {
		fmt.Printf("%-50s freq=%-3d best=%.1f last=%s\n", t.Topic, t.Frequency, t.BestScore, t.LastSeen)
	}
	return 0
}

func printStats(application *app.Application, dateKey string) int {
	store := application.Trend()
	if store == nil {
		fmt.Fprintln(os.Stderr, "analytics database unavailable")
		return 1
	}
	stats, err := store.DailyStats(dateKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("date=%s scanned=%d evidence=%d published=%d words=%d title=%q\n",
		stats.BatchDate, stats.ScoutItems, stats.EvidenceCount, stats.PublishCount,
		stats.ArticleWords, stats.LastTitle)
	return 0
}

func printEvidence(application *app.Application, topic string) int {
	store := application.Trend()
	if store == nil {
		fmt.Fprintln(os.Stderr, "analytics database unavailable")
		return 1
	}
	rows, err := store.EvidenceForTopic(topic, 20)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, ev := range rows {
		fmt.Printf("%s\n  %s\n  %s\n", ev.SourceTitle, ev.SourceURL, ev.Quote)
	}
	return 0
}
