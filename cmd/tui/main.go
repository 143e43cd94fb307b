// Package main provides the terminal dashboard for the IPO bot.
// It runs the tracker in-process and shows the day's expected and opened IPOs
// alongside a live alert log. Built with Bubble Tea and Lip Gloss.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ipobot/pkg/config"
	"ipobot/pkg/logging"
	"ipobot/services/finnhub"
	"ipobot/services/tracker"
	"ipobot/services/yahoo"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the dashboard, so logs only go to the file.
	logger, closeLog, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: io.Discard})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	fh, err := finnhub.NewClient(cfg.FinnhubAPIKey,
		finnhub.WithCalendarCacheTTL(cfg.CalendarCacheTTL),
		finnhub.WithLocation(cfg.Location),
		finnhub.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Finnhub client error: %v\n", err)
		os.Exit(1)
	}
	defer fh.Close()

	var source tracker.QuoteSource = fh
	if cfg.QuoteProvider == config.ProviderYahoo {
		source = tracker.CombineSources(fh, yahoo.NewFetcher(logger))
	}

	events := &programNotifier{}
	registry := tracker.NewRegistry()
	t := tracker.New(tracker.Config{
		PollingPeriod:    cfg.PollingPeriod,
		CheckConcurrency: cfg.CheckConcurrency,
		Location:         cfg.Location,
		Recheck: tracker.RecheckPolicy{
			MaxAttempts: cfg.Recheck.MaxAttempts,
			Backoff:     cfg.Recheck.Backoff,
			MaxBackoff:  cfg.Recheck.MaxBackoff,
		},
	}, source, events, logger, tracker.WithRegistry(registry))

	p := tea.NewProgram(initialModel(registry, t.Refresh), tea.WithAltScreen())
	events.send = p.Send

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := t.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Tracker stopped", zap.Error(err))
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
