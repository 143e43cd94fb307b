package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ipobot/pkg/config"
	"ipobot/pkg/database"
	"ipobot/pkg/logging"
	"ipobot/services/alerts"
	"ipobot/services/feed"
	"ipobot/services/notify"
	"ipobot/services/status"
	"ipobot/services/tracker"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the IPO tracker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(ctx)
		},
	}
}

func runBot(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer closeLog()

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.New(database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := config.LoadFromDB(ctx, db.DB, cfg); err != nil {
			return fmt.Errorf("load config overlay: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		logger.Info("Database connection established")
	}

	fh, err := newFinnhub(cfg, logger)
	if err != nil {
		return err
	}
	defer fh.Close()

	hub := feed.NewHub(0, logger)
	dispatcher := notify.NewDispatcher(logger)
	dispatcher.Add("feed", hub)

	var store *alerts.Store
	if db != nil {
		store = alerts.NewStore(db.DB, logger)
		dispatcher.Add("history", store)
	}

	if err := addChatDestinations(ctx, cfg, dispatcher, logger); err != nil {
		return err
	}

	t := tracker.New(tracker.Config{
		PollingPeriod:    cfg.PollingPeriod,
		CheckConcurrency: cfg.CheckConcurrency,
		Location:         cfg.Location,
		Recheck: tracker.RecheckPolicy{
			MaxAttempts: cfg.Recheck.MaxAttempts,
			Backoff:     cfg.Recheck.Backoff,
			MaxBackoff:  cfg.Recheck.MaxBackoff,
		},
	}, quoteSource(cfg, fh, logger), dispatcher, logger)

	logger.Info("IPO bot starting",
		zap.Strings("destinations", dispatcher.Names()),
		zap.String("quote_provider", cfg.QuoteProvider),
		zap.String("timezone", cfg.Timezone))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.Run(gctx)
	})

	if cfg.StatusAddr != "" {
		opts := []status.Option{status.WithFeed(hub), status.WithRefresher(t)}
		if store != nil {
			opts = append(opts, status.WithAlerts(store))
		}
		srv := status.NewServer(cfg.StatusAddr, t.Registry(), logger, opts...)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutdown signal received, stopped")
		return nil
	}
	return err
}

// addChatDestinations registers Discord and Feishu. At least one chat
// destination must be configured and reachable.
func addChatDestinations(ctx context.Context, cfg *config.Config, d *notify.Dispatcher, logger *zap.Logger) error {
	chats := 0

	if cfg.Discord.Enabled() {
		discord, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelIDs, logger)
		if err != nil {
			return err
		}
		if err := discord.Verify(ctx); err != nil {
			return fmt.Errorf("could not register channel IDs: %w", err)
		}
		d.Add("discord", notify.Text(discord))
		chats++
	}

	if cfg.Feishu.Enabled() {
		feishu, err := notify.NewFeishu(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.ChatIDs, logger)
		if err != nil {
			return err
		}
		d.Add("feishu", notify.Text(feishu))
		chats++
	}

	if chats == 0 {
		return fmt.Errorf("no chat destination configured: set DISCORD_BOT_TOKEN/DISCORD_BOT_CHANNEL_IDS or FEISHU_APP_ID/FEISHU_APP_SECRET/FEISHU_CHAT_IDS")
	}
	return nil
}
