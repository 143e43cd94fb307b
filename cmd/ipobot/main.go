// Package main provides the ipobot command: the IPO tracker service plus
// one-shot lookups against the market-data provider.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ipobot/pkg/config"
	"ipobot/pkg/database"
	"ipobot/pkg/logging"
	"ipobot/services/finnhub"
	"ipobot/services/tracker"
	"ipobot/services/yahoo"
)

var (
	version  = "0.1.0"
	envFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ipobot",
		Short: "Track scheduled IPOs and alert when they start trading",
		Long: `ipobot watches the day's IPO calendar, polls prices for every scheduled
listing and posts a one-time alert to the configured chat destinations when
a listing starts trading.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(earningsCmd())
	rootCmd.AddCommand(sentimentCmd())
	rootCmd.AddCommand(headlinesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFile loads KEY=VALUE pairs without overriding the real environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger builds the console logger used by one-shot commands
func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level := cfg.LogLevel
	if logLevel == "" {
		level = "warn"
	}
	return logging.New(logging.Options{Level: level})
}

func newFinnhub(cfg *config.Config, logger *zap.Logger) (*finnhub.Client, error) {
	return finnhub.NewClient(cfg.FinnhubAPIKey,
		finnhub.WithCalendarCacheTTL(cfg.CalendarCacheTTL),
		finnhub.WithLocation(cfg.Location),
		finnhub.WithLogger(logger),
	)
}

// quoteSource picks the quote provider; the calendar always comes from Finnhub
func quoteSource(cfg *config.Config, fh *finnhub.Client, logger *zap.Logger) tracker.QuoteSource {
	if cfg.QuoteProvider == config.ProviderYahoo {
		return tracker.CombineSources(fh, yahoo.NewFetcher(logger))
	}
	return fh
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ipobot version %s\n", version)
		},
	}
}

// withOverlay reloads the configuration with the database config table applied
func withOverlay(ctx context.Context, cfg *config.Config) (*config.Config, error) {
	db, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	merged, err := config.Load(ctx, db.DB)
	if err != nil {
		return nil, err
	}
	merged.LogLevel = cfg.LogLevel
	return merged, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL != "" {
				if cfg, err = withOverlay(cmd.Context(), cfg); err != nil {
					return err
				}
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}
