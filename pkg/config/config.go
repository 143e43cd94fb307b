// Package config provides configuration loading for the IPO bot.
// It loads settings from environment variables and the optional database config table.
package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Quote providers
const (
	ProviderFinnhub = "finnhub"
	ProviderYahoo   = "yahoo"
)

// Config holds all application configuration
type Config struct {
	// API keys and destinations
	FinnhubAPIKey string
	Discord       DiscordConfig
	Feishu        FeishuConfig

	// Tracking
	PollingPeriod    time.Duration
	Timezone         string
	Location         *time.Location
	QuoteProvider    string
	CheckConcurrency int
	Recheck          RecheckConfig
	CalendarCacheTTL time.Duration

	// Optional infrastructure
	DatabaseURL string
	StatusAddr  string

	// Logging
	LogFile  string
	LogLevel string
}

// DiscordConfig is the Discord destination
type DiscordConfig struct {
	Token      string
	ChannelIDs []string
}

// Enabled reports whether the destination is configured
func (d DiscordConfig) Enabled() bool {
	return d.Token != "" && len(d.ChannelIDs) > 0
}

// FeishuConfig is the Feishu/Lark destination
type FeishuConfig struct {
	AppID     string
	AppSecret string
	ChatIDs   []string
}

// Enabled reports whether the destination is configured
func (f FeishuConfig) Enabled() bool {
	return f.AppID != "" && f.AppSecret != "" && len(f.ChatIDs) > 0
}

// RecheckConfig bounds how often a symbol that is not trading yet is re-checked
type RecheckConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("IPO_POLLING_PERIOD", 30)
	v.SetDefault("IPOBOT_TIMEZONE", "America/New_York")
	v.SetDefault("QUOTE_PROVIDER", ProviderFinnhub)
	v.SetDefault("CHECK_CONCURRENCY", 8)
	v.SetDefault("RECHECK_MAX_ATTEMPTS", 0)
	v.SetDefault("RECHECK_BACKOFF_SECONDS", 0)
	v.SetDefault("RECHECK_MAX_BACKOFF_SECONDS", 0)
	v.SetDefault("CALENDAR_CACHE_SECONDS", 600)
	v.SetDefault("LOG_FILE", "log.txt")
	v.SetDefault("LOG_LEVEL", "debug")
	return v
}

// splitList splits a comma-separated list, trimming blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	v := newViper()

	cfg := &Config{
		FinnhubAPIKey: strings.TrimSpace(v.GetString("FINNHUB_APIKEY")),
		Discord: DiscordConfig{
			Token:      strings.TrimSpace(v.GetString("DISCORD_BOT_TOKEN")),
			ChannelIDs: splitList(v.GetString("DISCORD_BOT_CHANNEL_IDS")),
		},
		Feishu: FeishuConfig{
			AppID:     strings.TrimSpace(v.GetString("FEISHU_APP_ID")),
			AppSecret: strings.TrimSpace(v.GetString("FEISHU_APP_SECRET")),
			ChatIDs:   splitList(v.GetString("FEISHU_CHAT_IDS")),
		},
		PollingPeriod:    time.Duration(v.GetInt("IPO_POLLING_PERIOD")) * time.Second,
		Timezone:         v.GetString("IPOBOT_TIMEZONE"),
		QuoteProvider:    strings.ToLower(strings.TrimSpace(v.GetString("QUOTE_PROVIDER"))),
		CheckConcurrency: v.GetInt("CHECK_CONCURRENCY"),
		Recheck: RecheckConfig{
			MaxAttempts: v.GetInt("RECHECK_MAX_ATTEMPTS"),
			Backoff:     time.Duration(v.GetInt("RECHECK_BACKOFF_SECONDS")) * time.Second,
			MaxBackoff:  time.Duration(v.GetInt("RECHECK_MAX_BACKOFF_SECONDS")) * time.Second,
		},
		CalendarCacheTTL: time.Duration(v.GetInt("CALENDAR_CACHE_SECONDS")) * time.Second,
		DatabaseURL:      v.GetString("DATABASE_URL"),
		StatusAddr:       v.GetString("STATUS_ADDR"),
		LogFile:          v.GetString("LOG_FILE"),
		LogLevel:         v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and value ranges and resolves the time zone
func (c *Config) Validate() error {
	var errs []error

	if c.FinnhubAPIKey == "" {
		errs = append(errs, fmt.Errorf("FINNHUB_APIKEY is not set"))
	}

	if (c.Discord.Token == "") != (len(c.Discord.ChannelIDs) == 0) {
		errs = append(errs, fmt.Errorf("DISCORD_BOT_TOKEN and DISCORD_BOT_CHANNEL_IDS must be set together"))
	}
	for _, id := range c.Discord.ChannelIDs {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("DISCORD_BOT_CHANNEL_IDS: invalid channel id %q", id))
		}
	}

	feishuSet := 0
	for _, set := range []bool{c.Feishu.AppID != "", c.Feishu.AppSecret != "", len(c.Feishu.ChatIDs) > 0} {
		if set {
			feishuSet++
		}
	}
	if feishuSet != 0 && feishuSet != 3 {
		errs = append(errs, fmt.Errorf("FEISHU_APP_ID, FEISHU_APP_SECRET and FEISHU_CHAT_IDS must be set together"))
	}

	if c.PollingPeriod <= 0 {
		errs = append(errs, fmt.Errorf("IPO_POLLING_PERIOD must be a positive number of seconds"))
	}
	if c.CheckConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("CHECK_CONCURRENCY must be positive"))
	}
	if c.Recheck.MaxAttempts < 0 || c.Recheck.Backoff < 0 || c.Recheck.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("RECHECK_* values must not be negative"))
	}
	if c.CalendarCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("CALENDAR_CACHE_SECONDS must not be negative"))
	}

	switch c.QuoteProvider {
	case ProviderFinnhub, ProviderYahoo:
	default:
		errs = append(errs, fmt.Errorf("QUOTE_PROVIDER must be %q or %q, got %q", ProviderFinnhub, ProviderYahoo, c.QuoteProvider))
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("IPOBOT_TIMEZONE: %w", err))
	} else {
		c.Location = loc
	}

	return errors.Join(errs...)
}

// overrideKeys are the config table keys the database may set
var overrideKeys = []string{"polling_period", "discord_channel_ids", "feishu_chat_ids"}

// LoadFromDB overlays settings from the database config table
func LoadFromDB(ctx context.Context, db *sql.DB, cfg *Config) error {
	values := make(map[string]string)
	for _, key := range overrideKeys {
		var value string
		err := db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = $1", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read config %s: %w", key, err)
		}
		values[key] = value
	}
	return applyOverrides(cfg, values)
}

// applyOverrides sets the fields named by config table keys
func applyOverrides(cfg *Config, values map[string]string) error {
	if raw, ok := values["polling_period"]; ok {
		secs, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || secs <= 0 {
			return fmt.Errorf("parse polling_period %q: must be a positive integer", raw)
		}
		cfg.PollingPeriod = time.Duration(secs) * time.Second
	}

	if raw, ok := values["discord_channel_ids"]; ok {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return fmt.Errorf("parse discord_channel_ids: %w", err)
		}
		cfg.Discord.ChannelIDs = ids
	}

	if raw, ok := values["feishu_chat_ids"]; ok {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return fmt.Errorf("parse feishu_chat_ids: %w", err)
		}
		cfg.Feishu.ChatIDs = ids
	}

	return nil
}

// Load combines environment and database configuration
func Load(ctx context.Context, db *sql.DB) (*Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load from env: %w", err)
	}

	if db == nil {
		return cfg, nil
	}

	if err := LoadFromDB(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("load from db: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate db overrides: %w", err)
	}

	return cfg, nil
}

// view is the printable form of Config
type view struct {
	FinnhubAPIKey    string   `yaml:"finnhub_api_key"`
	DiscordToken     string   `yaml:"discord_bot_token"`
	DiscordChannels  []string `yaml:"discord_channel_ids"`
	FeishuAppID      string   `yaml:"feishu_app_id"`
	FeishuAppSecret  string   `yaml:"feishu_app_secret"`
	FeishuChats      []string `yaml:"feishu_chat_ids"`
	PollingPeriod    string   `yaml:"polling_period"`
	Timezone         string   `yaml:"timezone"`
	QuoteProvider    string   `yaml:"quote_provider"`
	CheckConcurrency int      `yaml:"check_concurrency"`
	RecheckAttempts  int      `yaml:"recheck_max_attempts"`
	RecheckBackoff   string   `yaml:"recheck_backoff"`
	RecheckMax       string   `yaml:"recheck_max_backoff"`
	CalendarCache    string   `yaml:"calendar_cache_ttl"`
	DatabaseURL      string   `yaml:"database_url"`
	StatusAddr       string   `yaml:"status_addr"`
	LogFile          string   `yaml:"log_file"`
	LogLevel         string   `yaml:"log_level"`
}

// redact hides all but the last four characters of a secret
func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// YAML renders the effective configuration with secrets redacted
func (c *Config) YAML() ([]byte, error) {
	v := view{
		FinnhubAPIKey:    redact(c.FinnhubAPIKey),
		DiscordToken:     redact(c.Discord.Token),
		DiscordChannels:  c.Discord.ChannelIDs,
		FeishuAppID:      c.Feishu.AppID,
		FeishuAppSecret:  redact(c.Feishu.AppSecret),
		FeishuChats:      c.Feishu.ChatIDs,
		PollingPeriod:    c.PollingPeriod.String(),
		Timezone:         c.Timezone,
		QuoteProvider:    c.QuoteProvider,
		CheckConcurrency: c.CheckConcurrency,
		RecheckAttempts:  c.Recheck.MaxAttempts,
		RecheckBackoff:   c.Recheck.Backoff.String(),
		RecheckMax:       c.Recheck.MaxBackoff.String(),
		CalendarCache:    c.CalendarCacheTTL.String(),
		DatabaseURL:      redactURL(c.DatabaseURL),
		StatusAddr:       c.StatusAddr,
		LogFile:          c.LogFile,
		LogLevel:         c.LogLevel,
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
