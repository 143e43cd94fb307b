package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	discordBaseURL    = "https://discord.com/api/v10"
	discordTimeout    = 10 * time.Second
	discordMaxMessage = 2000
)

// ErrNoChannels is returned when no configured chat channel is reachable
var ErrNoChannels = errors.New("no reachable channels")

// Discord posts messages to text channels through the Discord REST API
type Discord struct {
	http     *resty.Client
	channels []string
	logger   *zap.Logger
}

// DiscordOption customizes a Discord destination
type DiscordOption func(*Discord)

// WithDiscordBaseURL points the destination at another API root, mainly for tests
func WithDiscordBaseURL(url string) DiscordOption {
	return func(d *Discord) { d.http.SetBaseURL(strings.TrimRight(url, "/")) }
}

// NewDiscord creates a Discord destination authenticated with a bot token
func NewDiscord(token string, channelIDs []string, logger *zap.Logger, opts ...DiscordOption) (*Discord, error) {
	if token == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is not set")
	}
	if len(channelIDs) == 0 {
		return nil, fmt.Errorf("DISCORD_BOT_CHANNEL_IDS is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Discord{
		http: resty.New().
			SetBaseURL(discordBaseURL).
			SetTimeout(discordTimeout).
			SetHeader("Authorization", "Bot "+token).
			SetHeader("Content-Type", "application/json"),
		channels: append([]string(nil), channelIDs...),
		logger:   logger.Named("discord"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Channels returns the channel IDs messages are posted to
func (d *Discord) Channels() []string {
	return append([]string(nil), d.channels...)
}

// Verify looks up every configured channel and keeps only the reachable ones.
// It returns ErrNoChannels when none are left.
func (d *Discord) Verify(ctx context.Context) error {
	d.logger.Info("Registering channel IDs", zap.Strings("channels", d.channels))

	reachable := make([]string, 0, len(d.channels))
	for _, id := range d.channels {
		resp, err := d.http.R().SetContext(ctx).Get("/channels/" + id)
		if err != nil {
			d.logger.Warn("Channel lookup failed", zap.String("channel", id), zap.Error(err))
			continue
		}
		if resp.IsError() {
			d.logger.Warn("Channel not reachable", zap.String("channel", id), zap.Int("status", resp.StatusCode()))
			continue
		}
		reachable = append(reachable, id)
	}

	if len(reachable) == 0 {
		return fmt.Errorf("discord: %w", ErrNoChannels)
	}
	d.channels = reachable
	return nil
}

// Send posts text to every channel
func (d *Discord) Send(ctx context.Context, text string) error {
	text = Truncate(text, discordMaxMessage)

	var errs []error
	for _, id := range d.channels {
		resp, err := d.http.R().
			SetContext(ctx).
			SetBody(map[string]string{"content": text}).
			Post("/channels/" + id + "/messages")
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", id, err))
			continue
		}
		if resp.IsError() {
			errs = append(errs, fmt.Errorf("channel %s: unexpected status: %d", id, resp.StatusCode()))
			continue
		}
		d.logger.Debug("Message sent", zap.String("channel", id))
	}
	return errors.Join(errs...)
}
