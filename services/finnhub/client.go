// Package finnhub provides the Finnhub market-data client used by the IPO bot.
// It fetches quotes, the IPO and earnings calendars, and news data.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ipobot/services/tracker"
)

const (
	defaultBaseURL   = "https://finnhub.io/api/v1"
	requestTimeout   = 10 * time.Second
	defaultCacheTTL  = 10 * time.Minute
	tokenHeader      = "X-Finnhub-Token"
	calendarCacheMax = 1 << 20
)

// quoteResponse is the /quote payload
type quoteResponse struct {
	Current       decimal.Decimal `json:"c"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	Open          decimal.Decimal `json:"o"`
	PreviousClose decimal.Decimal `json:"pc"`
	Timestamp     int64           `json:"t"`
}

// Client talks to the Finnhub REST API
type Client struct {
	http     *resty.Client
	cache    *ristretto.Cache
	cacheTTL time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API root, mainly for tests
func WithBaseURL(url string) Option {
	return func(c *Client) { c.http.SetBaseURL(strings.TrimRight(url, "/")) }
}

// WithCalendarCacheTTL sets how long IPO calendar responses are reused. 0 disables caching.
func WithCalendarCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithLocation sets the time zone calendar dates are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger.Named("finnhub") }
}

// NewClient creates a Finnhub client authenticated with apiKey
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("FINNHUB_APIKEY is not set")
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(requestTimeout).
			SetHeader(tokenHeader, apiKey).
			SetHeader("Accept", "application/json"),
		cacheTTL: defaultCacheTTL,
		loc:      time.Local,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1000,
			MaxCost:     calendarCacheMax,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create calendar cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// Close releases the calendar cache
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// get performs a GET request and decodes a JSON body into out
func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%s: unexpected status: %d", path, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Quote fetches the current quote for a symbol. A zero Current price means the
// symbol has not traded today.
func (c *Client) Quote(ctx context.Context, symbol string) (tracker.Quote, error) {
	symbol = tracker.NormalizeSymbol(symbol)
	if symbol == "" {
		return tracker.Quote{}, fmt.Errorf("empty symbol")
	}

	var raw quoteResponse
	if err := c.get(ctx, "/quote", map[string]string{"symbol": symbol}, &raw); err != nil {
		return tracker.Quote{}, fmt.Errorf("fetch quote: %w", err)
	}

	c.logger.Debug("Fetched quote", zap.String("symbol", symbol), zap.String("current", raw.Current.String()))

	return tracker.Quote{
		Symbol:        symbol,
		Open:          raw.Open,
		High:          raw.High,
		Low:           raw.Low,
		Current:       raw.Current,
		PreviousClose: raw.PreviousClose,
	}, nil
}

// FetchQuote implements tracker.QuoteFetcher
func (c *Client) FetchQuote(ctx context.Context, symbol string) (tracker.Quote, error) {
	return c.Quote(ctx, symbol)
}
