// Package news provides headline and sentiment lookups for symbols the IPO bot tracks.
// Headlines come from the Yahoo Finance RSS feed or the Finnhub company-news endpoint.
package news

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"ipobot/services/finnhub"
	"ipobot/services/tracker"
)

const (
	defaultFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"
	feedTimeout    = 15 * time.Second
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Headline is one news item about a symbol
type Headline struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
	Tickers   []string  `json:"tickers,omitempty"`
}

// Reader fetches headlines from an RSS feed
type Reader struct {
	parser  *gofeed.Parser
	feedURL string
	logger  *zap.Logger
}

// NewReader creates a Reader. feedURL is a format string with one %s for the
// symbol; empty selects the Yahoo Finance headline feed.
func NewReader(feedURL string, logger *zap.Logger) *Reader {
	if feedURL == "" {
		feedURL = defaultFeedURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fp := gofeed.NewParser()
	fp.UserAgent = userAgent

	return &Reader{parser: fp, feedURL: feedURL, logger: logger.Named("news")}
}

// Headlines returns up to limit headlines for symbol, newest first
func (r *Reader) Headlines(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	symbol = tracker.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	feedURL := fmt.Sprintf(r.feedURL, url.QueryEscape(symbol))
	r.logger.Info("Fetching headlines", zap.String("symbol", symbol))

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch headlines for %s: %w", symbol, err)
	}

	headlines := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := Headline{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Source:  feed.Title,
			Tickers: ExtractTickers(item.Title),
		}
		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		}
		headlines = append(headlines, h)
	}

	return newest(headlines, limit), nil
}

// FromArticles converts Finnhub company-news articles to headlines, newest first
func FromArticles(articles []finnhub.Article, limit int) []Headline {
	headlines := make([]Headline, 0, len(articles))
	for _, a := range articles {
		headlines = append(headlines, Headline{
			Title:     strings.TrimSpace(a.Headline),
			Link:      a.URL,
			Source:    a.Source,
			Published: time.Unix(a.Datetime, 0),
			Tickers:   ExtractTickers(a.Headline),
		})
	}
	return newest(headlines, limit)
}

func newest(headlines []Headline, limit int) []Headline {
	sort.SliceStable(headlines, func(i, j int) bool {
		return headlines[i].Published.After(headlines[j].Published)
	})
	if limit > 0 && len(headlines) > limit {
		headlines = headlines[:limit]
	}
	return headlines
}

// tickerRegex matches $TICKER patterns
var tickerRegex = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

// ExtractTickers finds $TICKER mentions in text, in order of first appearance
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, match := range tickerRegex.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			tickers = append(tickers, match[1])
		}
	}
	return tickers
}

// FormatHeadlines renders headlines as a plain-text list
func FormatHeadlines(symbol string, headlines []Headline) string {
	symbol = tracker.NormalizeSymbol(symbol)
	if len(headlines) == 0 {
		return fmt.Sprintf("No headlines found for %s", symbol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Headlines:\n", symbol)
	for _, h := range headlines {
		date := "unknown date"
		if !h.Published.IsZero() {
			date = h.Published.Format(tracker.DateLayout)
		}
		fmt.Fprintf(&b, "%s | %s\n  %s\n", date, h.Title, h.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}
