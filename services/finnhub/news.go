package finnhub

import (
	"context"
	"fmt"

	"ipobot/services/tracker"
)

// NewsSentiment is the /news-sentiment payload. The endpoint needs a premium plan.
type NewsSentiment struct {
	Symbol string `json:"symbol"`
	Buzz   struct {
		ArticlesInLastWeek int     `json:"articlesInLastWeek"`
		Buzz               float64 `json:"buzz"`
		WeeklyAverage      float64 `json:"weeklyAverage"`
	} `json:"buzz"`
	CompanyNewsScore float64 `json:"companyNewsScore"`
	Sentiment        struct {
		BearishPercent float64 `json:"bearishPercent"`
		BullishPercent float64 `json:"bullishPercent"`
	} `json:"sentiment"`
}

// Article is one entry of the /company-news payload
type Article struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// NewsSentiment fetches the news sentiment summary for a symbol
func (c *Client) NewsSentiment(ctx context.Context, symbol string) (*NewsSentiment, error) {
	var resp NewsSentiment
	params := map[string]string{"symbol": tracker.NormalizeSymbol(symbol)}
	if err := c.get(ctx, "/news-sentiment", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch news sentiment: %w", err)
	}
	return &resp, nil
}

// CompanyNews fetches headlines for a symbol between from and to (YYYY-MM-DD)
func (c *Client) CompanyNews(ctx context.Context, symbol, from, to string) ([]Article, error) {
	var resp []Article
	params := map[string]string{
		"symbol": tracker.NormalizeSymbol(symbol),
		"from":   from,
		"to":     to,
	}
	if err := c.get(ctx, "/company-news", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch company news: %w", err)
	}
	return resp, nil
}
