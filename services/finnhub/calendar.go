package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ipobot/services/tracker"
)

// IPO is one entry of the /calendar/ipo payload
type IPO struct {
	Date             string    `json:"date"`
	Exchange         string    `json:"exchange"`
	Name             string    `json:"name"`
	NumberOfShares   *int64    `json:"numberOfShares"`
	Price            flexPrice `json:"price"`
	Status           string    `json:"status"`
	Symbol           string    `json:"symbol"`
	TotalSharesValue *float64  `json:"totalSharesValue"`
}

type ipoCalendarResponse struct {
	IPOCalendar []IPO `json:"ipoCalendar"`
}

// Earning is one entry of the /calendar/earnings payload
type Earning struct {
	Date            string   `json:"date"`
	EPSActual       *float64 `json:"epsActual"`
	EPSEstimate     *float64 `json:"epsEstimate"`
	Hour            string   `json:"hour"`
	Quarter         int      `json:"quarter"`
	RevenueActual   *float64 `json:"revenueActual"`
	RevenueEstimate *float64 `json:"revenueEstimate"`
	Symbol          string   `json:"symbol"`
	Year            int      `json:"year"`
}

type earningsCalendarResponse struct {
	EarningsCalendar []Earning `json:"earningsCalendar"`
}

// flexPrice accepts the price as a string ("10.00-12.00"), a number or null
type flexPrice string

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = flexPrice(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("parse price %s: %w", string(b), err)
	}
	*p = flexPrice(n.String())
	return nil
}

// IPOCalendar returns the IPOs scheduled between from and to (YYYY-MM-DD, inclusive)
func (c *Client) IPOCalendar(ctx context.Context, from, to string) ([]IPO, error) {
	key := "ipo:" + from + ":" + to
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.logger.Debug("IPO calendar cache hit", zap.String("from", from), zap.String("to", to))
			return v.([]IPO), nil
		}
	}

	c.logger.Info("Fetching IPO calendar", zap.String("from", from), zap.String("to", to))

	var resp ipoCalendarResponse
	params := map[string]string{"from": from, "to": to}
	if err := c.get(ctx, "/calendar/ipo", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch ipo calendar: %w", err)
	}

	if c.cache != nil {
		c.cache.SetWithTTL(key, resp.IPOCalendar, 1, c.cacheTTL)
		c.cache.Wait()
	}
	return resp.IPOCalendar, nil
}

// InvalidateCalendar drops cached calendar responses
func (c *Client) InvalidateCalendar() {
	if c.cache != nil {
		c.cache.Clear()
		c.logger.Debug("IPO calendar cache cleared")
	}
}

// FetchIPOCalendar implements tracker.CalendarSource
func (c *Client) FetchIPOCalendar(ctx context.Context, from, to time.Time) ([]tracker.Record, error) {
	ipos, err := c.IPOCalendar(ctx, from.Format(tracker.DateLayout), to.Format(tracker.DateLayout))
	if err != nil {
		return nil, err
	}

	records := make([]tracker.Record, 0, len(ipos))
	for _, ipo := range ipos {
		rec, ok := c.toRecord(ipo)
		if !ok {
			c.logger.Warn("Skipping IPO without symbol", zap.String("name", ipo.Name), zap.String("date", ipo.Date))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) toRecord(ipo IPO) (tracker.Record, bool) {
	symbol := tracker.NormalizeSymbol(ipo.Symbol)
	if symbol == "" {
		return tracker.Record{}, false
	}

	rec := tracker.Record{
		Symbol:        symbol,
		CompanyName:   ipo.Name,
		ExpectedPrice: string(ipo.Price),
		Exchange:      ipo.Exchange,
	}
	if d, err := time.ParseInLocation(tracker.DateLayout, ipo.Date, c.loc); err == nil {
		rec.ScheduledDate = d
	}
	return rec, true
}

// EarningsCalendar returns earnings announcements between from and to.
// An empty symbol returns all announcements in the window.
func (c *Client) EarningsCalendar(ctx context.Context, from, to, symbol string) ([]Earning, error) {
	params := map[string]string{
		"from":          from,
		"to":            to,
		"international": "false",
	}
	if symbol != "" {
		params["symbol"] = tracker.NormalizeSymbol(symbol)
	}

	var resp earningsCalendarResponse
	if err := c.get(ctx, "/calendar/earnings", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch earnings calendar: %w", err)
	}
	return resp.EarningsCalendar, nil
}
