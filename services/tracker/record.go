// Package tracker provides the IPO tracking engine for the IPO bot.
// It keeps the day's expected and opened IPOs, re-checks prices on a fixed period
// and emits exactly one "now trading" event per symbol.
package tracker

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the data provider
const DateLayout = "2006-01-02"

// Record identifies one scheduled public offering
type Record struct {
	Symbol        string    `json:"symbol"`
	CompanyName   string    `json:"company_name"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ExpectedPrice string    `json:"expected_price"` // informational, e.g. "10" or "14.00-16.00"
	Exchange      string    `json:"exchange,omitempty"`
}

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote holds current-session price fields for a ticker.
// A zero Current price means the symbol has not traded yet today.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Current       decimal.Decimal `json:"current"`
	PreviousClose decimal.Decimal `json:"previous_close"`
}

// IsTrading reports whether the quote carries a positive current price
func (q Quote) IsTrading() bool {
	return q.Current.IsPositive()
}

// PromotionEvent is emitted once when an expected IPO starts trading
type PromotionEvent struct {
	ID            uuid.UUID       `json:"id"`
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"company_name"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	ExpectedPrice string          `json:"expected_price"`
	Day           time.Time       `json:"day"`
	At            time.Time       `json:"at"`
}

// DayCompleteEvent is emitted once per day when the last expected IPO opens
type DayCompleteEvent struct {
	ID     uuid.UUID `json:"id"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Opened int       `json:"opened"`
	At     time.Time `json:"at"`
}

// State describes what the tracker is doing, for status displays
type State string

const (
	StateRegistering State = "registering"
	StateListening   State = "listening"
)

// StatusEvent is emitted around each daily refresh
type StatusEvent struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}
