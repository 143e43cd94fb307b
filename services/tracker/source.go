package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CalendarSource returns the IPOs scheduled in an inclusive date window
type CalendarSource interface {
	FetchIPOCalendar(ctx context.Context, from, to time.Time) ([]Record, error)
}

// QuoteFetcher returns the current-session quote for a symbol
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// QuoteSource is the market-data provider consumed by the tracker
type QuoteSource interface {
	CalendarSource
	QuoteFetcher
}

// CalendarInvalidator is implemented by calendar sources that cache responses.
// A manual refresh drops the cache so it sees the provider's latest calendar.
type CalendarInvalidator interface {
	InvalidateCalendar()
}

type combinedSource struct {
	CalendarSource
	QuoteFetcher
}

func (c combinedSource) InvalidateCalendar() {
	if inv, ok := c.CalendarSource.(CalendarInvalidator); ok {
		inv.InvalidateCalendar()
	}
}

// CombineSources builds a QuoteSource that takes the calendar from one provider
// and prices from another.
func CombineSources(cal CalendarSource, quotes QuoteFetcher) QuoteSource {
	return combinedSource{CalendarSource: cal, QuoteFetcher: quotes}
}

// Notifier consumes tracker events. Delivery failures are logged by the tracker
// and never roll back Registry state.
type Notifier interface {
	NotifyPromotion(ctx context.Context, ev PromotionEvent) error
	NotifyDayComplete(ctx context.Context, ev DayCompleteEvent) error
}

// StatusNotifier is implemented by notifiers that also want refresh status changes
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, ev StatusEvent) error
}

// ResolveDate parses a YYYY-MM-DD date or one of the sentinels "today" and "tomorrow"
func ResolveDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	today := StartOfDay(now, loc)

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return today, nil
	case "tomorrow":
		return AddDays(today, 1), nil
	}

	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// StartOfDay returns midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AddDays moves a midnight by n calendar days, staying on midnight across DST changes
func AddDays(day time.Time, n int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+n, 0, 0, 0, 0, day.Location())
}
