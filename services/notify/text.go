package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ipobot/services/tracker"
)

const truncateTag = "..."

// Sender posts a plain-text message to a chat destination
type Sender interface {
	Send(ctx context.Context, text string) error
}

// FormatPromotion renders the "now trading" alert
func FormatPromotion(ev tracker.PromotionEvent) string {
	expected := ev.ExpectedPrice
	if expected == "" {
		expected = "N/A"
	}
	return fmt.Sprintf("IPO ALERT:\n%s ($%s) OPEN FOR TRADING!\nCurrent Price: $%s | Expected Open Price: $%s",
		ev.CompanyName, ev.Symbol, ev.CurrentPrice.String(), expected)
}

// FormatDayComplete renders the end-of-day summary
func FormatDayComplete(ev tracker.DayCompleteEvent) string {
	return fmt.Sprintf("ALL SCHEDULED IPOS ARE FINISHED FOR %s - %s.",
		ev.From.Format(tracker.DateLayout), ev.To.Format(tracker.DateLayout))
}

// textNotifier turns tracker events into chat messages
type textNotifier struct {
	sender Sender
}

// Text adapts a Sender into a tracker.Notifier using the standard message formats
func Text(s Sender) tracker.Notifier {
	return textNotifier{sender: s}
}

func (n textNotifier) NotifyPromotion(ctx context.Context, ev tracker.PromotionEvent) error {
	return n.sender.Send(ctx, FormatPromotion(ev))
}

func (n textNotifier) NotifyDayComplete(ctx context.Context, ev tracker.DayCompleteEvent) error {
	return n.sender.Send(ctx, FormatDayComplete(ev))
}

// FormatQuote renders a quote lookup reply
func FormatQuote(q tracker.Quote) string {
	if !q.IsTrading() {
		return fmt.Sprintf("Ticker symbol '%s' has not yet opened for trading.", q.Symbol)
	}
	return fmt.Sprintf("%s Quote:\nDay Open: $%s | Day High: $%s | Day Low: $%s | Current Price: $%s",
		q.Symbol, q.Open.String(), q.High.String(), q.Low.String(), q.Current.String())
}

// FormatCalendar renders an IPO calendar listing
func FormatCalendar(records []tracker.Record) string {
	if len(records) == 0 {
		return "No IPOs scheduled."
	}

	var b strings.Builder
	b.WriteString("IPO Calendar:")
	for _, r := range records {
		price := r.ExpectedPrice
		if price == "" {
			price = "N/A"
		}
		fmt.Fprintf(&b, "\n%s: ($%s) %s expected at $%s", r.ScheduledDate.Format(tracker.DateLayout), r.Symbol, r.CompanyName, price)
	}
	return b.String()
}

// Truncate shortens s to at most max characters, ending in "..." when cut.
// It never splits a multi-byte character.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(truncateTag) {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-len(truncateTag)]) + truncateTag
}
