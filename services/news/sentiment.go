package news

import (
	"fmt"

	"ipobot/services/finnhub"
	"ipobot/services/tracker"
)

// FormatSentiment renders a news-sentiment summary for chat and the CLI.
// A nil summary yields the "could not get sentiment" message.
func FormatSentiment(symbol string, s *finnhub.NewsSentiment) string {
	symbol = tracker.NormalizeSymbol(symbol)
	if s == nil {
		return fmt.Sprintf("Could not get sentiment for %s", symbol)
	}

	return fmt.Sprintf("%s News Sentiment:\nBulls: %s | Bears: %s\nAcross %d Articles.",
		symbol,
		percent(s.Sentiment.BullishPercent),
		percent(s.Sentiment.BearishPercent),
		s.Buzz.ArticlesInLastWeek,
	)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
