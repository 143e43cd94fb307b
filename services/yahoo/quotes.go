// Package yahoo provides a Yahoo Finance quote fetcher for the IPO tracker.
package yahoo

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ipobot/services/tracker"
)

// Getter looks up a single quote by symbol
type Getter func(symbol string) (*finance.Quote, error)

// Fetcher implements tracker.QuoteFetcher on top of finance-go
type Fetcher struct {
	get    Getter
	logger *zap.Logger
}

// NewFetcher creates a Fetcher backed by the public Yahoo quote endpoint
func NewFetcher(logger *zap.Logger) *Fetcher {
	return NewFetcherWithGetter(quote.Get, logger)
}

// NewFetcherWithGetter creates a Fetcher using get for lookups
func NewFetcherWithGetter(get Getter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{get: get, logger: logger.Named("yahoo")}
}

type result struct {
	q   *finance.Quote
	err error
}

// FetchQuote returns the latest quote for symbol. A symbol Yahoo does not know
// yet comes back with a zero price rather than an error.
func (f *Fetcher) FetchQuote(ctx context.Context, symbol string) (tracker.Quote, error) {
	symbol = tracker.NormalizeSymbol(symbol)
	if symbol == "" {
		return tracker.Quote{}, fmt.Errorf("empty symbol")
	}

	// finance-go has no context support
	ch := make(chan result, 1)
	go func() {
		q, err := f.get(symbol)
		ch <- result{q: q, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return tracker.Quote{}, fmt.Errorf("fetch quote %s: %w", symbol, ctx.Err())
	case res = <-ch:
	}

	if res.err != nil {
		return tracker.Quote{}, fmt.Errorf("fetch quote %s: %w", symbol, res.err)
	}
	if res.q == nil {
		f.logger.Debug("Symbol not listed yet", zap.String("symbol", symbol))
		return tracker.Quote{Symbol: symbol}, nil
	}

	return tracker.Quote{
		Symbol:        symbol,
		Open:          decimal.NewFromFloat(res.q.RegularMarketOpen),
		High:          decimal.NewFromFloat(res.q.RegularMarketDayHigh),
		Low:           decimal.NewFromFloat(res.q.RegularMarketDayLow),
		Current:       decimal.NewFromFloat(res.q.RegularMarketPrice),
		PreviousClose: decimal.NewFromFloat(res.q.RegularMarketPreviousClose),
	}, nil
}
