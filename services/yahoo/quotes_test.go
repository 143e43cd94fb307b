package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/shopspring/decimal"
)

func TestFetchQuote(t *testing.T) {
	tests := []struct {
		name        string
		getter      Getter
		wantErr     bool
		wantTrading bool
		wantPrice   string
	}{
		{
			name: "trading",
			getter: func(symbol string) (*finance.Quote, error) {
				return &finance.Quote{RegularMarketPrice: 21.5, RegularMarketOpen: 20}, nil
			},
			wantTrading: true,
			wantPrice:   "21.5",
		},
		{
			name: "not listed",
			getter: func(symbol string) (*finance.Quote, error) {
				return nil, nil
			},
			wantPrice: "0",
		},
		{
			name: "listed without trades",
			getter: func(symbol string) (*finance.Quote, error) {
				return &finance.Quote{}, nil
			},
			wantPrice: "0",
		},
		{
			name: "lookup error",
			getter: func(symbol string) (*finance.Quote, error) {
				return nil, errors.New("429 too many requests")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcherWithGetter(tt.getter, nil)

			q, err := f.FetchQuote(context.Background(), " abc ")
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchQuote() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if q.Symbol != "ABC" {
				t.Errorf("FetchQuote() symbol = %q, want ABC", q.Symbol)
			}
			if q.IsTrading() != tt.wantTrading {
				t.Errorf("IsTrading() = %v, want %v", q.IsTrading(), tt.wantTrading)
			}
			if !q.Current.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("FetchQuote() current = %v, want %v", q.Current, tt.wantPrice)
			}
		})
	}
}

func TestFetchQuote_SymbolPassedThrough(t *testing.T) {
	var got string
	f := NewFetcherWithGetter(func(symbol string) (*finance.Quote, error) {
		got = symbol
		return nil, nil
	}, nil)

	if _, err := f.FetchQuote(context.Background(), "newco"); err != nil {
		t.Fatalf("FetchQuote() error = %v", err)
	}
	if got != "NEWCO" {
		t.Errorf("getter called with %q, want NEWCO", got)
	}
}

func TestFetchQuote_EmptySymbol(t *testing.T) {
	f := NewFetcherWithGetter(func(string) (*finance.Quote, error) {
		t.Error("getter should not be called")
		return nil, nil
	}, nil)

	if _, err := f.FetchQuote(context.Background(), "  "); err == nil {
		t.Error("FetchQuote() should reject an empty symbol")
	}
}

func TestFetchQuote_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	f := NewFetcherWithGetter(func(string) (*finance.Quote, error) {
		<-release
		return nil, nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.FetchQuote(ctx, "SLOW")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchQuote() error = %v, want deadline exceeded", err)
	}
}
