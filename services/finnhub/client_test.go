package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"ipobot/services/tracker"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(url), WithLocation(time.UTC), WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewClient("test_key", opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("NewClient() should return error for empty API key")
	}
}

func TestQuote_MockServer(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %s, want /quote", r.URL.Path)
		}
		if got := r.Header.Get("X-Finnhub-Token"); got != "test_key" {
			t.Errorf("token header = %q, want test_key", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "ABC" {
			t.Errorf("symbol = %q, want ABC", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":12.5,"d":null,"dp":null,"h":13.1,"l":11.9,"o":12,"pc":0,"t":1718200000}`))
	})

	c := newTestClient(t, server.URL)

	q, err := c.Quote(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	if q.Symbol != "ABC" {
		t.Errorf("Quote() symbol = %v, want ABC", q.Symbol)
	}
	if !q.Current.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Quote() current = %v, want 12.5", q.Current)
	}
	if !q.High.Equal(decimal.RequireFromString("13.1")) {
		t.Errorf("Quote() high = %v, want 13.1", q.High)
	}
	if !q.IsTrading() {
		t.Error("IsTrading() = false for a positive price")
	}
}

func TestQuote_NotTradingYet(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	q, err := newTestClient(t, server.URL).FetchQuote(context.Background(), "NEWCO")
	if err != nil {
		t.Fatalf("FetchQuote() error = %v", err)
	}
	if q.IsTrading() {
		t.Error("IsTrading() = true for a zero price")
	}
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantErr: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"API limit reached"}`, wantErr: true},
		{name: "malformed payload", status: http.StatusOK, body: `{"c":"not-a-number`, wantErr: true},
		{name: "valid", status: http.StatusOK, body: `{"c":1}`, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := newTestClient(t, server.URL).Quote(context.Background(), "ABC")
			if (err != nil) != tt.wantErr {
				t.Errorf("Quote() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchIPOCalendar(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/ipo" {
			t.Errorf("path = %s, want /calendar/ipo", r.URL.Path)
		}
		if r.URL.Query().Get("from") != "2024-06-12" || r.URL.Query().Get("to") != "2024-06-13" {
			t.Errorf("window = %s..%s, want 2024-06-12..2024-06-13", r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ipoCalendar":[
			{"date":"2024-06-12","exchange":"NASDAQ Global","name":"Alpha Bio Inc","numberOfShares":5000000,"price":"14.00-16.00","status":"expected","symbol":"abio","totalSharesValue":80000000},
			{"date":"2024-06-13","exchange":"NYSE","name":"Beta Corp","numberOfShares":null,"price":10,"status":"priced","symbol":"BETA","totalSharesValue":null},
			{"date":"2024-06-13","exchange":"NYSE","name":"Nameless Co","numberOfShares":null,"price":null,"status":"filed","symbol":"","totalSharesValue":null}
		]}`))
	})

	c := newTestClient(t, server.URL, WithCalendarCacheTTL(0))

	from := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	recs, err := c.FetchIPOCalendar(context.Background(), from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("FetchIPOCalendar() error = %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("FetchIPOCalendar() returned %d records, want 2", len(recs))
	}

	if recs[0].Symbol != "ABIO" || recs[0].ExpectedPrice != "14.00-16.00" || recs[0].CompanyName != "Alpha Bio Inc" {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if !recs[0].ScheduledDate.Equal(from) {
		t.Errorf("record 0 date = %v, want %v", recs[0].ScheduledDate, from)
	}
	if recs[1].Symbol != "BETA" || recs[1].ExpectedPrice != "10" {
		t.Errorf("record 1 = %+v, want BETA at 10", recs[1])
	}
}

func TestIPOCalendar_Cached(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ipoCalendar":[{"date":"2024-06-12","name":"Alpha","price":"10","symbol":"ALP"}]}`))
	})

	c := newTestClient(t, server.URL, WithCalendarCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		ipos, err := c.IPOCalendar(context.Background(), "2024-06-12", "2024-06-13")
		if err != nil {
			t.Fatalf("IPOCalendar() error = %v", err)
		}
		if len(ipos) != 1 {
			t.Fatalf("IPOCalendar() returned %d entries, want 1", len(ipos))
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestInvalidateCalendar(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ipoCalendar":[{"date":"2024-06-12","name":"Alpha","price":"10","symbol":"ALP"}]}`))
	})

	c := newTestClient(t, server.URL, WithCalendarCacheTTL(time.Minute))

	var src tracker.QuoteSource = c
	inv, ok := src.(tracker.CalendarInvalidator)
	if !ok {
		t.Fatal("Client does not implement tracker.CalendarInvalidator")
	}

	from := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	if _, err := c.FetchIPOCalendar(context.Background(), from, from.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("FetchIPOCalendar() error = %v", err)
	}
	inv.InvalidateCalendar()
	if _, err := c.FetchIPOCalendar(context.Background(), from, from.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("FetchIPOCalendar() error = %v", err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestIPOCalendar_EmptyWindow(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ipoCalendar":[]}`))
	})

	recs, err := newTestClient(t, server.URL).FetchIPOCalendar(context.Background(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("FetchIPOCalendar() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("FetchIPOCalendar() = %v, want empty", recs)
	}
}

func TestEarningsCalendar(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "AAPL" || q.Get("international") != "false" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"earningsCalendar":[{"date":"2024-08-01","epsActual":null,"epsEstimate":1.34,"hour":"amc","quarter":3,"revenueActual":null,"revenueEstimate":84000000000,"symbol":"AAPL","year":2024}]}`))
	})

	earnings, err := newTestClient(t, server.URL).EarningsCalendar(context.Background(), "2024-07-29", "2024-08-02", "aapl")
	if err != nil {
		t.Fatalf("EarningsCalendar() error = %v", err)
	}
	if len(earnings) != 1 {
		t.Fatalf("EarningsCalendar() returned %d entries, want 1", len(earnings))
	}
	if earnings[0].EPSActual != nil || earnings[0].EPSEstimate == nil || *earnings[0].EPSEstimate != 1.34 {
		t.Errorf("earning = %+v", earnings[0])
	}
}

func TestNewsSentiment(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"buzz":{"articlesInLastWeek":20,"buzz":0.9,"weeklyAverage":22},"companyNewsScore":0.7,"sentiment":{"bearishPercent":0.25,"bullishPercent":0.75},"symbol":"ABC"}`))
	})

	s, err := newTestClient(t, server.URL).NewsSentiment(context.Background(), "abc")
	if err != nil {
		t.Fatalf("NewsSentiment() error = %v", err)
	}
	if s.Buzz.ArticlesInLastWeek != 20 || s.Sentiment.BullishPercent != 0.75 {
		t.Errorf("NewsSentiment() = %+v", s)
	}
}

func TestCompanyNews(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/company-news" {
			t.Errorf("path = %s, want /company-news", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"category":"company","datetime":1718200000,"headline":"ABC prices IPO","id":1,"related":"ABC","source":"Wire","summary":"...","url":"https://example.com/abc"}]`))
	})

	articles, err := newTestClient(t, server.URL).CompanyNews(context.Background(), "ABC", "2024-06-01", "2024-06-12")
	if err != nil {
		t.Fatalf("CompanyNews() error = %v", err)
	}
	if len(articles) != 1 || articles[0].Headline != "ABC prices IPO" {
		t.Errorf("CompanyNews() = %+v", articles)
	}
}
