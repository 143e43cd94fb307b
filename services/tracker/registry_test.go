package tracker

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		price      decimal.Decimal
		wantOpened bool
	}{
		{name: "positive price opens", price: decimal.NewFromFloat(12.5), wantOpened: true},
		{name: "tiny positive price opens", price: decimal.RequireFromString("0.0001"), wantOpened: true},
		{name: "zero price is expected", price: decimal.Zero, wantOpened: false},
		{name: "negative price is expected", price: decimal.NewFromInt(-1), wantOpened: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Classify(Record{Symbol: "abc", CompanyName: "ABC Corp"}, tt.price)

			expected, opened := r.Counts()
			if tt.wantOpened && (opened != 1 || expected != 0) {
				t.Errorf("Counts() = (%d, %d), want (0, 1)", expected, opened)
			}
			if !tt.wantOpened && (opened != 0 || expected != 1) {
				t.Errorf("Counts() = (%d, %d), want (1, 0)", expected, opened)
			}
		})
	}
}

func TestClassify_NormalizesSymbol(t *testing.T) {
	r := NewRegistry()
	r.Classify(Record{Symbol: " abc "}, decimal.Zero)

	got := r.Expected()
	if len(got) != 1 || got[0].Symbol != "ABC" {
		t.Fatalf("Expected() = %+v, want one record with symbol ABC", got)
	}
}

func TestClassify_ReclassifyKeepsSetsDisjoint(t *testing.T) {
	r := NewRegistry()
	r.Classify(Record{Symbol: "ABC"}, decimal.Zero)
	r.Classify(Record{Symbol: "ABC"}, decimal.NewFromInt(5))

	expected, opened := r.Counts()
	if expected != 0 || opened != 1 {
		t.Errorf("Counts() = (%d, %d), want (0, 1)", expected, opened)
	}
}

func TestPromote(t *testing.T) {
	r := NewRegistry()
	r.Classify(Record{Symbol: "ABC", ExpectedPrice: "10"}, decimal.Zero)

	rec, err := r.Promote("abc")
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if rec.ExpectedPrice != "10" {
		t.Errorf("Promote() record ExpectedPrice = %q, want 10", rec.ExpectedPrice)
	}
	if !r.IsEmpty() {
		t.Error("IsEmpty() = false after promoting the only expected IPO")
	}

	_, err = r.Promote("ABC")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Promote() error = %v, want ErrNotFound", err)
	}

	_, err = r.Promote("NOPE")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Promote(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_RandomSequencesStayDisjointAndMonotonic(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		r := NewRegistry()
		for _, s := range symbols {
			price := decimal.Zero
			if rng.Intn(3) == 0 {
				price = decimal.NewFromInt(int64(rng.Intn(20) + 1))
			}
			r.Classify(Record{Symbol: s}, price)
		}

		openedOnce := make(map[string]bool)
		for _, rec := range r.Opened() {
			openedOnce[rec.Symbol] = true
		}

		for step := 0; step < 20; step++ {
			_, _ = r.Promote(symbols[rng.Intn(len(symbols))])

			snap := r.Snapshot()
			seen := make(map[string]int)
			for _, rec := range snap.Expected {
				seen[rec.Symbol]++
				if openedOnce[rec.Symbol] {
					t.Fatalf("run %d: %s moved back to expected", run, rec.Symbol)
				}
			}
			for _, rec := range snap.Opened {
				seen[rec.Symbol]++
				openedOnce[rec.Symbol] = true
			}
			for _, s := range symbols {
				if seen[s] != 1 {
					t.Fatalf("run %d: %s appears %d times across sets, want 1", run, s, seen[s])
				}
			}
		}
	}
}

func TestRegistry_ConcurrentPromotions(t *testing.T) {
	r := NewRegistry()
	r.Classify(Record{Symbol: "ABC"}, decimal.Zero)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Promote("ABC"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("concurrent Promote() successes = %d, want 1", successes)
	}
}

func TestMarkDayComplete(t *testing.T) {
	r := NewRegistry()
	r.Classify(Record{Symbol: "ABC"}, decimal.Zero)

	if r.MarkDayComplete() {
		t.Error("MarkDayComplete() = true while IPOs are still expected")
	}

	if _, err := r.Promote("ABC"); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if !r.MarkDayComplete() {
		t.Error("first MarkDayComplete() = false, want true")
	}
	if r.MarkDayComplete() {
		t.Error("second MarkDayComplete() = true, want false")
	}

	r.Reset()
	if !r.MarkDayComplete() {
		t.Error("MarkDayComplete() after Reset() = false, want true")
	}
}

func TestAdvanceIfDue(t *testing.T) {
	loc := time.UTC
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)

	r := NewRegistry()
	r.SetWindow(day, AddDays(day, 1))

	if r.AdvanceIfDue(day.Add(23 * time.Hour)) {
		t.Error("AdvanceIfDue() before nextDay = true, want false")
	}

	boundary := AddDays(day, 1)
	if !r.AdvanceIfDue(boundary) {
		t.Fatal("AdvanceIfDue() at nextDay = false, want true")
	}
	current, next := r.Window()
	if !current.Equal(boundary) || !next.Equal(AddDays(day, 2)) {
		t.Errorf("Window() = (%v, %v), want (%v, %v)", current, next, boundary, AddDays(day, 2))
	}

	if r.AdvanceIfDue(boundary) {
		t.Error("second AdvanceIfDue() at the same instant = true, want false")
	}
}
