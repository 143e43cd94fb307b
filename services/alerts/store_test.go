package alerts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ipobot/services/tracker"
)

func TestNewStore(t *testing.T) {
	// NewStore should work with nil db (for testing struct creation)
	store := NewStore(nil, nil)
	if store == nil {
		t.Error("NewStore returned nil")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -1, want: defaultLimit},
		{in: 0, want: defaultLimit},
		{in: 5, want: 5},
		{in: maxLimit, want: maxLimit},
		{in: maxLimit + 1, want: maxLimit},
	}

	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromPromotion(t *testing.T) {
	day := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	ev := tracker.PromotionEvent{
		ID:            uuid.New(),
		Symbol:        "ABC",
		CompanyName:   "Alpha Beta Corp",
		CurrentPrice:  decimal.RequireFromString("12.5"),
		ExpectedPrice: "10",
		Day:           day,
		At:            day.Add(10 * time.Hour),
	}

	a := fromPromotion(ev)
	if a.EventID != ev.ID || a.Kind != KindPromotion || a.Symbol != "ABC" {
		t.Errorf("fromPromotion() = %+v", a)
	}
	if !a.Price.Valid || !a.Price.Decimal.Equal(ev.CurrentPrice) {
		t.Errorf("price = %+v, want 12.5", a.Price)
	}
	if !a.Day.Equal(day) || !a.CreatedAt.Equal(ev.At) {
		t.Errorf("times = %v / %v", a.Day, a.CreatedAt)
	}
}

func TestFromDayComplete(t *testing.T) {
	from := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	ev := tracker.DayCompleteEvent{ID: uuid.New(), From: from, To: from.AddDate(0, 0, 1), Opened: 3, At: from}

	a := fromDayComplete(ev)
	if a.Kind != KindDayComplete || a.Opened != 3 || a.Symbol != "" {
		t.Errorf("fromDayComplete() = %+v", a)
	}
	if a.Price.Valid {
		t.Error("day-complete alerts carry no price")
	}
	if !a.Day.Equal(from) {
		t.Errorf("day = %v, want %v", a.Day, from)
	}
}
