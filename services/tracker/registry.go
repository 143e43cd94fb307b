package tracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Registry holds the classified IPO working set for the current day.
// It is the only owner of the expected and opened sets; all methods are safe
// for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	expected    map[string]Record
	opened      map[string]Record
	currentDay  time.Time
	nextDay     time.Time
	dayComplete bool
}

// Snapshot is a consistent copy of the Registry
type Snapshot struct {
	CurrentDay time.Time `json:"current_day"`
	NextDay    time.Time `json:"next_day"`
	Expected   []Record  `json:"expected"`
	Opened     []Record  `json:"opened"`
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		expected: make(map[string]Record),
		opened:   make(map[string]Record),
	}
}

// Reset clears both sets and the day-complete flag
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expected = make(map[string]Record)
	r.opened = make(map[string]Record)
	r.dayComplete = false
}

// Classify files a scheduled IPO under opened when price > 0, otherwise under expected
func (r *Registry) Classify(rec Record, price decimal.Decimal) {
	rec.Symbol = NormalizeSymbol(rec.Symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.expected, rec.Symbol)
	delete(r.opened, rec.Symbol)

	if price.IsPositive() {
		r.opened[rec.Symbol] = rec
	} else {
		r.expected[rec.Symbol] = rec
	}
}

// Promote moves a symbol from expected to opened
func (r *Registry) Promote(symbol string) (Record, error) {
	symbol = NormalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.expected[symbol]
	if !ok {
		return Record{}, fmt.Errorf("promote %s: %w", symbol, ErrNotFound)
	}

	delete(r.expected, symbol)
	r.opened[symbol] = rec
	return rec, nil
}

// Lookup reports which set, if any, holds symbol
func (r *Registry) Lookup(symbol string) (inExpected, inOpened bool) {
	symbol = NormalizeSymbol(symbol)

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, inExpected = r.expected[symbol]
	_, inOpened = r.opened[symbol]
	return inExpected, inOpened
}

// IsEmpty reports whether no IPOs are left to wait for
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.expected) == 0
}

// Counts returns the sizes of the expected and opened sets
func (r *Registry) Counts() (expected, opened int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.expected), len(r.opened)
}

// Expected returns the expected IPOs sorted by symbol
func (r *Registry) Expected() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedRecords(r.expected)
}

// Opened returns the opened IPOs sorted by symbol
func (r *Registry) Opened() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedRecords(r.opened)
}

// Snapshot returns both sets and the day window taken under one lock
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		CurrentDay: r.currentDay,
		NextDay:    r.nextDay,
		Expected:   sortedRecords(r.expected),
		Opened:     sortedRecords(r.opened),
	}
}

// Window returns the day window the registry currently represents
func (r *Registry) Window() (currentDay, nextDay time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentDay, r.nextDay
}

// SetWindow sets the day window
func (r *Registry) SetWindow(currentDay, nextDay time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentDay = currentDay
	r.nextDay = nextDay
}

// AdvanceIfDue moves the window forward by one calendar day when now has reached
// nextDay. It reports whether the window moved.
func (r *Registry) AdvanceIfDue(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Before(r.nextDay) {
		return false
	}
	r.currentDay = r.nextDay
	r.nextDay = AddDays(r.nextDay, 1)
	return true
}

// MarkDayComplete records that the day's IPOs have all opened.
// It returns true only the first time it is called for the current day.
func (r *Registry) MarkDayComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dayComplete || len(r.expected) > 0 {
		return false
	}
	r.dayComplete = true
	return true
}

func sortedRecords(m map[string]Record) []Record {
	out := make([]Record, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
