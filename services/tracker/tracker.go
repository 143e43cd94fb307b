package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollingPeriod    = 30 * time.Second
	defaultCheckConcurrency = 8
	notifyTimeout           = 15 * time.Second
)

// Config holds tracker configuration
type Config struct {
	PollingPeriod    time.Duration
	CheckConcurrency int
	Location         *time.Location
	Recheck          RecheckPolicy
}

// DefaultConfig returns the default tracker configuration
func DefaultConfig() Config {
	return Config{
		PollingPeriod:    defaultPollingPeriod,
		CheckConcurrency: defaultCheckConcurrency,
		Location:         time.Local,
	}
}

// CycleReport summarizes one polling cycle
type CycleReport struct {
	Refreshed bool
	Checked   int
	Promoted  []string
	Failed    []string
	Skipped   int
	Duration  time.Duration
}

// Tracker runs the daily refresh and the polling cycle against a Registry
type Tracker struct {
	cfg      Config
	registry *Registry
	source   QuoteSource
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	attempts *attemptTracker
	running  atomic.Bool
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithRegistry makes the tracker operate on an existing registry
func WithRegistry(r *Registry) Option {
	return func(t *Tracker) { t.registry = r }
}

// New creates a tracker. The initial window ends at today's midnight so the
// first cycle performs the first daily refresh.
func New(cfg Config, source QuoteSource, notifier Notifier, logger *zap.Logger, opts ...Option) *Tracker {
	if cfg.PollingPeriod <= 0 {
		cfg.PollingPeriod = defaultPollingPeriod
	}
	if cfg.CheckConcurrency <= 0 {
		cfg.CheckConcurrency = defaultCheckConcurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		logger:   logger.Named("tracker"),
		now:      time.Now,
		attempts: newAttemptTracker(cfg.Recheck),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.registry == nil {
		t.registry = NewRegistry()
	}

	today := StartOfDay(t.now(), cfg.Location)
	t.registry.SetWindow(AddDays(today, -1), today)
	return t
}

// Registry returns the registry the tracker mutates
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// PollingPeriod returns the configured cycle period
func (t *Tracker) PollingPeriod() time.Duration {
	return t.cfg.PollingPeriod
}

// Run executes one cycle immediately and then one per polling period until ctx is
// cancelled. Cycles run on this goroutine and never overlap.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("Starting IPO tracker", zap.Duration("period", t.cfg.PollingPeriod))

	ticker := time.NewTicker(t.cfg.PollingPeriod)
	defer ticker.Stop()

	t.safeCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("IPO tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			t.safeCycle(ctx)
		}
	}
}

func (t *Tracker) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Polling cycle panic recovered", zap.Any("panic", r))
		}
	}()

	if _, err := t.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Error("Polling cycle failed", zap.Error(err))
	}
}

// RunCycle runs one polling cycle: day check, then a price check for every
// expected IPO. Provider errors are isolated per symbol; the returned error only
// reports re-entrant calls and registry invariant violations.
func (t *Tracker) RunCycle(ctx context.Context) (CycleReport, error) {
	if !t.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer t.running.Store(false)

	began := time.Now()
	start := t.now()
	var report CycleReport

	if t.registry.AdvanceIfDue(start) {
		report.Refreshed = true
		t.refresh(ctx)
	}

	if t.registry.IsEmpty() {
		report.Duration = time.Since(began)
		return report, nil
	}

	expected := t.registry.Expected()
	t.logger.Debug("Fetching price quotes for expected IPOs", zap.Int("count", len(expected)))

	var (
		mu         sync.Mutex
		violations []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.CheckConcurrency)

	for _, rec := range expected {
		if !t.attempts.due(rec.Symbol, start) {
			report.Skipped++
			continue
		}
		report.Checked++

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("Quote check panic recovered", zap.String("symbol", rec.Symbol), zap.Any("panic", r))
					mu.Lock()
					report.Failed = append(report.Failed, rec.Symbol)
					mu.Unlock()
				}
			}()

			promoted, err := t.check(gctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNotFound):
				violations = append(violations, err)
			case err != nil:
				report.Failed = append(report.Failed, rec.Symbol)
			case promoted:
				report.Promoted = append(report.Promoted, rec.Symbol)
			}
			// Per-symbol errors never cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	if len(report.Promoted) > 0 && t.registry.MarkDayComplete() {
		t.emitDayComplete(ctx)
	}

	report.Duration = time.Since(began)
	t.logger.Info("IPO checks complete",
		zap.Int("checked", report.Checked),
		zap.Strings("promoted", report.Promoted),
		zap.Strings("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Duration),
	)

	if len(violations) > 0 {
		return report, errors.Join(violations...)
	}
	return report, nil
}

// check fetches one quote and promotes the symbol when it trades
func (t *Tracker) check(ctx context.Context, rec Record) (bool, error) {
	q, err := t.source.FetchQuote(ctx, rec.Symbol)
	if err != nil {
		t.attempts.miss(rec.Symbol, t.now())
		t.logger.Warn("Could not fetch quote", zap.String("symbol", rec.Symbol), zap.Error(err))
		return false, fmt.Errorf("fetch quote %s: %w", rec.Symbol, err)
	}

	if !q.IsTrading() {
		t.attempts.miss(rec.Symbol, t.now())
		return false, nil
	}

	promoted, err := t.registry.Promote(rec.Symbol)
	if err != nil {
		t.logger.Error("Registry invariant violated", zap.String("symbol", rec.Symbol), zap.Error(err))
		return false, err
	}

	t.logger.Info("IPO has opened for trading",
		zap.String("symbol", promoted.Symbol),
		zap.String("current_price", q.Current.String()),
		zap.String("expected_price", promoted.ExpectedPrice),
	)

	currentDay, _ := t.registry.Window()
	ev := PromotionEvent{
		ID:            uuid.New(),
		Symbol:        promoted.Symbol,
		CompanyName:   promoted.CompanyName,
		CurrentPrice:  q.Current,
		ExpectedPrice: promoted.ExpectedPrice,
		Day:           currentDay,
		At:            t.now(),
	}

	// Delivery outlives cycle cancellation so a promotion always gets its notification attempt.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if t.notifier != nil {
		if err := t.notifier.NotifyPromotion(nctx, ev); err != nil {
			t.logger.Warn("Promotion notification failed", zap.String("symbol", ev.Symbol), zap.Error(err))
		}
	}
	return true, nil
}

func (t *Tracker) emitDayComplete(ctx context.Context) {
	from, to := t.registry.Window()
	_, opened := t.registry.Counts()

	t.logger.Info("All scheduled IPOs are finished",
		zap.String("from", from.Format(DateLayout)),
		zap.String("to", to.Format(DateLayout)),
	)

	if t.notifier == nil {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	ev := DayCompleteEvent{
		ID:     uuid.New(),
		From:   from,
		To:     to,
		Opened: opened,
		At:     t.now(),
	}
	if err := t.notifier.NotifyDayComplete(nctx, ev); err != nil {
		t.logger.Warn("Day-complete notification failed", zap.Error(err))
	}
}
