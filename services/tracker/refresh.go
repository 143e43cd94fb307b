package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// refresh rebuilds the registry for a new day window. A calendar failure leaves
// the registry empty until the next day boundary; there is no mid-day retry.
func (t *Tracker) refresh(ctx context.Context) {
	from, to := t.registry.Window()
	log := t.logger.With(
		zap.String("from", from.Format(DateLayout)),
		zap.String("to", to.Format(DateLayout)),
	)
	log.Info("Day change detected, registering IPO data")

	t.emitStatus(ctx, StateRegistering)
	defer t.emitStatus(ctx, StateListening)

	t.registry.Reset()
	t.attempts.reset()

	records, err := t.source.FetchIPOCalendar(ctx, from, to)
	if err != nil {
		// TODO: retry on the next cycle once a calendar retry budget is configurable.
		log.Warn("IPO calendar fetch failed, registry stays empty until the next day boundary", zap.Error(err))
		return
	}

	for _, rec := range records {
		if rec.Symbol == "" {
			continue
		}
		t.registry.Classify(rec, t.initialPrice(ctx, log, rec.Symbol))
	}

	expected, opened := t.registry.Counts()
	log.Info("Successfully registered IPOs", zap.Int("expected", expected), zap.Int("opened", opened))
}

// initialPrice quotes a symbol being registered. A failed quote counts as not
// trading so the symbol is re-checked by the next cycle.
func (t *Tracker) initialPrice(ctx context.Context, log *zap.Logger, symbol string) decimal.Decimal {
	q, err := t.source.FetchQuote(ctx, symbol)
	if err != nil {
		log.Warn("Initial quote failed, treating IPO as expected",
			zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero
	}
	return q.Current
}

func (t *Tracker) emitStatus(ctx context.Context, state State) {
	sn, ok := t.notifier.(StatusNotifier)
	if !ok {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := sn.NotifyStatus(nctx, StatusEvent{State: state, At: t.now()}); err != nil {
		t.logger.Warn("Status notification failed", zap.String("state", string(state)), zap.Error(err))
	}
}

// Refresh re-reads the calendar for the current window without a day change.
// Tracked symbols keep their state: an expected IPO that now trades is promoted
// and announced like in a polling cycle, and only unseen listings are classified.
// A failed calendar fetch leaves the registry untouched. Refresh is rejected
// while a polling cycle is running.
func (t *Tracker) Refresh(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer t.running.Store(false)

	began := time.Now()
	from, to := t.registry.Window()
	log := t.logger.With(
		zap.String("from", from.Format(DateLayout)),
		zap.String("to", to.Format(DateLayout)),
	)
	log.Info("Manual refresh requested, re-reading IPO calendar")

	t.emitStatus(ctx, StateRegistering)
	defer t.emitStatus(ctx, StateListening)

	if inv, ok := t.source.(CalendarInvalidator); ok {
		inv.InvalidateCalendar()
	}

	records, err := t.source.FetchIPOCalendar(ctx, from, to)
	if err != nil {
		log.Warn("Manual refresh failed, keeping the current registry", zap.Error(err))
		return fmt.Errorf("refresh ipo calendar: %w", err)
	}

	var added, promoted int
	for _, rec := range records {
		rec.Symbol = NormalizeSymbol(rec.Symbol)
		if rec.Symbol == "" {
			continue
		}

		inExpected, inOpened := t.registry.Lookup(rec.Symbol)
		switch {
		case inOpened:
		case inExpected:
			if ok, err := t.check(ctx, rec); err == nil && ok {
				promoted++
			}
		default:
			t.registry.Classify(rec, t.initialPrice(ctx, log, rec.Symbol))
			added++
		}
	}

	if promoted > 0 && t.registry.MarkDayComplete() {
		t.emitDayComplete(ctx)
	}

	expected, opened := t.registry.Counts()
	log.Info("Manual refresh finished",
		zap.Int("added", added),
		zap.Int("promoted", promoted),
		zap.Int("expected", expected),
		zap.Int("opened", opened),
		zap.Duration("elapsed", time.Since(began)),
	)
	return nil
}
