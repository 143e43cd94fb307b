// Package notify delivers tracker events to chat destinations and other sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ipobot/services/tracker"
)

type target struct {
	name     string
	notifier tracker.Notifier
}

// Dispatcher fans tracker events out to every registered destination.
// A failing destination is logged and does not stop delivery to the others.
type Dispatcher struct {
	mu      sync.RWMutex
	targets []target
	logger  *zap.Logger
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger.Named("notify")}
}

// Add registers a destination under name
func (d *Dispatcher) Add(name string, n tracker.Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target{name: name, notifier: n})
}

// Names returns the registered destination names in registration order
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.targets))
	for i, t := range d.targets {
		names[i] = t.name
	}
	return names
}

func (d *Dispatcher) snapshot() []target {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]target(nil), d.targets...)
}

func (d *Dispatcher) each(kind string, fn func(t target) error) error {
	var errs []error
	for _, t := range d.snapshot() {
		if err := fn(t); err != nil {
			d.logger.Error("Delivery failed",
				zap.String("destination", t.name),
				zap.String("event", kind),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

// NotifyPromotion implements tracker.Notifier
func (d *Dispatcher) NotifyPromotion(ctx context.Context, ev tracker.PromotionEvent) error {
	return d.each("promotion", func(t target) error {
		return t.notifier.NotifyPromotion(ctx, ev)
	})
}

// NotifyDayComplete implements tracker.Notifier
func (d *Dispatcher) NotifyDayComplete(ctx context.Context, ev tracker.DayCompleteEvent) error {
	return d.each("day_complete", func(t target) error {
		return t.notifier.NotifyDayComplete(ctx, ev)
	})
}

// NotifyStatus implements tracker.StatusNotifier for destinations that support it
func (d *Dispatcher) NotifyStatus(ctx context.Context, ev tracker.StatusEvent) error {
	return d.each("status", func(t target) error {
		sn, ok := t.notifier.(tracker.StatusNotifier)
		if !ok {
			return nil
		}
		return sn.NotifyStatus(ctx, ev)
	})
}
