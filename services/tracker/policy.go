package tracker

import (
	"sync"
	"time"
)

// RecheckPolicy bounds how often an expected IPO is re-checked.
// The zero value re-checks every symbol on every cycle, forever.
type RecheckPolicy struct {
	// MaxAttempts stops checking a symbol for the rest of the day after this many
	// unsuccessful checks. 0 means unbounded.
	MaxAttempts int
	// Backoff is the delay before re-checking a symbol after its first unsuccessful
	// check; it doubles per attempt. 0 disables backoff.
	Backoff time.Duration
	// MaxBackoff caps the doubled delay. 0 means no cap.
	MaxBackoff time.Duration
}

type attemptState struct {
	attempts  int
	nextCheck time.Time
}

// attemptTracker keeps per-symbol recheck state for one day
type attemptTracker struct {
	mu     sync.Mutex
	policy RecheckPolicy
	states map[string]*attemptState
}

func newAttemptTracker(policy RecheckPolicy) *attemptTracker {
	return &attemptTracker{
		policy: policy,
		states: make(map[string]*attemptState),
	}
}

func (a *attemptTracker) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = make(map[string]*attemptState)
}

// due reports whether symbol should be checked at now
func (a *attemptTracker) due(symbol string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.states[symbol]
	if !ok {
		return true
	}
	if a.policy.MaxAttempts > 0 && st.attempts >= a.policy.MaxAttempts {
		return false
	}
	return !now.Before(st.nextCheck)
}

// miss records an unsuccessful check (not trading yet, or a provider error)
func (a *attemptTracker) miss(symbol string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.states[symbol]
	if !ok {
		st = &attemptState{}
		a.states[symbol] = st
	}
	st.attempts++
	st.nextCheck = now.Add(a.policy.delay(st.attempts))
}

// delay returns the wait after the given number of unsuccessful attempts
func (p RecheckPolicy) delay(attempts int) time.Duration {
	if p.Backoff <= 0 || attempts <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
