package tracker

import "errors"

var (
	// ErrNotFound is returned when promoting a symbol that is not expected.
	// It signals corrupted tracker state, not a provider problem.
	ErrNotFound = errors.New("symbol not in expected set")

	// ErrCycleInProgress is returned when a polling cycle is started while another runs
	ErrCycleInProgress = errors.New("polling cycle already in progress")
)
