package study

import "time"

// Accumulator is a start/stop timer for one sub-state of a session.
// It is not safe for concurrent use; SessionState guards it.
type Accumulator struct {
	runningSince time.Time
	running      bool
	accumulated  time.Duration
}

// Open starts accruing time. It reports false when the accumulator was already running.
func (accumulator *Accumulator) Open(now time.Time) bool {
	if accumulator.running {
		return false
	}
	accumulator.runningSince = now
	accumulator.running = true
	return true
}

// Close folds the running interval into the total and returns the deposited duration.
func (accumulator *Accumulator) Close(now time.Time) time.Duration {
	if !accumulator.running {
		return 0
	}
	deposit := now.Sub(accumulator.runningSince)
	if deposit < 0 {
		deposit = 0
	}
	accumulator.accumulated += deposit
	accumulator.running = false
	accumulator.runningSince = time.Time{}
	return deposit
}

// Elapsed returns the accumulated time plus the open interval, if any.
func (accumulator Accumulator) Elapsed(now time.Time) time.Duration {
	if !accumulator.running {
		return accumulator.accumulated
	}
	open := now.Sub(accumulator.runningSince)
	if open < 0 {
		open = 0
	}
	return accumulator.accumulated + open
}

// Running reports whether time is currently accruing.
func (accumulator Accumulator) Running() bool {
	return accumulator.running
}
