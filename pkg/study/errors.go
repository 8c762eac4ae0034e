package study

import "errors"

// Domain-level error values returned by the study package.
var (
	// ErrDuplicateStart is returned by Tracker.Begin when the user already has an active session.
	ErrDuplicateStart = errors.New("session already active")
	// ErrMissingActiveSession is returned when an operation needs an active session and none exists.
	ErrMissingActiveSession   = errors.New("no active session")
	ErrInvalidSimulationInput = errors.New("invalid simulation input")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrUnknownSession         = errors.New("unknown session")
	ErrInvalidSessionID       = errors.New("invalid session id")
	ErrInvalidResultsMode     = errors.New("invalid results mode")
	ErrInvalidEngineConfig    = errors.New("invalid engine config")
)
