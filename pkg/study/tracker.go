package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// Settler settles a session that has left the registry.
type Settler interface {
	FinishSession(ctx context.Context, state *SessionState, notify bool) (SettlementResult, error)
}

// PresenceOutcome reports what a presence event did.
type PresenceOutcome struct {
	Transition Transition
	// Settled is true when the event ended a session and settlement succeeded.
	Settled bool
	Result  SettlementResult
}

// Tracker owns the registry of live sessions, at most one per user.
type Tracker struct {
	policy  ChannelPolicy
	settler Settler
	nowFn   func() time.Time

	mu       sync.Mutex
	sessions map[string]*SessionState
}

// NewTracker wires a Tracker with an empty registry.
func NewTracker(policy ChannelPolicy, settler Settler, now func() time.Time) (*Tracker, error) {
	if settler == nil {
		return nil, fmt.Errorf("%w: settler dependency is nil", ErrInvalidEngineConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidEngineConfig)
	}
	return &Tracker{
		policy:   policy,
		settler:  settler,
		nowFn:    now,
		sessions: make(map[string]*SessionState),
	}, nil
}

// Begin registers a new session starting now. An existing session is left untouched
// and ErrDuplicateStart is returned.
func (tracker *Tracker) Begin(userID ledger.UserID) error {
	if userID.IsZero() {
		return fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if _, exists := tracker.sessions[userID.String()]; exists {
		return ErrDuplicateStart
	}
	tracker.sessions[userID.String()] = newSessionState(userID, tracker.nowFn())
	return nil
}

// End removes the user's session and settles it with notification enabled.
func (tracker *Tracker) End(ctx context.Context, userID ledger.UserID) (SettlementResult, error) {
	state, found := tracker.remove(userID)
	if !found {
		return SettlementResult{}, ErrMissingActiveSession
	}
	return tracker.settler.FinishSession(ctx, state, true)
}

// UpdateVideo toggles the video accumulator of the user's active session.
func (tracker *Tracker) UpdateVideo(userID ledger.UserID, streaming bool) error {
	state, found := tracker.lookup(userID)
	if !found {
		return ErrMissingActiveSession
	}
	state.ToggleVideo(tracker.nowFn, streaming)
	return nil
}

// SetBreak toggles the break accumulator of the user's active session.
func (tracker *Tracker) SetBreak(userID ledger.UserID, onBreak bool) error {
	state, found := tracker.lookup(userID)
	if !found {
		return ErrMissingActiveSession
	}
	state.ToggleBreak(tracker.nowFn, onBreak)
	return nil
}

// HandlePresence applies the session transition implied by the event, then the video toggle.
// Duplicate starts and ends without a session are ignored.
func (tracker *Tracker) HandlePresence(ctx context.Context, event PresenceEvent) (PresenceOutcome, error) {
	outcome := PresenceOutcome{Transition: tracker.policy.Classify(event.Old, event.New)}
	switch outcome.Transition {
	case TransitionStart:
		if err := tracker.Begin(event.UserID); err != nil && !errors.Is(err, ErrDuplicateStart) {
			return outcome, err
		}
	case TransitionEnd:
		result, err := tracker.End(ctx, event.UserID)
		switch {
		case errors.Is(err, ErrMissingActiveSession):
		case err != nil:
			return outcome, err
		default:
			outcome.Settled = true
			outcome.Result = result
		}
	}
	if err := tracker.UpdateVideo(event.UserID, event.New.Streaming()); err != nil && !errors.Is(err, ErrMissingActiveSession) {
		return outcome, err
	}
	return outcome, nil
}

// Active returns a snapshot of the user's running session.
func (tracker *Tracker) Active(userID ledger.UserID) (SessionSnapshot, bool) {
	state, found := tracker.lookup(userID)
	if !found {
		return SessionSnapshot{}, false
	}
	return state.Snapshot(tracker.nowFn), true
}

// ActiveCount returns the number of running sessions.
func (tracker *Tracker) ActiveCount() int {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return len(tracker.sessions)
}

func (tracker *Tracker) lookup(userID ledger.UserID) (*SessionState, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	state, found := tracker.sessions[userID.String()]
	return state, found
}

func (tracker *Tracker) remove(userID ledger.UserID) (*SessionState, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	state, found := tracker.sessions[userID.String()]
	if found {
		delete(tracker.sessions, userID.String())
	}
	return state, found
}
