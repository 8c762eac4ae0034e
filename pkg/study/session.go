package study

import (
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// SessionState is the live timer set of one study session.
// Its accumulators are guarded by a mutex scoped to this session only.
type SessionState struct {
	userID ledger.UserID
	start  time.Time

	mu     sync.Mutex
	video  Accumulator
	breaks Accumulator
	closed bool
	final  ClosedSession
}

// ClosedSession is the frozen view of a SessionState after Close.
type ClosedSession struct {
	UserID      ledger.UserID
	Start       time.Time
	End         time.Time
	Length      time.Duration
	VideoLength time.Duration
	BreakLength time.Duration
}

// SessionSnapshot is a read-only view of a session that is still running.
type SessionSnapshot struct {
	UserID       ledger.UserID
	Start        time.Time
	Elapsed      time.Duration
	VideoLength  time.Duration
	BreakLength  time.Duration
	VideoRunning bool
	OnBreak      bool
}

func newSessionState(userID ledger.UserID, start time.Time) *SessionState {
	return &SessionState{userID: userID, start: start}
}

// NewSyntheticSession builds a closed-accumulator session with an explicit start and
// pre-accumulated video time, for administrative settlement.
func NewSyntheticSession(userID ledger.UserID, start time.Time, video time.Duration) *SessionState {
	state := newSessionState(userID, start)
	state.video.accumulated = video
	return state
}

// UserID returns the session owner.
func (state *SessionState) UserID() ledger.UserID {
	return state.userID
}

// Start returns the instant the session began.
func (state *SessionState) Start() time.Time {
	return state.start
}

// ToggleVideo opens the video accumulator when streaming starts and folds it when streaming stops.
// Toggles after Close are ignored.
func (state *SessionState) ToggleVideo(now func() time.Time, streaming bool) {
	state.toggle(&state.video, now, streaming)
}

// ToggleBreak does the same as ToggleVideo for the break accumulator.
func (state *SessionState) ToggleBreak(now func() time.Time, onBreak bool) {
	state.toggle(&state.breaks, now, onBreak)
}

func (state *SessionState) toggle(accumulator *Accumulator, now func() time.Time, active bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return
	}
	switch {
	case active && !accumulator.Running():
		accumulator.Open(now())
	case !active && accumulator.Running():
		accumulator.Close(now())
	}
}

// Close folds every open accumulator and freezes the session. Calling Close again
// returns the first result.
func (state *SessionState) Close(now func() time.Time) ClosedSession {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return state.final
	}
	end := now()
	state.video.Close(end)
	state.breaks.Close(end)
	length := end.Sub(state.start)
	if length < 0 {
		length = 0
	}
	state.closed = true
	state.final = ClosedSession{
		UserID:      state.userID,
		Start:       state.start,
		End:         end,
		Length:      length,
		VideoLength: state.video.accumulated,
		BreakLength: state.breaks.accumulated,
	}
	return state.final
}

// Snapshot reports the session progress without changing it.
func (state *SessionState) Snapshot(now func() time.Time) SessionSnapshot {
	state.mu.Lock()
	defer state.mu.Unlock()
	at := now()
	if state.closed {
		at = state.final.End
	}
	elapsed := at.Sub(state.start)
	if elapsed < 0 {
		elapsed = 0
	}
	return SessionSnapshot{
		UserID:       state.userID,
		Start:        state.start,
		Elapsed:      elapsed,
		VideoLength:  state.video.Elapsed(at),
		BreakLength:  state.breaks.Elapsed(at),
		VideoRunning: state.video.Running(),
		OnBreak:      state.breaks.Running(),
	}
}
