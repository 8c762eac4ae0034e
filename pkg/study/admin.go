package study

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// SimulateSession settles a synthetic session of the given length and video time that ends now.
// Calls for the same user are serialized.
func (engine *Engine) SimulateSession(ctx context.Context, userID ledger.UserID, length time.Duration, videoLength time.Duration, notify bool) (SettlementResult, error) {
	result, err := engine.simulateSession(ctx, userID, length, videoLength, notify)
	engine.logOperation(ctx, OperationLog{
		Operation: operationSimulateSession,
		UserID:    userID,
		SessionID: result.SessionID,
		Length:    length,
		Coins:     result.Coins,
		Error:     err,
	})
	return result, err
}

func (engine *Engine) simulateSession(ctx context.Context, userID ledger.UserID, length time.Duration, videoLength time.Duration, notify bool) (SettlementResult, error) {
	if userID.IsZero() {
		return SettlementResult{}, fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	if length <= 0 {
		return SettlementResult{}, fmt.Errorf("%w: length must be positive", ErrInvalidSimulationInput)
	}
	if videoLength < 0 || videoLength > length {
		return SettlementResult{}, fmt.Errorf("%w: video length must be between zero and the session length", ErrInvalidSimulationInput)
	}
	unlock := engine.userLocks.Lock(userID.String())
	defer unlock()
	state := NewSyntheticSession(userID, engine.nowFn().Add(-length), videoLength)
	return engine.finishSession(ctx, state, notify)
}

// DeductSession shortens a recorded session to keepLength and keepVideo. A keepLength of
// zero deletes the record. Coins already credited are not taken back.
func (engine *Engine) DeductSession(ctx context.Context, userID ledger.UserID, sessionID SessionID, keepLength time.Duration, keepVideo time.Duration) error {
	err := engine.deductSession(ctx, userID, sessionID, keepLength, keepVideo)
	engine.logOperation(ctx, OperationLog{
		Operation: operationDeductSession,
		UserID:    userID,
		SessionID: sessionID,
		Length:    keepLength,
		Error:     err,
	})
	return err
}

func (engine *Engine) deductSession(ctx context.Context, userID ledger.UserID, sessionID SessionID, keepLength time.Duration, keepVideo time.Duration) error {
	if userID.IsZero() {
		return fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	if sessionID.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidSessionID)
	}
	if keepLength < 0 || keepVideo < 0 {
		return fmt.Errorf("%w: kept lengths must not be negative", ErrInvalidSimulationInput)
	}
	unlock := engine.userLocks.Lock(userID.String())
	defer unlock()

	record, err := engine.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrUnknownSession) {
			return err
		}
		return persistenceFailure(err)
	}
	if record.UserID != userID {
		return ErrUnknownSession
	}
	if keepLength == 0 {
		if err := engine.store.DeleteSession(ctx, sessionID); err != nil {
			return persistenceFailure(err)
		}
		return nil
	}
	if keepVideo > record.VideoLength || keepVideo > keepLength {
		return fmt.Errorf("%w: kept video exceeds the recorded video or the kept length", ErrInvalidSimulationInput)
	}
	if keepLength > record.Length {
		return fmt.Errorf("%w: kept length exceeds the recorded length", ErrInvalidSimulationInput)
	}
	if err := engine.store.UpdateSessionLengths(ctx, sessionID, keepLength, keepVideo); err != nil {
		return persistenceFailure(err)
	}
	return nil
}

// ResultsMode returns the user's delivery preference, DefaultResultsMode when unset.
func (engine *Engine) ResultsMode(ctx context.Context, userID ledger.UserID) (ResultsMode, error) {
	mode, found, err := engine.store.GetResultsMode(ctx, userID)
	if err != nil {
		return "", err
	}
	if !found {
		return DefaultResultsMode, nil
	}
	return mode, nil
}

// SetResultsMode stores the user's delivery preference.
func (engine *Engine) SetResultsMode(ctx context.Context, userID ledger.UserID, mode ResultsMode) error {
	if userID.IsZero() {
		return fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	if _, err := ParseResultsMode(string(mode)); err != nil {
		return err
	}
	return engine.store.SetResultsMode(ctx, userID, mode)
}

// SetLeaderboardOptOut hides or shows the user on the leaderboard.
func (engine *Engine) SetLeaderboardOptOut(ctx context.Context, userID ledger.UserID, optOut bool) error {
	if userID.IsZero() {
		return fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	return engine.store.SetLeaderboardOptOut(ctx, userID, optOut)
}

// Leaderboard returns the current month's top rows.
func (engine *Engine) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	totals, err := engine.store.SumLengthsSince(ctx, MonthWindowStart(engine.nowFn()).Unix())
	if err != nil {
		return nil, err
	}
	return Standings(totals, limit), nil
}

// Standing returns the user's current streak and monthly rank (0 when unranked).
func (engine *Engine) Standing(ctx context.Context, userID ledger.UserID) (int, int, error) {
	return engine.standing(ctx, userID, MonthWindowStart(engine.nowFn()))
}
