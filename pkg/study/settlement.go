package study

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
)

const (
	// DefaultCoinsPerMinute is the settlement rate when none is configured.
	DefaultCoinsPerMinute ledger.Coins = 10

	// ReasonVideoReward is the trigger reason for each consumed video countdown.
	ReasonVideoReward = "Video reward"
	// ReasonDailyReward is the trigger reason for a changed streak.
	ReasonDailyReward = "Daily reward"
)

// Engine settles closed sessions into the ledger, session history and reward log.
type Engine struct {
	store          Store
	coins          CoinAppender
	rewards        RewardGranter
	notifier       Notifier
	nowFn          func() time.Time
	coinsPerMinute ledger.Coins
	logger         OperationLogger

	randomMu sync.Mutex
	random   rewards.RandomSource

	userLocks *keyedMutex
}

// WithCoinsPerMinute overrides the settlement rate.
func WithCoinsPerMinute(rate ledger.Coins) EngineOption {
	return func(engine *Engine) {
		engine.coinsPerMinute = rate
	}
}

// WithRandomSource injects the source used for countdown and reward draws.
func WithRandomSource(random rewards.RandomSource) EngineOption {
	return func(engine *Engine) {
		engine.random = random
	}
}

// NewEngine wires an Engine. Without WithRandomSource a crypto-seeded source is used.
func NewEngine(store Store, coins CoinAppender, rewardGranter RewardGranter, notifier Notifier, now func() time.Time, options ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidEngineConfig)
	}
	if coins == nil {
		return nil, fmt.Errorf("%w: coin ledger dependency is nil", ErrInvalidEngineConfig)
	}
	if rewardGranter == nil {
		return nil, fmt.Errorf("%w: reward dependency is nil", ErrInvalidEngineConfig)
	}
	if notifier == nil {
		return nil, fmt.Errorf("%w: notifier dependency is nil", ErrInvalidEngineConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidEngineConfig)
	}
	engine := &Engine{
		store:          store,
		coins:          coins,
		rewards:        rewardGranter,
		notifier:       notifier,
		nowFn:          now,
		coinsPerMinute: DefaultCoinsPerMinute,
		userLocks:      newKeyedMutex(),
	}
	for _, option := range options {
		if option != nil {
			option(engine)
		}
	}
	if engine.coinsPerMinute < 0 {
		return nil, fmt.Errorf("%w: coins per minute must not be negative", ErrInvalidEngineConfig)
	}
	if engine.random == nil {
		random, err := rewards.NewRandomSource()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEngineConfig, err)
		}
		engine.random = random
	}
	return engine, nil
}

// CoinsFor converts a session length to coins, truncating to whole minutes.
func (engine *Engine) CoinsFor(length time.Duration) ledger.Coins {
	return ledger.Coins(int64(length/time.Minute)) * engine.coinsPerMinute
}

// FinishSession closes the state and settles it. Once the coin credit and session record
// commit, later failures are reported but nothing is rolled back. With notify false the
// result is returned without delivery. Settlements for one user never overlap, whether
// they come from the registry or from administrative entry points.
func (engine *Engine) FinishSession(ctx context.Context, state *SessionState, notify bool) (SettlementResult, error) {
	unlock := engine.userLocks.Lock(state.UserID().String())
	result, err := engine.finishSession(ctx, state, notify)
	unlock()
	engine.logOperation(ctx, OperationLog{
		Operation: operationFinishSession,
		UserID:    state.UserID(),
		SessionID: result.SessionID,
		Length:    result.Length,
		Coins:     result.Coins,
		Error:     err,
	})
	return result, err
}

func (engine *Engine) finishSession(ctx context.Context, state *SessionState, notify bool) (SettlementResult, error) {
	closed := state.Close(engine.nowFn)
	userID := closed.UserID
	length := closed.Length.Truncate(time.Second)
	videoLength := closed.VideoLength.Truncate(time.Second)
	if videoLength > length {
		videoLength = length
	}
	result := SettlementResult{
		UserID:      userID,
		Start:       closed.Start,
		End:         closed.End,
		Length:      length,
		VideoLength: videoLength,
		BreakLength: closed.BreakLength.Truncate(time.Second),
		Coins:       engine.CoinsFor(length),
	}
	windowStart := MonthWindowStart(closed.End)

	var err error
	if result.StreakBefore, result.RankBefore, err = engine.standing(ctx, userID, windowStart); err != nil {
		return result, persistenceFailure(err)
	}

	err = engine.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		transactionID, appendErr := engine.coins.AppendTx(ctx, txStore.CoinStore(), userID, result.Coins, ledger.ReasonStudySession)
		if appendErr != nil {
			return appendErr
		}
		sessionID, insertErr := txStore.InsertSession(ctx, SessionRecordInput{
			UserID:            userID,
			Length:            length,
			VideoLength:       videoLength,
			EndedUnixUTC:      closed.End.Unix(),
			CoinTransactionID: transactionID,
		})
		if insertErr != nil {
			return insertErr
		}
		result.SessionID = sessionID
		return nil
	})
	if err != nil {
		return result, persistenceFailure(err)
	}

	if result.StreakAfter, result.RankAfter, err = engine.standing(ctx, userID, windowStart); err != nil {
		return result, persistenceFailure(err)
	}

	reasons, remaining, err := engine.depositVideo(ctx, userID, videoLength)
	if err != nil {
		return result, persistenceFailure(err)
	}
	if videoLength > 0 {
		result.NextVideoReward = remaining
	}
	if result.StreakBefore != result.StreakAfter {
		reasons = append(reasons, ReasonDailyReward)
	}

	for _, reason := range reasons {
		reward := engine.drawReward()
		rewardID, claimErr := engine.rewards.Claim(ctx, userID, reward, reason)
		if claimErr != nil {
			return result, persistenceFailure(claimErr)
		}
		result.Rewards = append(result.Rewards, RewardTrigger{Reason: reason, RewardID: rewardID})
	}

	if !notify {
		return result, nil
	}

	mode, err := engine.ResultsMode(ctx, userID)
	if err != nil {
		return result, persistenceFailure(err)
	}
	result.ResultsMode = mode
	if mode == ResultsModeOff {
		return result, nil
	}
	deliverErr := engine.notifier.Deliver(ctx, result)
	engine.logOperation(ctx, OperationLog{
		Operation: operationDeliverResults,
		UserID:    userID,
		SessionID: result.SessionID,
		Reason:    string(mode),
		Error:     deliverErr,
	})
	return result, nil
}

// depositVideo feeds the session's video time into the persistent countdown and returns
// one trigger reason per consumed countdown.
func (engine *Engine) depositVideo(ctx context.Context, userID ledger.UserID, videoLength time.Duration) ([]string, time.Duration, error) {
	countdown, found, err := engine.store.GetVideoCountdown(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		countdown = engine.drawCountdown()
	}
	remaining, triggers := DepositVideo(countdown, videoLength, engine.drawCountdown)
	if err := engine.store.SetVideoCountdown(ctx, userID, remaining); err != nil {
		return nil, 0, err
	}
	reasons := make([]string, 0, triggers+1)
	for index := 0; index < triggers; index++ {
		reasons = append(reasons, ReasonVideoReward)
	}
	return reasons, remaining, nil
}

// standing reads the user's streak and monthly rank.
func (engine *Engine) standing(ctx context.Context, userID ledger.UserID, windowStart time.Time) (int, int, error) {
	ends, err := engine.store.ListQualifyingSessionEnds(ctx, userID, QualifyingSessionLength)
	if err != nil {
		return 0, 0, err
	}
	totals, err := engine.store.SumLengthsSince(ctx, windowStart.Unix())
	if err != nil {
		return 0, 0, err
	}
	return Streak(QualifyingDays(ends)), RankOf(totals, userID), nil
}

func (engine *Engine) drawCountdown() time.Duration {
	engine.randomMu.Lock()
	defer engine.randomMu.Unlock()
	return DrawCountdown(engine.random)
}

func (engine *Engine) drawReward() rewards.Reward {
	engine.randomMu.Lock()
	defer engine.randomMu.Unlock()
	return rewards.Draw(engine.random)
}

func (engine *Engine) logOperation(ctx context.Context, entry OperationLog) {
	if engine.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	engine.logger.LogOperation(ctx, entry)
}

func persistenceFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}
