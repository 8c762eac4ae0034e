package study

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
)

// SessionID identifies a persisted study session.
type SessionID struct {
	value string
}

// NewSessionID validates and normalizes a session id.
func NewSessionID(raw string) (SessionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SessionID{}, fmt.Errorf("%w: empty value", ErrInvalidSessionID)
	}
	return SessionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SessionID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id SessionID) IsZero() bool {
	return id.value == ""
}

// ResultsMode controls where settlement results are delivered.
type ResultsMode string

const (
	ResultsModeOff   ResultsMode = "off"
	ResultsModeDM    ResultsMode = "dm"
	ResultsModeGuild ResultsMode = "guild"

	// DefaultResultsMode applies to users who never chose one.
	DefaultResultsMode = ResultsModeDM
)

// ParseResultsMode validates a results mode name.
func ParseResultsMode(raw string) (ResultsMode, error) {
	switch mode := ResultsMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ResultsModeOff, ResultsModeDM, ResultsModeGuild:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResultsMode, raw)
	}
}

// SessionRecordInput is a settled session ready to be inserted.
type SessionRecordInput struct {
	UserID            ledger.UserID
	Length            time.Duration
	VideoLength       time.Duration
	EndedUnixUTC      int64
	CoinTransactionID ledger.TransactionID
}

// SessionRecord is a persisted study session.
type SessionRecord struct {
	SessionID         SessionID
	UserID            ledger.UserID
	Length            time.Duration
	VideoLength       time.Duration
	EndedUnixUTC      int64
	CoinTransactionID ledger.TransactionID
}

// UserTotal is one user's summed session length inside a leaderboard window.
type UserTotal struct {
	UserID ledger.UserID
	Total  time.Duration
}

// Standing is one ranked leaderboard row.
type Standing struct {
	Rank   int
	UserID ledger.UserID
	Total  time.Duration
}

// RewardTrigger pairs a trigger reason with the reward granted for it.
type RewardTrigger struct {
	Reason   string
	RewardID rewards.RewardID
}

// SettlementResult is the immutable outcome of one settled session.
type SettlementResult struct {
	UserID      ledger.UserID
	SessionID   SessionID
	Start       time.Time
	End         time.Time
	Length      time.Duration
	VideoLength time.Duration
	BreakLength time.Duration
	Coins       ledger.Coins

	StreakBefore int
	StreakAfter  int
	// RankBefore and RankAfter are 1-based; 0 means unranked.
	RankBefore int
	RankAfter  int

	// NextVideoReward is the remaining countdown, set only when video was streamed.
	NextVideoReward time.Duration
	Rewards         []RewardTrigger
	ResultsMode     ResultsMode
}

// Store is the persistence contract used by Engine.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	// CoinStore exposes the coin ledger bound to the same transaction.
	CoinStore() ledger.Store

	InsertSession(ctx context.Context, input SessionRecordInput) (SessionID, error)
	GetSession(ctx context.Context, sessionID SessionID) (SessionRecord, error)
	UpdateSessionLengths(ctx context.Context, sessionID SessionID, length time.Duration, videoLength time.Duration) error
	DeleteSession(ctx context.Context, sessionID SessionID) error

	// ListQualifyingSessionEnds returns end times of the user's sessions longer than minLength.
	ListQualifyingSessionEnds(ctx context.Context, userID ledger.UserID, minLength time.Duration) ([]int64, error)
	// SumLengthsSince sums session lengths that ended after sinceUnixUTC, excluding opted-out users.
	SumLengthsSince(ctx context.Context, sinceUnixUTC int64) ([]UserTotal, error)

	GetVideoCountdown(ctx context.Context, userID ledger.UserID) (time.Duration, bool, error)
	SetVideoCountdown(ctx context.Context, userID ledger.UserID, remaining time.Duration) error

	GetResultsMode(ctx context.Context, userID ledger.UserID) (ResultsMode, bool, error)
	SetResultsMode(ctx context.Context, userID ledger.UserID, mode ResultsMode) error
	SetLeaderboardOptOut(ctx context.Context, userID ledger.UserID, optOut bool) error
}

// CoinAppender appends coin deltas inside a caller-owned transaction.
type CoinAppender interface {
	AppendTx(ctx context.Context, transactionStore ledger.Store, userID ledger.UserID, amount ledger.Coins, reason string) (ledger.TransactionID, error)
}

// RewardGranter claims a drawn reward for a user.
type RewardGranter interface {
	Claim(ctx context.Context, userID ledger.UserID, reward rewards.Reward, reason string) (rewards.RewardID, error)
}

// Notifier receives settlement results.
type Notifier interface {
	Deliver(ctx context.Context, result SettlementResult) error
}
