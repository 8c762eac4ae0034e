package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// Kind enumerates reward shapes.
type Kind string

const (
	KindCoins   Kind = "coins"
	KindBooster Kind = "booster"
)

// Reward is a drawn, not yet claimed, reward.
type Reward struct {
	Kind Kind
	// Coins is set for KindCoins.
	Coins ledger.Coins
	// MultiplierPercent is set for KindBooster; 150 means 1.5x.
	MultiplierPercent int
	// Expiration is how long a booster stays active after the claim.
	Expiration time.Duration
}

// CoinReward builds a coin reward.
func CoinReward(amount ledger.Coins) Reward {
	return Reward{Kind: KindCoins, Coins: amount}
}

// BoosterReward builds a booster reward.
func BoosterReward(multiplierPercent int, expiration time.Duration) Reward {
	return Reward{Kind: KindBooster, MultiplierPercent: multiplierPercent, Expiration: expiration}
}

// Validate reports whether the reward can be claimed.
func (reward Reward) Validate() error {
	switch reward.Kind {
	case KindCoins:
		if reward.Coins <= 0 {
			return fmt.Errorf("%w: coin reward must be positive", ErrInvalidReward)
		}
	case KindBooster:
		if reward.MultiplierPercent <= 100 {
			return fmt.Errorf("%w: booster multiplier must exceed 1x", ErrInvalidReward)
		}
		if reward.Expiration <= 0 {
			return fmt.Errorf("%w: booster expiration must be positive", ErrInvalidReward)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidReward, reward.Kind)
	}
	return nil
}

// Description renders the reward the way it is stored in the claim log.
func (reward Reward) Description() string {
	switch reward.Kind {
	case KindCoins:
		return fmt.Sprintf("%d coins", reward.Coins.Int64())
	case KindBooster:
		return fmt.Sprintf("%gx booster (expires in %s)", float64(reward.MultiplierPercent)/100, reward.Expiration)
	default:
		return string(reward.Kind)
	}
}

// RewardID identifies a claimed reward.
type RewardID struct {
	value string
}

// NewRewardID validates and normalizes a reward id.
func NewRewardID(raw string) (RewardID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RewardID{}, fmt.Errorf("%w: empty value", ErrInvalidRewardID)
	}
	return RewardID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RewardID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id RewardID) IsZero() bool {
	return id.value == ""
}

// ClaimInput is one append to the reward claim log.
type ClaimInput struct {
	UserID         ledger.UserID
	Reward         Reward
	Reason         string
	CreatedUnixUTC int64
}

// ClaimedReward is a stored claim log row.
type ClaimedReward struct {
	RewardID       RewardID
	UserID         ledger.UserID
	Kind           Kind
	Description    string
	Reason         string
	CreatedUnixUTC int64
}

// Booster is an active or expired reward multiplier.
type Booster struct {
	UserID            ledger.UserID
	MultiplierPercent int
	ExpiresUnixUTC    int64
}

// Store is the persistence contract used by Service.
type Store interface {
	InsertBooster(ctx context.Context, booster Booster) error
	InsertClaim(ctx context.Context, claim ClaimInput) (RewardID, error)
	GetClaim(ctx context.Context, userID ledger.UserID, rewardID RewardID) (ClaimedReward, error)
	ListActiveBoosters(ctx context.Context, userID ledger.UserID, atUnixUTC int64) ([]Booster, error)
}

// CoinLedger is the coin capability used to pay out coin rewards.
type CoinLedger interface {
	Append(ctx context.Context, userID ledger.UserID, amount ledger.Coins, reason string) (ledger.TransactionID, error)
}
