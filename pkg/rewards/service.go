package rewards

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// Service grants rewards and keeps the append-only claim log.
type Service struct {
	store  Store
	coins  CoinLedger
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, coins CoinLedger, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if coins == nil {
		return nil, fmt.Errorf("%w: coin ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, coins: coins, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Claim pays out the reward and appends it to the claim log.
// Coin payouts and the claim row are separate writes; a failed log write
// leaves the payout in place.
func (service *Service) Claim(ctx context.Context, userID ledger.UserID, reward Reward, reason string) (RewardID, error) {
	rewardID, err := service.claim(ctx, userID, reward, reason)
	service.logOperation(ctx, OperationLog{
		Operation: operationClaim,
		UserID:    userID,
		RewardID:  rewardID,
		Reward:    reward,
		Reason:    reason,
		Error:     err,
	})
	return rewardID, err
}

func (service *Service) claim(ctx context.Context, userID ledger.UserID, reward Reward, reason string) (RewardID, error) {
	if userID.IsZero() {
		return RewardID{}, fmt.Errorf("%w: empty value", ledger.ErrInvalidUserID)
	}
	if strings.TrimSpace(reason) == "" {
		return RewardID{}, fmt.Errorf("%w: empty value", ErrInvalidReason)
	}
	if err := reward.Validate(); err != nil {
		return RewardID{}, err
	}
	nowUnixUTC := service.nowFn()
	switch reward.Kind {
	case KindCoins:
		if _, err := service.coins.Append(ctx, userID, reward.Coins, ledger.ReasonReward); err != nil {
			return RewardID{}, err
		}
	case KindBooster:
		booster := Booster{
			UserID:            userID,
			MultiplierPercent: reward.MultiplierPercent,
			ExpiresUnixUTC:    nowUnixUTC + int64(reward.Expiration.Seconds()),
		}
		if err := service.store.InsertBooster(ctx, booster); err != nil {
			return RewardID{}, err
		}
	}
	return service.store.InsertClaim(ctx, ClaimInput{
		UserID:         userID,
		Reward:         reward,
		Reason:         strings.TrimSpace(reason),
		CreatedUnixUTC: nowUnixUTC,
	})
}

// Reveal returns a claimed reward owned by the user.
func (service *Service) Reveal(ctx context.Context, userID ledger.UserID, rewardID RewardID) (ClaimedReward, error) {
	return service.store.GetClaim(ctx, userID, rewardID)
}

// ActiveBoosters lists boosters that have not expired yet.
func (service *Service) ActiveBoosters(ctx context.Context, userID ledger.UserID) ([]Booster, error) {
	return service.store.ListActiveBoosters(ctx, userID, service.nowFn())
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
