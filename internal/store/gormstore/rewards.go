package gormstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RewardStore implements rewards.Store using GORM.
type RewardStore struct {
	db *gorm.DB
}

type rewardDetails struct {
	Coins             int64 `json:"coins,omitempty"`
	MultiplierPercent int   `json:"multiplier_percent,omitempty"`
	ExpirationSeconds int64 `json:"expiration_seconds,omitempty"`
}

func (store *RewardStore) InsertBooster(ctx context.Context, booster rewards.Booster) error {
	row := Booster{
		UserID:            booster.UserID.String(),
		MultiplierPercent: booster.MultiplierPercent,
		ExpiresUnixUTC:    booster.ExpiresUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectBooster, errorCodeInsert, err)
	}
	return nil
}

func (store *RewardStore) InsertClaim(ctx context.Context, claim rewards.ClaimInput) (rewards.RewardID, error) {
	details, err := json.Marshal(rewardDetails{
		Coins:             claim.Reward.Coins.Int64(),
		MultiplierPercent: claim.Reward.MultiplierPercent,
		ExpirationSeconds: int64(claim.Reward.Expiration.Seconds()),
	})
	if err != nil {
		return rewards.RewardID{}, wrapStoreError(errorSubjectReward, errorCodeInvalid, err)
	}
	row := Reward{
		UserID:         claim.UserID.String(),
		Kind:           string(claim.Reward.Kind),
		Description:    claim.Reward.Description(),
		Reason:         claim.Reason,
		Details:        datatypes.JSON(details),
		CreatedUnixUTC: claim.CreatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return rewards.RewardID{}, wrapStoreError(errorSubjectReward, errorCodeInsert, err)
	}
	rewardID, err := rewards.NewRewardID(row.RewardID)
	if err != nil {
		return rewards.RewardID{}, wrapStoreError(errorSubjectReward, errorCodeInvalid, err)
	}
	return rewardID, nil
}

func (store *RewardStore) GetClaim(ctx context.Context, userID ledger.UserID, rewardID rewards.RewardID) (rewards.ClaimedReward, error) {
	var row Reward
	err := store.db.WithContext(ctx).
		Where("reward_id = ? AND user_id = ?", rewardID.String(), userID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rewards.ClaimedReward{}, wrapStoreError(errorSubjectReward, errorCodeGet, rewards.ErrUnknownReward)
		}
		return rewards.ClaimedReward{}, wrapStoreError(errorSubjectReward, errorCodeGet, err)
	}
	parsedRewardID, err := rewards.NewRewardID(row.RewardID)
	if err != nil {
		return rewards.ClaimedReward{}, wrapStoreError(errorSubjectReward, errorCodeInvalid, err)
	}
	return rewards.ClaimedReward{
		RewardID:       parsedRewardID,
		UserID:         userID,
		Kind:           rewards.Kind(row.Kind),
		Description:    row.Description,
		Reason:         row.Reason,
		CreatedUnixUTC: row.CreatedUnixUTC,
	}, nil
}

func (store *RewardStore) ListActiveBoosters(ctx context.Context, userID ledger.UserID, atUnixUTC int64) ([]rewards.Booster, error) {
	var rows []Booster
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND expires_unix_utc > ?", userID.String(), atUnixUTC).
		Order("expires_unix_utc ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooster, errorCodeList, err)
	}
	boosters := make([]rewards.Booster, 0, len(rows))
	for _, row := range rows {
		boosters = append(boosters, rewards.Booster{
			UserID:            userID,
			MultiplierPercent: row.MultiplierPercent,
			ExpiresUnixUTC:    row.ExpiresUnixUTC,
		})
	}
	return boosters, nil
}
