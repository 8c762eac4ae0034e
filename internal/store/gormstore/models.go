package gormstore

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User mirrors the users table; one row per coin account owner.
type User struct {
	UserID         string `gorm:"column:user_id;primaryKey"`
	CreatedUnixUTC int64  `gorm:"column:created_unix_utc;not null"`
}

func (User) TableName() string { return "users" }

// CoinTransaction mirrors the append-only coin_transactions table.
type CoinTransaction struct {
	TransactionID  string `gorm:"column:transaction_id;size:36;primaryKey"`
	UserID         string `gorm:"column:user_id;not null;index:idx_coin_transactions_user_created,priority:1"`
	Amount         int64  `gorm:"column:amount;not null"`
	Reason         string `gorm:"column:reason;not null"`
	CreatedUnixUTC int64  `gorm:"column:created_unix_utc;not null;index:idx_coin_transactions_user_created,priority:2"`
}

func (CoinTransaction) TableName() string { return "coin_transactions" }

func (transaction *CoinTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// StudySession mirrors the study_sessions table. Lengths are whole seconds.
type StudySession struct {
	SessionID          string `gorm:"column:session_id;size:36;primaryKey"`
	UserID             string `gorm:"column:user_id;not null;index:idx_study_sessions_user_ended,priority:1"`
	LengthSeconds      int64  `gorm:"column:length_seconds;not null"`
	VideoLengthSeconds int64  `gorm:"column:video_length_seconds;not null"`
	EndedUnixUTC       int64  `gorm:"column:ended_unix_utc;not null;index:idx_study_sessions_user_ended,priority:2;index:idx_study_sessions_ended"`
	CoinTransactionID  string `gorm:"column:coin_transaction_id;size:36;not null"`
}

func (StudySession) TableName() string { return "study_sessions" }

func (session *StudySession) BeforeCreate(tx *gorm.DB) error {
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	return nil
}

// VideoRewardCountdown mirrors the video_reward_countdowns table.
type VideoRewardCountdown struct {
	UserID      string `gorm:"column:user_id;primaryKey"`
	SecondsLeft int64  `gorm:"column:seconds_left;not null"`
}

func (VideoRewardCountdown) TableName() string { return "video_reward_countdowns" }

// Reward mirrors the append-only rewards claim log.
type Reward struct {
	RewardID       string         `gorm:"column:reward_id;size:36;primaryKey"`
	UserID         string         `gorm:"column:user_id;not null;index"`
	Kind           string         `gorm:"column:kind;not null"`
	Description    string         `gorm:"column:description;not null"`
	Reason         string         `gorm:"column:reason;not null"`
	Details        datatypes.JSON `gorm:"column:details;not null"`
	CreatedUnixUTC int64          `gorm:"column:created_unix_utc;not null"`
}

func (Reward) TableName() string { return "rewards" }

func (reward *Reward) BeforeCreate(tx *gorm.DB) error {
	if reward.RewardID == "" {
		reward.RewardID = uuid.NewString()
	}
	return nil
}

// Booster mirrors the boosters table.
type Booster struct {
	BoosterID         string `gorm:"column:booster_id;size:36;primaryKey"`
	UserID            string `gorm:"column:user_id;not null;index:idx_boosters_user_expires,priority:1"`
	MultiplierPercent int    `gorm:"column:multiplier_percent;not null"`
	ExpiresUnixUTC    int64  `gorm:"column:expires_unix_utc;not null;index:idx_boosters_user_expires,priority:2"`
}

func (Booster) TableName() string { return "boosters" }

func (booster *Booster) BeforeCreate(tx *gorm.DB) error {
	if booster.BoosterID == "" {
		booster.BoosterID = uuid.NewString()
	}
	return nil
}

// LeaderboardOptOut lists users hidden from the leaderboard.
type LeaderboardOptOut struct {
	UserID string `gorm:"column:user_id;primaryKey"`
}

func (LeaderboardOptOut) TableName() string { return "leaderboard_opt_outs" }

// ResultsPreference stores where a user's settlement results go.
type ResultsPreference struct {
	UserID string `gorm:"column:user_id;primaryKey"`
	Mode   string `gorm:"column:mode;not null"`
}

func (ResultsPreference) TableName() string { return "results_preferences" }

func allModels() []any {
	return []any{
		&User{},
		&CoinTransaction{},
		&StudySession{},
		&VideoRewardCountdown{},
		&Reward{},
		&Booster{},
		&LeaderboardOptOut{},
		&ResultsPreference{},
	}
}
