package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StudyStore implements study.Store using GORM.
type StudyStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *StudyStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore study.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &StudyStore{db: transaction})
	})
}

// CoinStore returns a ledger store bound to the same handle, so inside WithTx both
// share one transaction.
func (store *StudyStore) CoinStore() ledger.Store {
	return &LedgerStore{db: store.db}
}

func (store *StudyStore) InsertSession(ctx context.Context, input study.SessionRecordInput) (study.SessionID, error) {
	row := StudySession{
		UserID:             input.UserID.String(),
		LengthSeconds:      seconds(input.Length),
		VideoLengthSeconds: seconds(input.VideoLength),
		EndedUnixUTC:       input.EndedUnixUTC,
		CoinTransactionID:  input.CoinTransactionID.String(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return study.SessionID{}, wrapStoreError(errorSubjectSession, errorCodeInsert, err)
	}
	sessionID, err := study.NewSessionID(row.SessionID)
	if err != nil {
		return study.SessionID{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return sessionID, nil
}

func (store *StudyStore) GetSession(ctx context.Context, sessionID study.SessionID) (study.SessionRecord, error) {
	var row StudySession
	err := store.db.WithContext(ctx).
		Where("session_id = ?", sessionID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return study.SessionRecord{}, wrapStoreError(errorSubjectSession, errorCodeGet, study.ErrUnknownSession)
		}
		return study.SessionRecord{}, wrapStoreError(errorSubjectSession, errorCodeGet, err)
	}
	record, err := mapStudySession(row)
	if err != nil {
		return study.SessionRecord{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return record, nil
}

func (store *StudyStore) UpdateSessionLengths(ctx context.Context, sessionID study.SessionID, length time.Duration, videoLength time.Duration) error {
	result := store.db.WithContext(ctx).
		Model(&StudySession{}).
		Where("session_id = ?", sessionID.String()).
		Updates(map[string]any{
			"length_seconds":       seconds(length),
			"video_length_seconds": seconds(videoLength),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSession, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSession, errorCodeUpdate, study.ErrUnknownSession)
	}
	return nil
}

func (store *StudyStore) DeleteSession(ctx context.Context, sessionID study.SessionID) error {
	result := store.db.WithContext(ctx).
		Where("session_id = ?", sessionID.String()).
		Delete(&StudySession{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSession, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSession, errorCodeDelete, study.ErrUnknownSession)
	}
	return nil
}

func (store *StudyStore) ListQualifyingSessionEnds(ctx context.Context, userID ledger.UserID, minLength time.Duration) ([]int64, error) {
	var ends []int64
	err := store.db.WithContext(ctx).
		Model(&StudySession{}).
		Where("user_id = ? AND length_seconds > ?", userID.String(), seconds(minLength)).
		Order("ended_unix_utc DESC").
		Pluck("ended_unix_utc", &ends).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectStanding, errorCodeList, err)
	}
	return ends, nil
}

type userTotalRow struct {
	UserID string
	Total  int64
}

func (store *StudyStore) SumLengthsSince(ctx context.Context, sinceUnixUTC int64) ([]study.UserTotal, error) {
	optedOut := store.db.Model(&LeaderboardOptOut{}).Select("user_id")
	var rows []userTotalRow
	err := store.db.WithContext(ctx).
		Model(&StudySession{}).
		Select("user_id, coalesce(sum(length_seconds),0) as total").
		Where("ended_unix_utc > ?", sinceUnixUTC).
		Where("user_id NOT IN (?)", optedOut).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectStanding, errorCodeSum, err)
	}
	totals := make([]study.UserTotal, 0, len(rows))
	for _, row := range rows {
		userID, err := ledger.NewUserID(row.UserID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectStanding, errorCodeInvalid, err)
		}
		totals = append(totals, study.UserTotal{UserID: userID, Total: time.Duration(row.Total) * time.Second})
	}
	return totals, nil
}

func (store *StudyStore) GetVideoCountdown(ctx context.Context, userID ledger.UserID) (time.Duration, bool, error) {
	var row VideoRewardCountdown
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStoreError(errorSubjectCountdown, errorCodeGet, err)
	}
	return time.Duration(row.SecondsLeft) * time.Second, true, nil
}

func (store *StudyStore) SetVideoCountdown(ctx context.Context, userID ledger.UserID, remaining time.Duration) error {
	row := VideoRewardCountdown{UserID: userID.String(), SecondsLeft: seconds(remaining)}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seconds_left"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectCountdown, errorCodeUpsert, err)
	}
	return nil
}

func (store *StudyStore) GetResultsMode(ctx context.Context, userID ledger.UserID) (study.ResultsMode, bool, error) {
	var row ResultsPreference
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStoreError(errorSubjectPreference, errorCodeGet, err)
	}
	mode, err := study.ParseResultsMode(row.Mode)
	if err != nil {
		return "", false, wrapStoreError(errorSubjectPreference, errorCodeInvalid, err)
	}
	return mode, true, nil
}

func (store *StudyStore) SetResultsMode(ctx context.Context, userID ledger.UserID, mode study.ResultsMode) error {
	row := ResultsPreference{UserID: userID.String(), Mode: string(mode)}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"mode"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectPreference, errorCodeUpsert, err)
	}
	return nil
}

func (store *StudyStore) SetLeaderboardOptOut(ctx context.Context, userID ledger.UserID, optOut bool) error {
	if !optOut {
		err := store.db.WithContext(ctx).
			Where("user_id = ?", userID.String()).
			Delete(&LeaderboardOptOut{}).Error
		if err != nil {
			return wrapStoreError(errorSubjectPreference, errorCodeDelete, err)
		}
		return nil
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&LeaderboardOptOut{UserID: userID.String()}).Error
	if err != nil {
		return wrapStoreError(errorSubjectPreference, errorCodeCreate, err)
	}
	return nil
}

func mapStudySession(row StudySession) (study.SessionRecord, error) {
	sessionID, err := study.NewSessionID(row.SessionID)
	if err != nil {
		return study.SessionRecord{}, err
	}
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return study.SessionRecord{}, err
	}
	var transactionID ledger.TransactionID
	if row.CoinTransactionID != "" {
		transactionID, err = ledger.NewTransactionID(row.CoinTransactionID)
		if err != nil {
			return study.SessionRecord{}, err
		}
	}
	return study.SessionRecord{
		SessionID:         sessionID,
		UserID:            userID,
		Length:            time.Duration(row.LengthSeconds) * time.Second,
		VideoLength:       time.Duration(row.VideoLengthSeconds) * time.Second,
		EndedUnixUTC:      row.EndedUnixUTC,
		CoinTransactionID: transactionID,
	}, nil
}

func seconds(duration time.Duration) int64 {
	return int64(duration / time.Second)
}
