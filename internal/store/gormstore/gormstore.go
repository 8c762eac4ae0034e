package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectBalance     = "balance"
	errorSubjectTransaction = "transaction"
	errorSubjectSession     = "session"
	errorSubjectStanding    = "standing"
	errorSubjectCountdown   = "countdown"
	errorSubjectPreference  = "preference"
	errorSubjectReward      = "reward"
	errorSubjectBooster     = "booster"
	errorSubjectSchema      = "schema"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeMigrate        = "migrate"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"
	errorCodeUpsert         = "upsert"
)

// Store owns the gorm handle shared by the ledger, study and reward stores.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table the stores use.
func (store *Store) AutoMigrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// Ledger returns the coin ledger store.
func (store *Store) Ledger() *LedgerStore {
	return &LedgerStore{db: store.db}
}

// Study returns the session history store.
func (store *Store) Study() *StudyStore {
	return &StudyStore{db: store.db}
}

// Rewards returns the reward claim store.
func (store *Store) Rewards() *RewardStore {
	return &RewardStore{db: store.db}
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func isUniqueConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

var (
	_ ledger.Store  = (*LedgerStore)(nil)
	_ study.Store   = (*StudyStore)(nil)
	_ rewards.Store = (*RewardStore)(nil)
)
