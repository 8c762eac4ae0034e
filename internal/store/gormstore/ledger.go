package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) EnsureAccount(ctx context.Context, userID ledger.UserID) error {
	user := User{UserID: userID.String(), CreatedUnixUTC: time.Now().UTC().Unix()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

// LockAccount takes a row lock on the user; SQLite serializes writers instead.
func (store *LedgerStore) LockAccount(ctx context.Context, userID ledger.UserID) error {
	var user User
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID.String()).
		Take(&user).Error
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeLock, err)
	}
	return nil
}

func (store *LedgerStore) SumBalance(ctx context.Context, userID ledger.UserID) (ledger.Coins, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&CoinTransaction{}).
		Select("coalesce(sum(amount),0) as total").
		Where("user_id = ?", userID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return ledger.Coins(sum.Total), nil
}

func (store *LedgerStore) InsertTransaction(ctx context.Context, input ledger.TransactionInput) (ledger.TransactionID, error) {
	row := CoinTransaction{
		UserID:         input.UserID().String(),
		Amount:         input.Amount().Int64(),
		Reason:         input.Reason(),
		CreatedUnixUTC: input.CreatedUnixUTC(),
	}
	if row.CreatedUnixUTC == 0 {
		row.CreatedUnixUTC = time.Now().UTC().Unix()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueConflict(err) {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateTransactionID)
	}
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactionID, nil
}

func (store *LedgerStore) ListTransactions(ctx context.Context, userID ledger.UserID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	var rows []CoinTransaction
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND created_unix_utc < ?", userID.String(), beforeUnixUTC).
		Order("created_unix_utc DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapCoinTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func mapCoinTransaction(row CoinTransaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		TransactionID:  transactionID,
		UserID:         userID,
		Amount:         ledger.Coins(row.Amount),
		Reason:         row.Reason,
		CreatedUnixUTC: row.CreatedUnixUTC,
	}, nil
}
