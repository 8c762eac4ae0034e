package pgstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolationCode   = "23505"
	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectBalance     = "balance"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeSum            = "sum"

	sqlEnsureUser = `
		insert into users(user_id, created_unix_utc) values($1, extract(epoch from now())::bigint)
		on conflict (user_id) do nothing
	`

	sqlLockUser = `
		select user_id from users where user_id = $1 for update
	`

	sqlSumBalance = `
		select coalesce(sum(amount),0) from coin_transactions where user_id = $1
	`

	sqlInsertTransaction = `
		insert into coin_transactions(transaction_id, user_id, amount, reason, created_unix_utc)
		values(gen_random_uuid()::text, $1, $2, $3, $4)
		returning transaction_id
	`

	sqlListTransactionsBefore = `
		select transaction_id, user_id, amount, reason, created_unix_utc
		from coin_transactions
		where user_id = $1 and created_unix_utc < $2
		order by created_unix_utc desc
		limit $3
	`
)

// querier is the part of pgxpool.Pool and pgx.Tx the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	queries
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx, queries: queries{db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

type queries struct {
	db querier
}

func (q queries) EnsureAccount(ctx context.Context, userID ledger.UserID) error {
	if _, err := q.db.Exec(ctx, sqlEnsureUser, userID.String()); err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (q queries) LockAccount(ctx context.Context, userID ledger.UserID) error {
	var locked string
	if err := q.db.QueryRow(ctx, sqlLockUser, userID.String()).Scan(&locked); err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeLock, err)
	}
	return nil
}

func (q queries) SumBalance(ctx context.Context, userID ledger.UserID) (ledger.Coins, error) {
	var sum int64
	if err := q.db.QueryRow(ctx, sqlSumBalance, userID.String()).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return ledger.Coins(sum), nil
}

func (q queries) InsertTransaction(ctx context.Context, input ledger.TransactionInput) (ledger.TransactionID, error) {
	var transactionIDValue string
	err := q.db.QueryRow(ctx, sqlInsertTransaction,
		input.UserID().String(),
		input.Amount().Int64(),
		input.Reason(),
		input.CreatedUnixUTC(),
	).Scan(&transactionIDValue)
	if isUniqueConflict(err) {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateTransactionID)
	}
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	transactionID, err := ledger.NewTransactionID(transactionIDValue)
	if err != nil {
		return ledger.TransactionID{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactionID, nil
}

func (q queries) ListTransactions(ctx context.Context, userID ledger.UserID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	rows, err := q.db.Query(ctx, sqlListTransactionsBefore, userID.String(), beforeUnixUTC, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()
	transactions, err := scanTransactions(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactions, nil
}

func scanTransactions(rows pgx.Rows) ([]ledger.Transaction, error) {
	transactions := make([]ledger.Transaction, 0, 32)
	for rows.Next() {
		var (
			transactionIDValue string
			userIDValue        string
			amountValue        int64
			reasonValue        string
			createdUnixUTC     int64
		)
		if err := rows.Scan(&transactionIDValue, &userIDValue, &amountValue, &reasonValue, &createdUnixUTC); err != nil {
			return nil, err
		}
		transactionID, err := ledger.NewTransactionID(transactionIDValue)
		if err != nil {
			return nil, err
		}
		userID, err := ledger.NewUserID(userIDValue)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, ledger.Transaction{
			TransactionID:  transactionID,
			UserID:         userID,
			Amount:         ledger.Coins(amountValue),
			Reason:         reasonValue,
			CreatedUnixUTC: createdUnixUTC,
		})
	}
	return transactions, rows.Err()
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Store = (*TxStore)(nil)
)
