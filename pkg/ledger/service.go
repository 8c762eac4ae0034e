package ledger

import (
	"context"
	"fmt"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the running sum of every transaction for the user.
func (service *Service) Balance(ctx context.Context, userID UserID) (Coins, error) {
	if err := service.store.EnsureAccount(ctx, userID); err != nil {
		return 0, err
	}
	balance, err := service.store.SumBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, WrapError("service", "balance", "negative", ErrInvalidBalance)
	}
	return balance, nil
}

// Append writes a signed delta in its own transaction. A delta that would drive
// the balance below zero is rejected with ErrInsufficientFunds and nothing is written.
func (service *Service) Append(ctx context.Context, userID UserID, amount Coins, reason string) (TransactionID, error) {
	var transactionID TransactionID
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var appendErr error
		transactionID, appendErr = service.appendWithin(ctx, transactionStore, userID, amount, reason)
		return appendErr
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationAppend,
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
		Error:         err,
	})
	if err != nil {
		return TransactionID{}, err
	}
	return transactionID, nil
}

// AppendTx performs the guarded append inside a transaction owned by the caller.
// The caller commits or rolls back; nothing here opens a transaction.
func (service *Service) AppendTx(ctx context.Context, transactionStore Store, userID UserID, amount Coins, reason string) (TransactionID, error) {
	transactionID, err := service.appendWithin(ctx, transactionStore, userID, amount, reason)
	service.logOperation(ctx, OperationLog{
		Operation:     operationAppend,
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
		Error:         err,
	})
	return transactionID, err
}

// ListTransactions lists ledger transactions for a user before a cutoff time, newest first.
func (service *Service) ListTransactions(ctx context.Context, userID UserID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	normalizedLimit, err := normalizeListLimit(limit)
	if err != nil {
		return nil, err
	}
	if beforeUnixUTC <= 0 {
		beforeUnixUTC = service.nowFn() + 1
	}
	return service.store.ListTransactions(ctx, userID, beforeUnixUTC, normalizedLimit)
}

func (service *Service) appendWithin(ctx context.Context, transactionStore Store, userID UserID, amount Coins, reason string) (TransactionID, error) {
	input, err := NewTransactionInput(userID, amount, reason, service.nowFn())
	if err != nil {
		return TransactionID{}, err
	}
	if err := transactionStore.EnsureAccount(ctx, userID); err != nil {
		return TransactionID{}, err
	}
	if err := transactionStore.LockAccount(ctx, userID); err != nil {
		return TransactionID{}, err
	}
	balance, err := transactionStore.SumBalance(ctx, userID)
	if err != nil {
		return TransactionID{}, err
	}
	if balance+amount < 0 {
		return TransactionID{}, ErrInsufficientFunds
	}
	return transactionStore.InsertTransaction(ctx, input)
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

func normalizeListLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultListLimit, nil
	}
	if limit < 0 || limit > maxListLimit {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidListLimit, maxListLimit)
	}
	return limit, nil
}
