package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Coins is a signed coin amount. Deltas may be negative; balances never are.
type Coins int64

// Int64 returns the raw amount.
func (coins Coins) Int64() int64 {
	return int64(coins)
}

// UserID identifies an account owner.
type UserID struct {
	value string
}

// TransactionID identifies one appended coin transaction.
type TransactionID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id TransactionID) IsZero() bool {
	return id.value == ""
}

// TransactionInput is a validated transaction ready to be inserted.
type TransactionInput struct {
	userID         UserID
	amount         Coins
	reason         string
	createdUnixUTC int64
}

// NewTransactionInput validates the fields of a transaction before persistence.
func NewTransactionInput(userID UserID, amount Coins, reason string, createdUnixUTC int64) (TransactionInput, error) {
	if userID.IsZero() {
		return TransactionInput{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	normalizedReason := strings.TrimSpace(reason)
	if normalizedReason == "" {
		return TransactionInput{}, fmt.Errorf("%w: empty value", ErrInvalidReason)
	}
	if len(normalizedReason) > maxReasonLength {
		return TransactionInput{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidReason, maxReasonLength)
	}
	return TransactionInput{
		userID:         userID,
		amount:         amount,
		reason:         normalizedReason,
		createdUnixUTC: createdUnixUTC,
	}, nil
}

// UserID returns the owning user.
func (input TransactionInput) UserID() UserID {
	return input.userID
}

// Amount returns the signed delta.
func (input TransactionInput) Amount() Coins {
	return input.amount
}

// Reason returns the normalized reason.
func (input TransactionInput) Reason() string {
	return input.reason
}

// CreatedUnixUTC returns the creation timestamp.
func (input TransactionInput) CreatedUnixUTC() int64 {
	return input.createdUnixUTC
}

// Transaction is a single immutable line in the coin ledger.
type Transaction struct {
	TransactionID  TransactionID
	UserID         UserID
	Amount         Coins
	Reason         string
	CreatedUnixUTC int64
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	EnsureAccount(ctx context.Context, userID UserID) error
	LockAccount(ctx context.Context, userID UserID) error
	SumBalance(ctx context.Context, userID UserID) (Coins, error)
	InsertTransaction(ctx context.Context, input TransactionInput) (TransactionID, error)
	ListTransactions(ctx context.Context, userID UserID, beforeUnixUTC int64, limit int) ([]Transaction, error)
}
