// Package oplog adapts the domain operation loggers to zap.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"go.uber.org/zap"
)

// Logger implements the ledger, rewards and study OperationLogger interfaces.
type Logger struct {
	logger *zap.Logger
}

var (
	_ ledger.OperationLogger  = (*Logger)(nil)
	_ rewards.OperationLogger = rewardsAdapter{}
	_ study.OperationLogger   = studyAdapter{}
)

// New wraps a zap logger; nil discards output.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// Ledger returns the coin ledger adapter.
func (logger *Logger) Ledger() ledger.OperationLogger { return ledgerAdapter{logger: logger.logger} }

// Rewards returns the reward ledger adapter.
func (logger *Logger) Rewards() rewards.OperationLogger { return rewardsAdapter{logger: logger.logger} }

// Study returns the settlement engine adapter.
func (logger *Logger) Study() study.OperationLogger { return studyAdapter{logger: logger.logger} }

// LogOperation satisfies ledger.OperationLogger directly.
func (logger *Logger) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	ledgerAdapter{logger: logger.logger}.LogOperation(ctx, entry)
}

type ledgerAdapter struct{ logger *zap.Logger }

func (adapter ledgerAdapter) LogOperation(_ context.Context, entry ledger.OperationLog) {
	emit(adapter.logger, "ledger", entry.Operation, entry.Status, entry.Error,
		zap.String("user_id", entry.UserID.String()),
		zap.String("transaction_id", entry.TransactionID.String()),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("reason", entry.Reason),
	)
}

type rewardsAdapter struct{ logger *zap.Logger }

func (adapter rewardsAdapter) LogOperation(_ context.Context, entry rewards.OperationLog) {
	emit(adapter.logger, "rewards", entry.Operation, entry.Status, entry.Error,
		zap.String("user_id", entry.UserID.String()),
		zap.String("reward_id", entry.RewardID.String()),
		zap.String("reward", entry.Reward.Description()),
		zap.String("reason", entry.Reason),
	)
}

type studyAdapter struct{ logger *zap.Logger }

func (adapter studyAdapter) LogOperation(_ context.Context, entry study.OperationLog) {
	emit(adapter.logger, "study", entry.Operation, entry.Status, entry.Error,
		zap.String("user_id", entry.UserID.String()),
		zap.String("session_id", entry.SessionID.String()),
		zap.Duration("length", entry.Length),
		zap.Int64("coins", entry.Coins.Int64()),
		zap.String("reason", entry.Reason),
	)
}

func emit(logger *zap.Logger, component string, operation string, status string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("component", component),
		zap.String("operation", operation),
		zap.String("status", status),
	)
	if err != nil {
		logger.Warn("operation failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("operation", fields...)
}
