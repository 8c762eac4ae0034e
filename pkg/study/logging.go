package study

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

const (
	operationFinishSession   = "finish_session"
	operationSimulateSession = "simulate_session"
	operationDeductSession   = "deduct_session"
	operationDeliverResults  = "deliver_results"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// OperationLogger records domain-level events emitted by Engine operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a settlement-related operation.
type OperationLog struct {
	Operation string
	UserID    ledger.UserID
	SessionID SessionID
	Length    time.Duration
	Coins     ledger.Coins
	Reason    string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}
