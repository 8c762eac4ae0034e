package rewards

import (
	"context"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

const (
	operationClaim = "claim"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records reward claims.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one claim attempt.
type OperationLog struct {
	Operation string
	UserID    ledger.UserID
	RewardID  RewardID
	Reward    Reward
	Reason    string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every claim.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}
