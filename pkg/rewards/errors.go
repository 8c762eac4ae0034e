package rewards

import "errors"

// Domain-level error values returned by the reward service.
var (
	ErrInvalidRewardID      = errors.New("invalid reward id")
	ErrInvalidReward        = errors.New("invalid reward")
	ErrInvalidReason        = errors.New("invalid reward reason")
	ErrUnknownReward        = errors.New("unknown reward")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
