package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrInvalidNotifierConfig is returned when a notifier is built without its dependencies.
var ErrInvalidNotifierConfig = errors.New("invalid notifier config")

// LogNotifier writes each settlement result as a structured log line.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier wires a LogNotifier; a nil logger discards output.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (notifier *LogNotifier) Deliver(_ context.Context, result study.SettlementResult) error {
	reasons := make([]string, 0, len(result.Rewards))
	for _, trigger := range result.Rewards {
		reasons = append(reasons, trigger.Reason)
	}
	notifier.logger.Info("study session settled",
		zap.String("user_id", result.UserID.String()),
		zap.String("session_id", result.SessionID.String()),
		zap.Duration("length", result.Length),
		zap.Duration("video_length", result.VideoLength),
		zap.Duration("break_length", result.BreakLength),
		zap.Int64("coins", result.Coins.Int64()),
		zap.Int("streak_before", result.StreakBefore),
		zap.Int("streak_after", result.StreakAfter),
		zap.Int("rank_before", result.RankBefore),
		zap.Int("rank_after", result.RankAfter),
		zap.Strings("rewards", reasons),
		zap.String("results_mode", string(result.ResultsMode)),
	)
	return nil
}

// Publisher is the part of *redis.Client used for publishing.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier publishes settlement results as JSON on a pub/sub channel.
type RedisNotifier struct {
	publisher Publisher
	channel   string
}

// NewRedisNotifier wires a RedisNotifier.
func NewRedisNotifier(publisher Publisher, channel string) (*RedisNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("%w: publisher dependency is nil", ErrInvalidNotifierConfig)
	}
	if strings.TrimSpace(channel) == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidNotifierConfig)
	}
	return &RedisNotifier{publisher: publisher, channel: strings.TrimSpace(channel)}, nil
}

func (notifier *RedisNotifier) Deliver(ctx context.Context, result study.SettlementResult) error {
	data, err := json.Marshal(NewResultPayload(result))
	if err != nil {
		return fmt.Errorf("encode settlement result: %w", err)
	}
	if err := notifier.publisher.Publish(ctx, notifier.channel, data).Err(); err != nil {
		return fmt.Errorf("publish settlement result: %w", err)
	}
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []study.Notifier

func (fanout Fanout) Deliver(ctx context.Context, result study.SettlementResult) error {
	var errs []error
	for _, notifier := range fanout {
		if notifier == nil {
			continue
		}
		if err := notifier.Deliver(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
