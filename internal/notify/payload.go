package notify

import "github.com/MarkoPoloResearchLab/studyledger/pkg/study"

// ResultPayload is the JSON shape of a settlement result.
type ResultPayload struct {
	UserID                 string          `json:"user_id"`
	SessionID              string          `json:"session_id"`
	StartUnixUTC           int64           `json:"start_unix_utc"`
	EndUnixUTC             int64           `json:"end_unix_utc"`
	LengthSeconds          int64           `json:"length_seconds"`
	VideoLengthSeconds     int64           `json:"video_length_seconds"`
	BreakLengthSeconds     int64           `json:"break_length_seconds"`
	Coins                  int64           `json:"coins"`
	StreakBefore           int             `json:"streak_before"`
	StreakAfter            int             `json:"streak_after"`
	RankBefore             int             `json:"rank_before,omitempty"`
	RankAfter              int             `json:"rank_after,omitempty"`
	NextVideoRewardSeconds int64           `json:"next_video_reward_seconds,omitempty"`
	Rewards                []RewardPayload `json:"rewards"`
	ResultsMode            string          `json:"results_mode,omitempty"`
}

// RewardPayload is one triggered reward.
type RewardPayload struct {
	Reason   string `json:"reason"`
	RewardID string `json:"reward_id"`
}

// NewResultPayload flattens a settlement result for transport.
func NewResultPayload(result study.SettlementResult) ResultPayload {
	rewardPayloads := make([]RewardPayload, 0, len(result.Rewards))
	for _, trigger := range result.Rewards {
		rewardPayloads = append(rewardPayloads, RewardPayload{Reason: trigger.Reason, RewardID: trigger.RewardID.String()})
	}
	return ResultPayload{
		UserID:                 result.UserID.String(),
		SessionID:              result.SessionID.String(),
		StartUnixUTC:           result.Start.Unix(),
		EndUnixUTC:             result.End.Unix(),
		LengthSeconds:          int64(result.Length.Seconds()),
		VideoLengthSeconds:     int64(result.VideoLength.Seconds()),
		BreakLengthSeconds:     int64(result.BreakLength.Seconds()),
		Coins:                  result.Coins.Int64(),
		StreakBefore:           result.StreakBefore,
		StreakAfter:            result.StreakAfter,
		RankBefore:             result.RankBefore,
		RankAfter:              result.RankAfter,
		NextVideoRewardSeconds: int64(result.NextVideoReward.Seconds()),
		Rewards:                rewardPayloads,
		ResultsMode:            string(result.ResultsMode),
	}
}
