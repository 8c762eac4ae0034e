package httpapi

import "github.com/MarkoPoloResearchLab/studyledger/pkg/study"

type voiceStatePayload struct {
	ChannelID  string `json:"channel_id"`
	SelfVideo  bool   `json:"self_video"`
	SelfStream bool   `json:"self_stream"`
}

func (payload voiceStatePayload) voiceState() study.VoiceState {
	return study.VoiceState{ChannelID: payload.ChannelID, SelfVideo: payload.SelfVideo, SelfStream: payload.SelfStream}
}

type presenceRequest struct {
	UserID string             `json:"user_id"`
	Old    *voiceStatePayload `json:"old"`
	New    voiceStatePayload  `json:"new"`
}

type breakRequest struct {
	OnBreak bool `json:"on_break"`
}

type resultsModeRequest struct {
	Mode string `json:"mode"`
}

type optOutRequest struct {
	OptOut bool `json:"opt_out"`
}

type simulateRequest struct {
	UserID        string `json:"user_id"`
	LengthSeconds int64  `json:"length_seconds"`
	VideoSeconds  int64  `json:"video_seconds"`
	Notify        bool   `json:"notify"`
}

type deductRequest struct {
	UserID            string `json:"user_id"`
	KeepLengthSeconds int64  `json:"keep_length_seconds"`
	KeepVideoSeconds  int64  `json:"keep_video_seconds"`
}

type adjustCoinsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type sessionPayload struct {
	UserID             string `json:"user_id"`
	StartUnixUTC       int64  `json:"start_unix_utc"`
	ElapsedSeconds     int64  `json:"elapsed_seconds"`
	VideoLengthSeconds int64  `json:"video_length_seconds"`
	BreakLengthSeconds int64  `json:"break_length_seconds"`
	VideoRunning       bool   `json:"video_running"`
	OnBreak            bool   `json:"on_break"`
}

type transactionPayload struct {
	TransactionID  string `json:"transaction_id"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

type boosterPayload struct {
	MultiplierPercent int   `json:"multiplier_percent"`
	ExpiresUnixUTC    int64 `json:"expires_unix_utc"`
}

type standingPayload struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	TotalSeconds int64  `json:"total_seconds"`
}
