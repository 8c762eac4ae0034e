package study

import (
	"strings"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// VoiceState is the part of a member's voice presence the tracker cares about.
type VoiceState struct {
	ChannelID  string
	SelfVideo  bool
	SelfStream bool
}

// Streaming reports whether the member shares camera or screen.
func (state VoiceState) Streaming() bool {
	return state.SelfVideo || state.SelfStream
}

// PresenceEvent is one presence change. Old is nil when the previous state is unknown.
type PresenceEvent struct {
	UserID ledger.UserID
	Old    *VoiceState
	New    VoiceState
}

// Transition is the session-level effect of a presence change.
type Transition int

const (
	TransitionNoChange Transition = iota
	TransitionStart
	TransitionEnd
)

func (transition Transition) String() string {
	switch transition {
	case TransitionStart:
		return "start"
	case TransitionEnd:
		return "end"
	default:
		return "no_change"
	}
}

// ChannelPolicy decides which channels count as studying.
type ChannelPolicy struct {
	excluded map[string]struct{}
}

// NewChannelPolicy treats every channel as a study channel except the excluded ones.
func NewChannelPolicy(excludedChannelIDs []string) ChannelPolicy {
	excluded := make(map[string]struct{}, len(excludedChannelIDs))
	for _, channelID := range excludedChannelIDs {
		trimmed := strings.TrimSpace(channelID)
		if trimmed != "" {
			excluded[trimmed] = struct{}{}
		}
	}
	return ChannelPolicy{excluded: excluded}
}

// IsStudyChannel reports whether presence in the channel counts as studying.
// An empty channel id means the member is not in voice.
func (policy ChannelPolicy) IsStudyChannel(channelID string) bool {
	trimmed := strings.TrimSpace(channelID)
	if trimmed == "" {
		return false
	}
	_, excluded := policy.excluded[trimmed]
	return !excluded
}

// Classify maps an (old, new) presence pair to a session transition.
func (policy ChannelPolicy) Classify(old *VoiceState, current VoiceState) Transition {
	studyingBefore := old != nil && policy.IsStudyChannel(old.ChannelID)
	studyingNow := policy.IsStudyChannel(current.ChannelID)
	switch {
	case !studyingBefore && studyingNow:
		return TransitionStart
	case studyingBefore && !studyingNow:
		return TransitionEnd
	default:
		return TransitionNoChange
	}
}
