package ledger

const (
	operationAppend = "append"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// ReasonStudySession marks the credit written when a study session settles.
	ReasonStudySession = "study_session"
	// ReasonReward marks coins granted by a claimed reward.
	ReasonReward = "reward"
	// ReasonAdjustment marks manual administrative corrections.
	ReasonAdjustment = "adjustment"

	maxReasonLength = 64
)
