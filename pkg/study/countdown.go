package study

import (
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
)

const (
	countdownStep     = 30 * time.Minute
	countdownStepsMin = 1
	countdownStepsMax = 11
)

// DrawCountdown picks the video time until the next reward: 30 minutes to 5.5 hours in 30 minute steps.
func DrawCountdown(random rewards.RandomSource) time.Duration {
	return time.Duration(rewards.IntInRange(random, countdownStepsMin, countdownStepsMax)) * countdownStep
}

// DepositVideo spends deposit against the countdown. Every fully consumed countdown yields one
// trigger and a freshly drawn countdown; the leftover is taken off the last one.
func DepositVideo(countdown time.Duration, deposit time.Duration, draw func() time.Duration) (time.Duration, int) {
	if deposit < 0 {
		deposit = 0
	}
	triggers := 0
	for deposit >= countdown {
		deposit -= countdown
		triggers++
		countdown = draw()
		if countdown <= 0 {
			countdown = countdownStep
		}
	}
	return countdown - deposit, triggers
}
