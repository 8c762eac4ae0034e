package study

import (
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
)

func fixedDraw(value time.Duration) func() time.Duration {
	return func() time.Duration { return value }
}

func TestDepositVideo(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name          string
		countdown     time.Duration
		deposit       time.Duration
		draw          time.Duration
		wantRemaining time.Duration
		wantTriggers  int
	}{
		{name: "no video", countdown: 30 * time.Minute, deposit: 0, draw: time.Hour, wantRemaining: 30 * time.Minute},
		{name: "partial deposit", countdown: 30 * time.Minute, deposit: 10 * time.Minute, draw: time.Hour, wantRemaining: 20 * time.Minute},
		{name: "exact deposit resets", countdown: 30 * time.Minute, deposit: 30 * time.Minute, draw: time.Hour, wantRemaining: time.Hour, wantTriggers: 1},
		{name: "one cycle with leftover", countdown: 30 * time.Minute, deposit: 40 * time.Minute, draw: time.Hour, wantRemaining: 50 * time.Minute, wantTriggers: 1},
		{name: "several cycles", countdown: 30 * time.Minute, deposit: 160 * time.Minute, draw: 30 * time.Minute, wantRemaining: 20 * time.Minute, wantTriggers: 5},
		{name: "several cycles ending exactly", countdown: 30 * time.Minute, deposit: 90 * time.Minute, draw: 30 * time.Minute, wantRemaining: 30 * time.Minute, wantTriggers: 3},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			remaining, triggers := DepositVideo(testCase.countdown, testCase.deposit, fixedDraw(testCase.draw))
			if remaining != testCase.wantRemaining || triggers != testCase.wantTriggers {
				test.Fatalf("expected %s with %d triggers, got %s with %d", testCase.wantRemaining, testCase.wantTriggers, remaining, triggers)
			}
		})
	}
}

func TestDrawCountdownBounds(test *testing.T) {
	test.Parallel()
	if got := DrawCountdown(&scriptedRandom{values: []int{0}}); got != 30*time.Minute {
		test.Fatalf("expected 30m minimum, got %s", got)
	}
	if got := DrawCountdown(&scriptedRandom{values: []int{10}}); got != 330*time.Minute {
		test.Fatalf("expected 330m maximum, got %s", got)
	}
	random, err := rewards.NewRandomSource()
	if err != nil {
		test.Fatalf("random source: %v", err)
	}
	for iteration := 0; iteration < 500; iteration++ {
		got := DrawCountdown(random)
		if got < 30*time.Minute || got > 330*time.Minute || got%(30*time.Minute) != 0 {
			test.Fatalf("draw out of range: %s", got)
		}
	}
}
