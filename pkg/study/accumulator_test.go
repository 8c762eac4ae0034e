package study

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestAccumulatorOpenClose(test *testing.T) {
	test.Parallel()
	var accumulator Accumulator
	start := baseTime()
	if accumulator.Close(start) != 0 {
		test.Fatalf("closing an idle accumulator must not deposit")
	}
	if !accumulator.Open(start) {
		test.Fatalf("expected open to succeed")
	}
	if accumulator.Open(start.Add(time.Minute)) {
		test.Fatalf("expected second open to be rejected")
	}
	if elapsed := accumulator.Elapsed(start.Add(3 * time.Minute)); elapsed != 3*time.Minute {
		test.Fatalf("expected 3m elapsed while running, got %s", elapsed)
	}
	if deposit := accumulator.Close(start.Add(4 * time.Minute)); deposit != 4*time.Minute {
		test.Fatalf("expected 4m deposit, got %s", deposit)
	}
	if accumulator.Running() {
		test.Fatalf("expected accumulator to stop")
	}
	if elapsed := accumulator.Elapsed(start.Add(time.Hour)); elapsed != 4*time.Minute {
		test.Fatalf("expected elapsed to freeze at 4m, got %s", elapsed)
	}
}

func TestAccumulatorDepositsSumToTotal(test *testing.T) {
	test.Parallel()
	random := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		var accumulator Accumulator
		now := baseTime()
		var deposits time.Duration
		toggles := random.IntN(12)
		for toggle := 0; toggle < toggles; toggle++ {
			now = now.Add(time.Duration(random.IntN(600)) * time.Second)
			if random.IntN(2) == 0 {
				accumulator.Open(now)
			} else {
				deposits += accumulator.Close(now)
			}
		}
		now = now.Add(time.Duration(random.IntN(600)) * time.Second)
		deposits += accumulator.Close(now)
		if deposits != accumulator.Elapsed(now) {
			test.Fatalf("trial %d: deposits %s differ from total %s", trial, deposits, accumulator.Elapsed(now))
		}
	}
}

func TestSyntheticSessionCarriesVideo(test *testing.T) {
	test.Parallel()
	userID := mustUserID(test, "user-1")
	end := baseTime()
	state := NewSyntheticSession(userID, end.Add(-time.Hour), 25*time.Minute)
	closed := state.Close(func() time.Time { return end })
	if closed.Length != time.Hour || closed.VideoLength != 25*time.Minute || closed.BreakLength != 0 {
		test.Fatalf("unexpected closed session %+v", closed)
	}
	again := state.Close(func() time.Time { return end.Add(time.Hour) })
	if again != closed {
		test.Fatalf("expected a second close to return the first result")
	}
}
