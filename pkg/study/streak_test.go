package study

import (
	"testing"
	"time"
)

func day(offset int) time.Time {
	return baseTime().AddDate(0, 0, offset)
}

func TestStreak(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		days []time.Time
		want int
	}{
		{name: "no days", want: 0},
		{name: "single day", days: []time.Time{day(0)}, want: 1},
		{name: "three consecutive", days: []time.Time{day(0), day(-1), day(-2)}, want: 3},
		{name: "gap after two", days: []time.Time{day(0), day(-1), day(-3), day(-4)}, want: 2},
		{name: "three day gap resets", days: []time.Time{day(0), day(-3)}, want: 1},
		{name: "old run only", days: []time.Time{day(-10), day(-11)}, want: 2},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := Streak(testCase.days); got != testCase.want {
				test.Fatalf("expected %d, got %d", testCase.want, got)
			}
			if again := Streak(testCase.days); again != testCase.want {
				test.Fatalf("expected a repeated call to return %d, got %d", testCase.want, again)
			}
		})
	}
}

func TestQualifyingDaysCollapsesAndSorts(test *testing.T) {
	test.Parallel()
	base := baseTime()
	ends := []int64{
		base.Add(-48 * time.Hour).Unix(),
		base.Unix(),
		base.Add(-time.Hour).Unix(),
		base.Add(-24 * time.Hour).Unix(),
	}
	days := QualifyingDays(ends)
	if len(days) != 3 {
		test.Fatalf("expected 3 distinct days, got %v", days)
	}
	for index := 1; index < len(days); index++ {
		if !days[index-1].After(days[index]) {
			test.Fatalf("expected most recent first, got %v", days)
		}
	}
	if Streak(days) != 3 {
		test.Fatalf("expected a 3 day streak, got %d", Streak(days))
	}
}

func TestQualifyingDaysUsesUTCBoundaries(test *testing.T) {
	test.Parallel()
	lateEvening := time.Date(2026, time.March, 14, 23, 59, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, time.March, 15, 0, 1, 0, 0, time.UTC)
	days := QualifyingDays([]int64{lateEvening.Unix(), earlyMorning.Unix()})
	if len(days) != 2 || Streak(days) != 2 {
		test.Fatalf("expected two consecutive days, got %v", days)
	}
}
