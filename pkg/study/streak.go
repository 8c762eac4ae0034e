package study

import (
	"sort"
	"time"
)

// QualifyingSessionLength is the length a session must exceed to count toward a streak.
const QualifyingSessionLength = 10 * time.Minute

// QualifyingDays collapses session end times into distinct UTC calendar days, most recent first.
func QualifyingDays(endsUnixUTC []int64) []time.Time {
	seen := make(map[time.Time]struct{}, len(endsUnixUTC))
	days := make([]time.Time, 0, len(endsUnixUTC))
	for _, ended := range endsUnixUTC {
		day := utcDay(time.Unix(ended, 0))
		if _, exists := seen[day]; exists {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(left, right int) bool {
		return days[left].After(days[right])
	})
	return days
}

// Streak counts consecutive days starting at the most recent one and stops at the first gap.
// days must be distinct and sorted most recent first.
func Streak(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}
	streak := 1
	previous := utcDay(days[0])
	for _, day := range days[1:] {
		current := utcDay(day)
		if !current.AddDate(0, 0, 1).Equal(previous) {
			break
		}
		streak++
		previous = current
	}
	return streak
}

func utcDay(instant time.Time) time.Time {
	year, month, day := instant.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
