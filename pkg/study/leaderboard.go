package study

import (
	"sort"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

// MonthWindowStart returns 00:00 UTC on the first day of the month containing now.
func MonthWindowStart(now time.Time) time.Time {
	year, month, _ := now.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// Standings ranks totals by descending sum with row-number semantics: equal sums still get
// distinct sequential ranks, in no particular order. limit <= 0 returns every row.
func Standings(totals []UserTotal, limit int) []Standing {
	ordered := append([]UserTotal(nil), totals...)
	sort.Slice(ordered, func(left, right int) bool {
		if ordered[left].Total != ordered[right].Total {
			return ordered[left].Total > ordered[right].Total
		}
		return ordered[left].UserID.String() < ordered[right].UserID.String()
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	standings := make([]Standing, len(ordered))
	for index, total := range ordered {
		standings[index] = Standing{Rank: index + 1, UserID: total.UserID, Total: total.Total}
	}
	return standings
}

// RankOf returns the user's 1-based rank, or 0 when the user is not on the board.
func RankOf(totals []UserTotal, userID ledger.UserID) int {
	for _, standing := range Standings(totals, 0) {
		if standing.UserID == userID {
			return standing.Rank
		}
	}
	return 0
}
