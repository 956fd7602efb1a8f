// Package streak computes consecutive-day activity streaks.
package streak

import (
	"sort"
	"time"
)

// Calculate returns the number of consecutive calendar days (UTC) with at
// least one activity, counted backwards from the most recent activity date.
// Input order does not matter and duplicate dates collapse.
func Calculate(activity []time.Time) int {
	if len(activity) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(activity))
	days := make([]time.Time, 0, len(activity))
	for _, ts := range activity {
		if ts.IsZero() {
			continue
		}
		d := dateOf(ts)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0
	}

	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i-1].AddDate(0, 0, -1).Equal(days[i]) {
			break
		}
		streak++
	}
	return streak
}

func dateOf(ts time.Time) time.Time {
	u := ts.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
