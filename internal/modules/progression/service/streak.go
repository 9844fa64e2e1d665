package service

import "github.com/PhoenixSmith/seraph-v2-sub000/pkg/calendar"

type StreakResult struct {
	Current int
	Updated bool
}

// ComputeStreak derives the streak for a read happening on today. Only calendar
// days matter: a read on the following day extends the streak, a read on the same
// day leaves it untouched, anything else starts over at 1.
func ComputeStreak(lastReadDate *string, today string, current int) StreakResult {
	if lastReadDate == nil || *lastReadDate == "" {
		return StreakResult{Current: 1, Updated: true}
	}
	if *lastReadDate == today {
		if current < 1 {
			current = 1
		}
		return StreakResult{Current: current, Updated: false}
	}

	diff, err := calendar.DaysBetween(*lastReadDate, today)
	if err == nil && diff == 1 {
		return StreakResult{Current: current + 1, Updated: true}
	}
	return StreakResult{Current: 1, Updated: true}
}
