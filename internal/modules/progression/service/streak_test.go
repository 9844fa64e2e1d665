package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func day(s string) *string { return &s }

func TestComputeStreak(t *testing.T) {
	tests := []struct {
		Desc     string
		LastRead *string
		Today    string
		Current  int
		Want     StreakResult
	}{
		{Desc: "first ever read", LastRead: nil, Today: "2024-01-01", Current: 0, Want: StreakResult{Current: 1, Updated: true}},
		{Desc: "same day", LastRead: day("2024-01-01"), Today: "2024-01-01", Current: 1, Want: StreakResult{Current: 1, Updated: false}},
		{Desc: "next day", LastRead: day("2024-01-01"), Today: "2024-01-02", Current: 1, Want: StreakResult{Current: 2, Updated: true}},
		{Desc: "month rollover", LastRead: day("2024-01-31"), Today: "2024-02-01", Current: 9, Want: StreakResult{Current: 10, Updated: true}},
		{Desc: "gap of eight days", LastRead: day("2024-01-02"), Today: "2024-01-10", Current: 2, Want: StreakResult{Current: 1, Updated: true}},
		{Desc: "clock skew", LastRead: day("2024-01-05"), Today: "2024-01-04", Current: 4, Want: StreakResult{Current: 1, Updated: true}},
		{Desc: "corrupt last read", LastRead: day("garbage"), Today: "2024-01-04", Current: 4, Want: StreakResult{Current: 1, Updated: true}},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			assert.Equal(t, tc.Want, ComputeStreak(tc.LastRead, tc.Today, tc.Current))
		})
	}
}
