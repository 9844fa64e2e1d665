package dto

import "github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"

const (
	TimeframeRolling = "rolling"
	TimeframeAllTime = "all_time"
)

type LeaderboardQuery struct {
	Timeframe string `form:"timeframe" binding:"omitempty,oneof=rolling all_time"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// Normalize applies the default timeframe and limit.
func (q *LeaderboardQuery) Normalize() {
	if q.Timeframe == "" {
		q.Timeframe = TimeframeRolling
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
}

// LeaderboardEntry is one user row. Position is 1-based.
// Tier always reflects the rolling window, whatever the ordering.
type LeaderboardEntry struct {
	UserID        string      `json:"user_id"`
	Username      string      `json:"username"`
	DisplayName   string      `json:"display_name"`
	Position      int         `json:"position"`
	TotalXP       int         `json:"total_xp"`
	RollingXP     int         `json:"rolling_xp"`
	CurrentStreak int         `json:"current_streak"`
	Tier          tier.Status `json:"tier"`
	ActivityLabel string      `json:"activity_label"`
}

type GroupLeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

type GroupLeaderboardEntry struct {
	GroupID       string      `json:"group_id"`
	Name          string      `json:"name"`
	ImageURL      *string     `json:"image_url,omitempty"`
	Position      int         `json:"position"`
	WeeklyXP      int         `json:"weekly_xp"`
	WeekStartDate string      `json:"week_start_date"`
	Level         tier.Status `json:"level"`
	MemberCount   int         `json:"member_count"`
	ChallengeWins int         `json:"challenge_wins"`
}
