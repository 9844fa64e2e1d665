package dto

import "time"

type CreateChallengeRequest struct {
	ChallengerGroupID string `json:"challenger_group_id" binding:"required,uuid"`
	ChallengedGroupID string `json:"challenged_group_id" binding:"required,uuid"`
}

type ListChallengesQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending active completed declined cancelled"`
}

type SideResponse struct {
	GroupID       string  `json:"group_id"`
	Name          string  `json:"name"`
	ImageURL      *string `json:"image_url,omitempty"`
	XP            int     `json:"xp"`
	ActiveMembers int     `json:"active_members"`
	Score         float64 `json:"score"`
	StartXP       int     `json:"start_xp"`
	StartActive   int     `json:"start_active"`
}

type ChallengeResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Challenger    SideResponse `json:"challenger"`
	Challenged    SideResponse `json:"challenged"`
	WinnerGroupID *string      `json:"winner_group_id"`
	IsTie         bool         `json:"is_tie"`
	CreatedAt     time.Time    `json:"created_at"`
	AcceptedAt    *time.Time   `json:"accepted_at,omitempty"`
	EndTime       *time.Time   `json:"end_time,omitempty"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty"`
	SecondsLeft   int64        `json:"seconds_left"`
	ViewerRole    string       `json:"viewer_role,omitempty"` // challenger_leader or challenged_leader
}
