package dto

import "time"

type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=30,alphanum"`
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	TotalXP       int       `json:"total_xp"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	LastReadDate  *string   `json:"last_read_date,omitempty"`
	CurrentTier   *string   `json:"current_tier,omitempty"`
	Talents       int       `json:"talents"`
	ChallengeWins int       `json:"challenge_wins"`
	CreatedAt     time.Time `json:"created_at"`
}

type RegisterResult struct {
	User    UserResponse `json:"user"`
	Created bool         `json:"created"`
}
