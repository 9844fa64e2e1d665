package dto

import (
	achievementDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
)

type QuizAnswerRequest struct {
	Correct *bool  `json:"correct" binding:"required"`
	Book    string `json:"book" binding:"required,max=40"`
	Chapter int    `json:"chapter" binding:"required,min=1"`
}

type CompleteChapterRequest struct {
	Book    string `json:"book" binding:"required,max=40"`
	Chapter int    `json:"chapter" binding:"required,min=1"`
}

type StreakInfo struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	StreakUpdated bool `json:"streak_updated"`
}

type VerseReadResult struct {
	XPAwarded int `json:"xp_awarded"`
	TotalXP   int `json:"total_xp"`
	StreakInfo
}

type QuizAnswerResult struct {
	XPAwarded int `json:"xp_awarded"`
	TotalXP   int `json:"total_xp"`
}

type CompleteChapterResult struct {
	Success          bool                                `json:"success"`
	AlreadyCompleted bool                                `json:"already_completed"`
	XPAwarded        int                                 `json:"xp_awarded"`
	TalentsAwarded   int                                 `json:"talents_awarded"`
	TotalXP          int                                 `json:"total_xp"`
	BookCompleted    bool                                `json:"book_completed"`
	Achievements     []achievementDto.AwardedAchievement `json:"achievements"`
	StreakInfo
}

type ProgressSummary struct {
	UserID            string      `json:"user_id"`
	Username          string      `json:"username"`
	DisplayName       string      `json:"display_name"`
	TotalXP           int         `json:"total_xp"`
	CurrentStreak     int         `json:"current_streak"`
	LongestStreak     int         `json:"longest_streak"`
	StreakActive      bool        `json:"streak_active"` // read today or yesterday
	LastReadDate      *string     `json:"last_read_date,omitempty"`
	WindowXP          int         `json:"window_xp"`
	Tier              tier.Status `json:"tier"`
	Talents           int         `json:"talents"`
	ChallengeWins     int         `json:"challenge_wins"`
	ChaptersCompleted int         `json:"chapters_completed"`
	BooksCompleted    int         `json:"books_completed"`
}

type BookProgress struct {
	Book              string  `json:"book"`
	TotalChapters     int     `json:"total_chapters"`
	CompletedChapters int     `json:"completed_chapters"`
	Percent           float64 `json:"percent"`
	Completed         bool    `json:"completed"`
}
