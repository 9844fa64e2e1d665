package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceVerseRead         = "verse_read"
	SourceQuizAnswer        = "quiz_answer"
	SourceChapterComplete   = "chapter_complete"
	SourceAchievementReward = "achievement_reward"
)

// XPEvent is one ledger row. Challenge scores and active-member counts are read from here.
type XPEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_xp_events_user_created,priority:1;not null" json:"user_id"`
	Source    string    `gorm:"size:30;not null" json:"source"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reference string    `gorm:"size:100" json:"reference"` // book:chapter or achievement key
	Day       string    `gorm:"size:10;not null" json:"day"`
	CreatedAt time.Time `gorm:"index:idx_xp_events_user_created,priority:2;index" json:"created_at"`
}

type ChapterCompletion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_book_chapter,priority:1" json:"user_id"`
	Book        string    `gorm:"size:40;not null;uniqueIndex:idx_user_book_chapter,priority:2" json:"book"`
	Chapter     int       `gorm:"not null;uniqueIndex:idx_user_book_chapter,priority:3" json:"chapter"`
	XPAwarded   int       `gorm:"not null" json:"xp_awarded"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}

// RollingXPDay accumulates XP per user per app-local day.
type RollingXPDay struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Day       string    `gorm:"size:10;primaryKey;index" json:"day"`
	XPEarned  int       `gorm:"not null;default:0" json:"xp_earned"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RollingXPDay) TableName() string {
	return "rolling_xp_days"
}

type TierThreshold struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:30;uniqueIndex;not null" json:"name"`
	MinXP    int    `gorm:"not null;uniqueIndex" json:"min_xp"`
	Position int    `gorm:"not null;uniqueIndex" json:"position"`
	Color    string `gorm:"size:20" json:"color"`
}
