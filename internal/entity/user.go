package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username      string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	DisplayName   string    `gorm:"size:100" json:"display_name"`
	TotalXP       int       `gorm:"not null;default:0;check:total_xp >= 0" json:"total_xp"`
	CurrentStreak int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int       `gorm:"not null;default:0" json:"longest_streak"`
	LastReadDate  *string   `gorm:"size:10" json:"last_read_date,omitempty"` // YYYY-MM-DD, app-local
	CurrentTier   *string   `gorm:"size:30" json:"current_tier,omitempty"`
	Talents       int       `gorm:"not null;default:0;check:talents >= 0" json:"talents"`
	ChallengeWins int       `gorm:"not null;default:0" json:"challenge_wins"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
