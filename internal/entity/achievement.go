package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CategoryBookCompletion = "book_completion"
	CategoryStreak         = "streak"
	CategoryXPMilestone    = "xp_milestone"
	CategorySpecial        = "special"
)

// AchievementRequirement is stored as JSON. Book is set for book_completion, Value for the rest.
type AchievementRequirement struct {
	Book  string `json:"book,omitempty"`
	Value int    `json:"value,omitempty"`
}

type Achievement struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Key          string         `gorm:"size:60;uniqueIndex;not null" json:"key"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	Icon         string         `gorm:"size:50" json:"icon"`
	Category     string         `gorm:"size:30;index;not null" json:"category"`
	Requirement  datatypes.JSON `gorm:"type:jsonb;not null" json:"requirement"`
	XPReward     int            `gorm:"not null;default:0" json:"xp_reward"`
	TalentReward int            `gorm:"not null;default:0" json:"talent_reward"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// ParsedRequirement decodes the requirement column. Malformed JSON yields a zero requirement.
func (a *Achievement) ParsedRequirement() AchievementRequirement {
	var req AchievementRequirement
	if len(a.Requirement) == 0 {
		return req
	}
	_ = json.Unmarshal(a.Requirement, &req)
	return req
}

// NewRequirement encodes a requirement for the JSON column.
func NewRequirement(req AchievementRequirement) datatypes.JSON {
	raw, _ := json.Marshal(req)
	return datatypes.JSON(raw)
}

// UserAchievement is unique per (user, achievement); the index is the award idempotency anchor.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	Achievement   Achievement `gorm:"constraint:OnDelete:CASCADE" json:"achievement"`
	UnlockedAt    time.Time   `gorm:"not null" json:"unlocked_at"`
}
