package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChallengePending   = "pending"
	ChallengeActive    = "active"
	ChallengeCompleted = "completed"
	ChallengeDeclined  = "declined"
	ChallengeCancelled = "cancelled"
)

// ChallengeDuration is how long an accepted challenge runs.
const ChallengeDuration = 7 * 24 * time.Hour

type Challenge struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengerGroupID uuid.UUID `gorm:"type:uuid;not null;index" json:"challenger_group_id"`
	ChallengerGroup   *Group    `gorm:"foreignKey:ChallengerGroupID;constraint:OnDelete:CASCADE" json:"challenger_group,omitempty"`
	ChallengedGroupID uuid.UUID `gorm:"type:uuid;not null;index" json:"challenged_group_id"`
	ChallengedGroup   *Group    `gorm:"foreignKey:ChallengedGroupID;constraint:OnDelete:CASCADE" json:"challenged_group,omitempty"`
	CreatedByID       uuid.UUID `gorm:"type:uuid;not null" json:"created_by_id"`
	Status            string    `gorm:"size:12;not null;index" json:"status"`

	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	EndTime    *time.Time `gorm:"index" json:"end_time,omitempty"`

	// Snapshot taken on activation.
	ChallengerStartXP     int `gorm:"not null;default:0" json:"challenger_start_xp"`
	ChallengedStartXP     int `gorm:"not null;default:0" json:"challenged_start_xp"`
	ChallengerStartActive int `gorm:"not null;default:0" json:"challenger_start_active"`
	ChallengedStartActive int `gorm:"not null;default:0" json:"challenged_start_active"`

	// Final metrics, written on completion.
	ChallengerXP     int     `gorm:"not null;default:0" json:"challenger_xp"`
	ChallengedXP     int     `gorm:"not null;default:0" json:"challenged_xp"`
	ChallengerActive int     `gorm:"not null;default:0" json:"challenger_active"`
	ChallengedActive int     `gorm:"not null;default:0" json:"challenged_active"`
	ChallengerScore  float64 `gorm:"not null;default:0" json:"challenger_score"`
	ChallengedScore  float64 `gorm:"not null;default:0" json:"challenged_score"`

	WinnerGroupID *uuid.UUID `gorm:"type:uuid" json:"winner_group_id"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (c *Challenge) IsTerminal() bool {
	switch c.Status {
	case ChallengeCompleted, ChallengeDeclined, ChallengeCancelled:
		return true
	}
	return false
}
