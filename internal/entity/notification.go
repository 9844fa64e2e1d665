package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationAchievementUnlocked = "achievement_unlocked"
	NotificationTierChanged         = "tier_changed"
	NotificationChallengeReceived   = "challenge_received"
	NotificationChallengeAccepted   = "challenge_accepted"
	NotificationChallengeDeclined   = "challenge_declined"
	NotificationChallengeCancelled  = "challenge_cancelled"
	NotificationChallengeCompleted  = "challenge_completed"
	NotificationLeadershipReceived  = "leadership_received"
)

type Notification struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"` // recipient
	ActorID    *uuid.UUID `gorm:"type:uuid" json:"actor_id,omitempty"`
	EntityID   string     `gorm:"size:60" json:"entity_id"`
	EntityType string     `gorm:"size:30;not null" json:"entity_type"` // achievement, tier, challenge, group
	Type       string     `gorm:"size:40;not null" json:"type"`
	Message    string     `gorm:"type:text" json:"message"`
	IsRead     bool       `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
