package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	AvatarItemCategory = "avatar_items"

	ItemSourceAchievement = "achievement"
	ItemSourcePurchase    = "purchase"
)

// AvatarItem is a cosmetic. Items unlocked by an achievement share that achievement's key.
type AvatarItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Key        string    `gorm:"size:60;uniqueIndex;not null" json:"key"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Slot       string    `gorm:"size:30;not null" json:"slot"` // head, robe, staff, aura
	Category   string    `gorm:"size:30;not null;default:avatar_items" json:"category"`
	TalentCost int       `gorm:"not null;default:0" json:"talent_cost"`
	Unlockable bool      `gorm:"not null;default:false" json:"unlockable"` // granted by an achievement only
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type UserAvatarItem struct {
	UserID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	ItemID     uint       `gorm:"primaryKey" json:"item_id"`
	Item       AvatarItem `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"item"`
	Source     string     `gorm:"size:20;not null" json:"source"`
	AcquiredAt time.Time  `gorm:"not null" json:"acquired_at"`
}
