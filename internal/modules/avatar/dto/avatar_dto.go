package dto

import "time"

type AvatarItemResponse struct {
	ID         uint       `json:"id"`
	Key        string     `json:"key"`
	Name       string     `json:"name"`
	Slot       string     `json:"slot"`
	Category   string     `json:"category"`
	TalentCost int        `json:"talent_cost"`
	Unlockable bool       `json:"unlockable"`
	Owned      bool       `json:"owned"`
	Source     string     `json:"source,omitempty"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
}

type PurchaseResult struct {
	Item             AvatarItemResponse `json:"item"`
	AlreadyOwned     bool               `json:"already_owned"`
	TalentsSpent     int                `json:"talents_spent"`
	TalentsRemaining int                `json:"talents_remaining"`
}
