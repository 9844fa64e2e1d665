package dto

import "time"

// AwardedItem is the cosmetic unlocked together with an achievement.
type AwardedItem struct {
	ID   uint   `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Slot string `json:"slot"`
}

type AwardedAchievement struct {
	ID           uint         `json:"id"`
	Key          string       `json:"key"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Icon         string       `json:"icon"`
	Category     string       `json:"category"`
	XPReward     int          `json:"xp_reward"`
	TalentReward int          `json:"talent_reward"`
	Item         *AwardedItem `json:"item,omitempty"`
}

type AchievementResponse struct {
	ID           uint                `json:"id"`
	Key          string              `json:"key"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Icon         string              `json:"icon"`
	Category     string              `json:"category"`
	Requirement  RequirementResponse `json:"requirement"`
	XPReward     int                 `json:"xp_reward"`
	TalentReward int                 `json:"talent_reward"`
	Unlocked     bool                `json:"unlocked"`
	UnlockedAt   *time.Time          `json:"unlocked_at,omitempty"`
}

type RequirementResponse struct {
	Book  string `json:"book,omitempty"`
	Value int    `json:"value,omitempty"`
}
