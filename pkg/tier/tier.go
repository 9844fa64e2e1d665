package tier

import (
	"math"
	"sort"
)

// RollingWindowDays is the size of the trailing window used for user tiers.
const RollingWindowDays = 14

// Threshold is one rung of a ladder. Position 1 is the lowest rung.
type Threshold struct {
	Name     string `json:"name"`
	MinXP    int    `json:"min_xp"`
	Position int    `json:"position"`
	Color    string `json:"color,omitempty"`
}

// Status describes where an XP value sits on a ladder.
type Status struct {
	Name          string  `json:"name"`
	Color         string  `json:"color,omitempty"`
	NextName      string  `json:"next_name"` // "Max Level" on the top rung
	CurrentPoints int     `json:"current_points"`
	TargetPoints  int     `json:"target_points"`
	Progress      float64 `json:"progress"` // 0-100 toward the next rung
}

const MaxLevel = "Max Level"

// DefaultUserTiers applies when no thresholds are stored.
var DefaultUserTiers = []Threshold{
	{Name: "Bronze", MinXP: 0, Position: 1, Color: "#CD7F32"},
	{Name: "Silver", MinXP: 100, Position: 2, Color: "#C0C0C0"},
	{Name: "Gold", MinXP: 300, Position: 3, Color: "#FFD700"},
	{Name: "Platinum", MinXP: 600, Position: 4, Color: "#E5E4E2"},
	{Name: "Diamond", MinXP: 1000, Position: 5, Color: "#B9F2FF"},
}

// GroupLevels is the fixed weekly ladder for groups.
var GroupLevels = []Threshold{
	{Name: "Angels", MinXP: 0, Position: 1},
	{Name: "Archangels", MinXP: 500, Position: 2},
	{Name: "Virtues", MinXP: 1000, Position: 3},
	{Name: "Cherubim", MinXP: 2000, Position: 4},
	{Name: "Seraphim", MinXP: 5000, Position: 5},
}

// Classify returns the status for xp on the ladder. The chosen rung is the one with
// the greatest MinXP not above xp, or the lowest rung when xp is below every rung.
func Classify(ladder []Threshold, xp int) Status {
	status := Status{CurrentPoints: xp}
	if len(ladder) == 0 {
		return status
	}

	rungs := sorted(ladder)
	idx := 0
	for i, rung := range rungs {
		if rung.MinXP <= xp {
			idx = i
		}
	}

	current := rungs[idx]
	status.Name = current.Name
	status.Color = current.Color

	if idx == len(rungs)-1 {
		status.NextName = MaxLevel
		status.TargetPoints = current.MinXP
		status.Progress = 100
		return status
	}

	next := rungs[idx+1]
	status.NextName = next.Name
	status.TargetPoints = next.MinXP
	if xp > 0 && next.MinXP > 0 {
		status.Progress = float64(xp) / float64(next.MinXP) * 100
	}

	// Round progress to 2 decimal places
	status.Progress = math.Round(status.Progress*100) / 100

	return status
}

// ClassifyGroup places weekly group XP on the fixed group ladder.
func ClassifyGroup(weeklyXP int) Status {
	return Classify(GroupLevels, weeklyXP)
}

// Validate reports whether a ladder is strictly increasing in both MinXP and Position.
func Validate(ladder []Threshold) bool {
	rungs := sorted(ladder)
	for i := 1; i < len(rungs); i++ {
		if rungs[i].MinXP <= rungs[i-1].MinXP || rungs[i].Position <= rungs[i-1].Position {
			return false
		}
	}
	return true
}

func sorted(ladder []Threshold) []Threshold {
	rungs := make([]Threshold, len(ladder))
	copy(rungs, ladder)
	sort.SliceStable(rungs, func(i, j int) bool {
		if rungs[i].Position != rungs[j].Position {
			return rungs[i].Position < rungs[j].Position
		}
		return rungs[i].MinXP < rungs[j].MinXP
	})
	return rungs
}
