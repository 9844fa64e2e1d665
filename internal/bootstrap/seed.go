package bootstrap

import (
	"fmt"
	"log"
	"strings"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/scripture"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.XPEvent{},
		&entity.ChapterCompletion{},
		&entity.RollingXPDay{},
		&entity.TierThreshold{},
		&entity.Achievement{},
		&entity.UserAchievement{},
		&entity.AvatarItem{},
		&entity.UserAvatarItem{},
		&entity.Group{},
		&entity.GroupMembership{},
		&entity.Challenge{},
		&entity.Notification{},
	); err != nil {
		return err
	}

	// At most one pending or active challenge per unordered pair of groups.
	return db.Exec(openPairIndex).Error
}

const openPairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_challenges_open_pair
	ON challenges (LEAST(challenger_group_id, challenged_group_id), GREATEST(challenger_group_id, challenged_group_id))
	WHERE status IN ('pending', 'active')`

// Seed loads the static catalogs. Safe to run on every start.
func Seed(db *gorm.DB) error {
	if err := SeedTiers(db); err != nil {
		return fmt.Errorf("seed tiers: %w", err)
	}
	if err := SeedAchievements(db); err != nil {
		return fmt.Errorf("seed achievements: %w", err)
	}
	if err := SeedAvatarItems(db); err != nil {
		return fmt.Errorf("seed avatar items: %w", err)
	}
	return nil
}

func SeedTiers(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.TierThreshold{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		// An edited ladder is left alone.
		return nil
	}

	for _, t := range tier.DefaultUserTiers {
		row := entity.TierThreshold{Name: t.Name, MinXP: t.MinXP, Position: t.Position, Color: t.Color}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	log.Printf("Seeded %d tier thresholds", len(tier.DefaultUserTiers))
	return nil
}

// BookAchievementKey is the catalog key for finishing a book, e.g. book_1_samuel.
func BookAchievementKey(book string) string {
	return "book_" + strings.ReplaceAll(strings.ToLower(book), " ", "_")
}

func achievementCatalog() []entity.Achievement {
	var catalog []entity.Achievement

	for _, b := range scripture.Books() {
		catalog = append(catalog, entity.Achievement{
			Key:          BookAchievementKey(b.Name),
			Name:         b.Name + " Complete",
			Description:  fmt.Sprintf("Read all %d chapters of %s", b.Chapters, b.Name),
			Icon:         "book",
			Category:     entity.CategoryBookCompletion,
			Requirement:  entity.NewRequirement(entity.AchievementRequirement{Book: b.Name}),
			XPReward:     25,
			TalentReward: 2,
		})
	}

	streaks := []struct {
		days, xp, talents int
		name              string
	}{
		{3, 10, 1, "Kindled"},
		{7, 25, 2, "Faithful Week"},
		{30, 100, 5, "Steadfast"},
		{100, 250, 10, "Unwavering"},
		{365, 1000, 25, "Year of Devotion"},
	}
	for _, s := range streaks {
		catalog = append(catalog, entity.Achievement{
			Key:          fmt.Sprintf("streak_%d", s.days),
			Name:         s.name,
			Description:  fmt.Sprintf("Read %d days in a row", s.days),
			Icon:         "flame",
			Category:     entity.CategoryStreak,
			Requirement:  entity.NewRequirement(entity.AchievementRequirement{Value: s.days}),
			XPReward:     s.xp,
			TalentReward: s.talents,
		})
	}

	milestones := []struct {
		value, talents int
		name           string
	}{
		{100, 1, "First Fruits"},
		{500, 3, "Growing Roots"},
		{1000, 5, "Well Read"},
		{5000, 15, "Scholar"},
		{10000, 30, "Sage"},
	}
	for _, m := range milestones {
		catalog = append(catalog, entity.Achievement{
			Key:          fmt.Sprintf("xp_%d", m.value),
			Name:         m.name,
			Description:  fmt.Sprintf("Earn %d XP", m.value),
			Icon:         "star",
			Category:     entity.CategoryXPMilestone,
			Requirement:  entity.NewRequirement(entity.AchievementRequirement{Value: m.value}),
			TalentReward: m.talents,
		})
	}

	specials := []struct {
		key, name, description, icon string
		wins, xp, talents            int
	}{
		{"first_victory", "First Victory", "Win a group challenge", "trophy", 1, 50, 3},
		{"champion", "Champion", "Win five group challenges", "trophy", 5, 150, 10},
		{"undefeated", "Hall of Heroes", "Win ten group challenges", "crown", 10, 300, 20},
	}
	for _, sp := range specials {
		catalog = append(catalog, entity.Achievement{
			Key:          sp.key,
			Name:         sp.name,
			Description:  sp.description,
			Icon:         sp.icon,
			Category:     entity.CategorySpecial,
			Requirement:  entity.NewRequirement(entity.AchievementRequirement{Value: sp.wins}),
			XPReward:     sp.xp,
			TalentReward: sp.talents,
		})
	}

	return catalog
}

func SeedAchievements(db *gorm.DB) error {
	catalog := achievementCatalog()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).CreateInBatches(catalog, 100)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Seeded %d achievements", result.RowsAffected)
	}
	return nil
}

func avatarCatalog() []entity.AvatarItem {
	return []entity.AvatarItem{
		// Achievement-linked, key shared with the achievement.
		{Key: "streak_7", Name: "Lamp of the Faithful", Slot: "staff", Unlockable: true},
		{Key: "streak_30", Name: "Steadfast Mantle", Slot: "robe", Unlockable: true},
		{Key: "streak_365", Name: "Crown of Devotion", Slot: "head", Unlockable: true},
		{Key: "xp_1000", Name: "Scroll Satchel", Slot: "staff", Unlockable: true},
		{Key: BookAchievementKey("Genesis"), Name: "Garden Wreath", Slot: "head", Unlockable: true},
		{Key: BookAchievementKey("Psalms"), Name: "Harp of David", Slot: "staff", Unlockable: true},
		{Key: BookAchievementKey("Revelation"), Name: "Robe of White", Slot: "robe", Unlockable: true},
		{Key: "first_victory", Name: "Victor's Laurel", Slot: "head", Unlockable: true},

		// Purchasable with talents.
		{Key: "shepherd_staff", Name: "Shepherd's Staff", Slot: "staff", TalentCost: 5},
		{Key: "linen_robe", Name: "Linen Robe", Slot: "robe", TalentCost: 8},
		{Key: "olive_circlet", Name: "Olive Circlet", Slot: "head", TalentCost: 12},
		{Key: "dawn_aura", Name: "Dawn Aura", Slot: "aura", TalentCost: 20},
		{Key: "starlight_aura", Name: "Starlight Aura", Slot: "aura", TalentCost: 40},
	}
}

func SeedAvatarItems(db *gorm.DB) error {
	catalog := avatarCatalog()
	for i := range catalog {
		catalog[i].Category = entity.AvatarItemCategory
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&catalog)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Seeded %d avatar items", result.RowsAffected)
	}
	return nil
}
