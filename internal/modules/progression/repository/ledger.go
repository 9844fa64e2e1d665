package repository

import (
	"fmt"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credit is one XP grant flowing through the ledger.
type Credit struct {
	UserID    uuid.UUID
	Amount    int
	Source    string
	Reference string
	Day       string // app-local calendar day of At
	WeekStart string // Sunday opening the week of At
	At        time.Time
}

// CreditTx applies a credit inside tx: total XP, the rolling day bucket, the ledger row,
// and the weekly XP of every group the user belongs to. It returns the new total.
// Every XP-granting path goes through here.
func CreditTx(tx *gorm.DB, c Credit) (int, error) {
	if c.Amount < 0 {
		return 0, fmt.Errorf("negative credit %d: %w", c.Amount, apperror.ErrInvalidInput)
	}

	var user entity.User
	res := tx.Model(&user).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "total_xp"}}}).
		Where("id = ?", c.UserID).
		UpdateColumn("total_xp", gorm.Expr("total_xp + ?", c.Amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperror.ErrUserNotFound
	}

	if c.Amount == 0 {
		return user.TotalXP, nil
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"xp_earned":  gorm.Expr("rolling_xp_days.xp_earned + ?", c.Amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&entity.RollingXPDay{
		UserID:   c.UserID,
		Day:      c.Day,
		XPEarned: c.Amount,
	}).Error; err != nil {
		return 0, err
	}

	if err := tx.Create(&entity.XPEvent{
		UserID:    c.UserID,
		Source:    c.Source,
		Amount:    c.Amount,
		Reference: c.Reference,
		Day:       c.Day,
		CreatedAt: c.At,
	}).Error; err != nil {
		return 0, err
	}

	if err := contributeToGroups(tx, c); err != nil {
		return 0, err
	}

	return user.TotalXP, nil
}

// contributeToGroups rolls stale weeks over lazily before adding the contribution,
// then re-derives the level from the weekly total.
func contributeToGroups(tx *gorm.DB, c Credit) error {
	var groups []entity.Group
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", tx.Model(&entity.GroupMembership{}).Select("group_id").Where("user_id = ?", c.UserID)).
		Order("id").
		Find(&groups).Error; err != nil {
		return err
	}

	for _, g := range groups {
		weekly, level := rollWeek(g.WeeklyXP, g.WeekStartDate, c.WeekStart, c.Amount)
		if err := tx.Model(&entity.Group{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
			"weekly_xp":       weekly,
			"week_start_date": c.WeekStart,
			"current_level":   level,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// rollWeek adds amount to a group's weekly XP, starting over from zero when the stored
// week is not the current one, and returns the level the new total classifies as.
func rollWeek(stored int, storedWeek, currentWeek string, amount int) (int, string) {
	weekly := stored
	if storedWeek != currentWeek {
		weekly = 0
	}
	weekly += amount
	return weekly, tier.ClassifyGroup(weekly).Name
}
