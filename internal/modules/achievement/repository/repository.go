package repository

import (
	"context"
	"errors"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	progressionRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	ListAll(ctx context.Context) ([]entity.Achievement, error)
	ListByCategory(ctx context.Context, category string) ([]entity.Achievement, error)
	UnlockedByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserAchievement, error)
	CompletedChaptersByBook(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	// Award grants an achievement with its rewards in one transaction. It reports
	// awarded=false when the user already held it, including when a concurrent pass won the race.
	Award(ctx context.Context, achievement *entity.Achievement, credit progressionRepo.Credit) (awarded bool, item *entity.AvatarItem, err error)
}

type achievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) AchievementRepository {
	return &achievementRepository{db: db}
}

func (r *achievementRepository) FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *achievementRepository) ListAll(ctx context.Context) ([]entity.Achievement, error) {
	var achievements []entity.Achievement
	err := r.db.WithContext(ctx).Order("category ASC, id ASC").Find(&achievements).Error
	return achievements, err
}

func (r *achievementRepository) ListByCategory(ctx context.Context, category string) ([]entity.Achievement, error) {
	var achievements []entity.Achievement
	err := r.db.WithContext(ctx).Where("category = ?", category).Order("id ASC").Find(&achievements).Error
	return achievements, err
}

func (r *achievementRepository) UnlockedByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserAchievement, error) {
	var unlocked []entity.UserAchievement
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&unlocked).Error
	return unlocked, err
}

func (r *achievementRepository) CompletedChaptersByBook(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	var rows []progressionRepo.BookCount
	err := r.db.WithContext(ctx).Model(&entity.ChapterCompletion{}).
		Select("book, COUNT(*) AS completed").
		Where("user_id = ?", userID).
		Group("book").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Book] = row.Completed
	}
	return counts, nil
}

func (r *achievementRepository) Award(ctx context.Context, achievement *entity.Achievement, credit progressionRepo.Credit) (bool, *entity.AvatarItem, error) {
	var (
		awarded bool
		item    *entity.AvatarItem
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.UserAchievement{
			UserID:        credit.UserID,
			AchievementID: achievement.ID,
			UnlockedAt:    credit.At,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		awarded = true

		if achievement.XPReward > 0 {
			credit.Amount = achievement.XPReward
			if _, err := progressionRepo.CreditTx(tx, credit); err != nil {
				return err
			}
		}

		if achievement.TalentReward > 0 {
			if err := tx.Model(&entity.User{}).Where("id = ?", credit.UserID).
				UpdateColumn("talents", gorm.Expr("talents + ?", achievement.TalentReward)).Error; err != nil {
				return err
			}
		}

		var linked entity.AvatarItem
		err := tx.Where("key = ?", achievement.Key).First(&linked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.UserAvatarItem{
			UserID:     credit.UserID,
			ItemID:     linked.ID,
			Source:     entity.ItemSourceAchievement,
			AcquiredAt: credit.At,
		}).Error; err != nil {
			return err
		}
		item = &linked
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	return awarded, item, nil
}
