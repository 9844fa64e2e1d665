package repository

import (
	"context"
	"errors"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookCount struct {
	Book      string
	Completed int
}

type ProgressionRepository interface {
	// Transaction runs fn with a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx ProgressionRepository) error) error

	FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateStreak(ctx context.Context, userID uuid.UUID, current, longest int, lastReadDate string) error
	CreditXP(ctx context.Context, credit Credit) (int, error)
	AddTalents(ctx context.Context, userID uuid.UUID, amount int) error

	// CreateChapterCompletion inserts the row unless it already exists; created is false on a repeat.
	CreateChapterCompletion(ctx context.Context, completion *entity.ChapterCompletion) (created bool, err error)
	CountCompletedChapters(ctx context.Context, userID uuid.UUID, book string) (int, error)
	CompletedChaptersByBook(ctx context.Context, userID uuid.UUID) ([]BookCount, error)

	SumRollingXP(ctx context.Context, userID uuid.UUID, fromDay, toDay string) (int, error)
	DeleteRollingDaysBefore(ctx context.Context, day string) (int64, error)
	ListTierThresholds(ctx context.Context) ([]entity.TierThreshold, error)
	UpdateTier(ctx context.Context, userID uuid.UUID, tierName string) error
}

type progressionRepository struct {
	db *gorm.DB
}

func NewProgressionRepository(db *gorm.DB) ProgressionRepository {
	return &progressionRepository{db: db}
}

func (r *progressionRepository) Transaction(ctx context.Context, fn func(tx ProgressionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&progressionRepository{db: tx})
	})
}

func (r *progressionRepository) FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *progressionRepository) LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *progressionRepository) UpdateStreak(ctx context.Context, userID uuid.UUID, current, longest int, lastReadDate string) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"current_streak": current,
		"longest_streak": longest,
		"last_read_date": lastReadDate,
	}).Error
}

func (r *progressionRepository) CreditXP(ctx context.Context, credit Credit) (int, error) {
	return CreditTx(r.db.WithContext(ctx), credit)
}

func (r *progressionRepository) AddTalents(ctx context.Context, userID uuid.UUID, amount int) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", userID).
		UpdateColumn("talents", gorm.Expr("talents + ?", amount)).Error
}

func (r *progressionRepository) CreateChapterCompletion(ctx context.Context, completion *entity.ChapterCompletion) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(completion)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *progressionRepository) CountCompletedChapters(ctx context.Context, userID uuid.UUID, book string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ChapterCompletion{}).
		Where("user_id = ? AND book = ?", userID, book).
		Count(&count).Error
	return int(count), err
}

func (r *progressionRepository) CompletedChaptersByBook(ctx context.Context, userID uuid.UUID) ([]BookCount, error) {
	var rows []BookCount
	err := r.db.WithContext(ctx).Model(&entity.ChapterCompletion{}).
		Select("book, COUNT(*) AS completed").
		Where("user_id = ?", userID).
		Group("book").
		Scan(&rows).Error
	return rows, err
}

func (r *progressionRepository) SumRollingXP(ctx context.Context, userID uuid.UUID, fromDay, toDay string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&entity.RollingXPDay{}).
		Select("COALESCE(SUM(xp_earned), 0)").
		Where("user_id = ? AND day >= ? AND day <= ?", userID, fromDay, toDay).
		Scan(&total).Error
	return total, err
}

func (r *progressionRepository) DeleteRollingDaysBefore(ctx context.Context, day string) (int64, error) {
	res := r.db.WithContext(ctx).Where("day < ?", day).Delete(&entity.RollingXPDay{})
	return res.RowsAffected, res.Error
}

func (r *progressionRepository) ListTierThresholds(ctx context.Context) ([]entity.TierThreshold, error) {
	var thresholds []entity.TierThreshold
	err := r.db.WithContext(ctx).Order("position ASC").Find(&thresholds).Error
	return thresholds, err
}

func (r *progressionRepository) UpdateTier(ctx context.Context, userID uuid.UUID, tierName string) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", userID).
		Update("current_tier", tierName).Error
}

