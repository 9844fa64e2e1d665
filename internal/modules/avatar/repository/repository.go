package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AvatarRepository interface {
	Transaction(ctx context.Context, fn func(tx AvatarRepository) error) error
	ListItems(ctx context.Context) ([]entity.AvatarItem, error)
	FindItem(ctx context.Context, itemID uint) (*entity.AvatarItem, error)
	OwnedItems(ctx context.Context, userID uuid.UUID) ([]entity.UserAvatarItem, error)
	LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	// GrantItem reports false when the user already owns the item.
	GrantItem(ctx context.Context, owned *entity.UserAvatarItem) (bool, error)
	SpendTalents(ctx context.Context, userID uuid.UUID, amount int) error
}

type avatarRepository struct {
	db *gorm.DB
}

func NewAvatarRepository(db *gorm.DB) AvatarRepository {
	return &avatarRepository{db: db}
}

func (r *avatarRepository) Transaction(ctx context.Context, fn func(tx AvatarRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&avatarRepository{db: tx})
	})
}

func (r *avatarRepository) ListItems(ctx context.Context) ([]entity.AvatarItem, error) {
	var items []entity.AvatarItem
	err := r.db.WithContext(ctx).Order("slot ASC, talent_cost ASC, id ASC").Find(&items).Error
	return items, err
}

func (r *avatarRepository) FindItem(ctx context.Context, itemID uint) (*entity.AvatarItem, error) {
	var item entity.AvatarItem
	if err := r.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *avatarRepository) OwnedItems(ctx context.Context, userID uuid.UUID) ([]entity.UserAvatarItem, error) {
	var owned []entity.UserAvatarItem
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&owned).Error
	return owned, err
}

func (r *avatarRepository) LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
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

func (r *avatarRepository) GrantItem(ctx context.Context, owned *entity.UserAvatarItem) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(owned)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *avatarRepository) SpendTalents(ctx context.Context, userID uuid.UUID, amount int) error {
	res := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ? AND talents >= ?", userID, amount).
		UpdateColumn("talents", gorm.Expr("talents - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("insufficient talents: %w", apperror.ErrInvalidInput)
	}
	return nil
}
