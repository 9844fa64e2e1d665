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

type GroupRepository interface {
	Transaction(ctx context.Context, fn func(tx GroupRepository) error) error
	FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	Create(ctx context.Context, group *entity.Group) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Group, error)
	FindByIDWithMembers(ctx context.Context, id uuid.UUID) (*entity.Group, error)
	FindByInviteCode(ctx context.Context, code string) (*entity.Group, error)
	LockGroup(ctx context.Context, id uuid.UUID) (*entity.Group, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Group, error)
	ListOpen(ctx context.Context, query string, limit, offset int) ([]entity.Group, int64, error)
	ListAll(ctx context.Context) ([]entity.Group, error)

	// AddMember reports false when the user is already a member.
	AddMember(ctx context.Context, membership *entity.GroupMembership) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	FindMembership(ctx context.Context, groupID, userID uuid.UUID) (*entity.GroupMembership, error)
	SetRole(ctx context.Context, groupID, userID uuid.UUID, role string) error
	CountMembers(ctx context.Context, groupID uuid.UUID) (int64, error)
	MemberCounts(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Transaction(ctx context.Context, fn func(tx GroupRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&groupRepository{db: tx})
	})
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (r *groupRepository) FindUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, notFound(err, apperror.ErrUserNotFound)
	}
	return &user, nil
}

func (r *groupRepository) Create(ctx context.Context, group *entity.Group) error {
	return r.db.WithContext(ctx).Omit("Members").Create(group).Error
}

func (r *groupRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	var group entity.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, notFound(err, apperror.ErrGroupNotFound)
	}
	return &group, nil
}

func (r *groupRepository) FindByIDWithMembers(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	var group entity.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("role ASC, joined_at ASC")
		}).
		Preload("Members.User").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, notFound(err, apperror.ErrGroupNotFound)
	}
	return &group, nil
}

func (r *groupRepository) FindByInviteCode(ctx context.Context, code string) (*entity.Group, error) {
	var group entity.Group
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&group).Error; err != nil {
		return nil, notFound(err, apperror.ErrGroupNotFound)
	}
	return &group, nil
}

func (r *groupRepository) LockGroup(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	var group entity.Group
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&group).Error; err != nil {
		return nil, notFound(err, apperror.ErrGroupNotFound)
	}
	return &group, nil
}

func (r *groupRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Group{}).Where("id = ?", id).Updates(updates).Error
}

func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Select(clause.Associations).Delete(&entity.Group{ID: id}).Error
}

func (r *groupRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Group, error) {
	var groups []entity.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships gm ON gm.group_id = groups.id").
		Where("gm.user_id = ?", userID).
		Order("gm.joined_at ASC").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) ListOpen(ctx context.Context, query string, limit, offset int) ([]entity.Group, int64, error) {
	db := r.db.WithContext(ctx).Model(&entity.Group{}).Where("open_for_challenges = ?", true)
	if query != "" {
		db = db.Where("name ILIKE ?", "%"+query+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groups []entity.Group
	err := db.Order("weekly_xp DESC, created_at ASC").Limit(limit).Offset(offset).Find(&groups).Error
	return groups, total, err
}

func (r *groupRepository) ListAll(ctx context.Context) ([]entity.Group, error) {
	var groups []entity.Group
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&groups).Error
	return groups, err
}

func (r *groupRepository) AddMember(ctx context.Context, membership *entity.GroupMembership) (bool, error) {
	res := r.db.WithContext(ctx).Omit("User").Clauses(clause.OnConflict{DoNothing: true}).Create(membership)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&entity.GroupMembership{}).Error
}

func (r *groupRepository) FindMembership(ctx context.Context, groupID, userID uuid.UUID) (*entity.GroupMembership, error) {
	var membership entity.GroupMembership
	err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *groupRepository) SetRole(ctx context.Context, groupID, userID uuid.UUID, role string) error {
	return r.db.WithContext(ctx).Model(&entity.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role).Error
}

func (r *groupRepository) CountMembers(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.GroupMembership{}).Where("group_id = ?", groupID).Count(&count).Error
	return count, err
}

func (r *groupRepository) MemberCounts(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(groupIDs))
	if len(groupIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		GroupID uuid.UUID
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&entity.GroupMembership{}).
		Select("group_id, COUNT(*) AS count").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.GroupID] = row.Count
	}
	return counts, nil
}
