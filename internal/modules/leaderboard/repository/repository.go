package repository

import (
	"context"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserXPRow struct {
	UserID        uuid.UUID
	Username      string
	DisplayName   string
	TotalXP       int
	RollingXP     int
	CurrentStreak int
}

type GroupXPRow struct {
	GroupID       uuid.UUID
	Name          string
	ImageURL      *string
	WeeklyXP      int
	MemberCount   int
	ChallengeWins int
}

type LeaderboardRepository interface {
	// TopUsers orders by rolling XP (buckets on or after windowStart) or by lifetime XP.
	TopUsers(ctx context.Context, byRolling bool, windowStart string, limit int) ([]UserXPRow, error)
	// TopGroups orders by weekly XP, counting a stale week as zero.
	TopGroups(ctx context.Context, weekStart string, limit int) ([]GroupXPRow, error)
	ListTierThresholds(ctx context.Context) ([]entity.TierThreshold, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) TopUsers(ctx context.Context, byRolling bool, windowStart string, limit int) ([]UserXPRow, error) {
	db := r.db.WithContext(ctx)

	rolling := db.Model(&entity.RollingXPDay{}).
		Select("user_id, SUM(xp_earned) AS xp").
		Where("day >= ?", windowStart).
		Group("user_id")

	order := "total_xp DESC"
	if byRolling {
		order = "rolling_xp DESC, total_xp DESC"
	}

	var rows []UserXPRow
	err := db.Table("users AS u").
		Select("u.id AS user_id, u.username, u.display_name, u.total_xp, u.current_streak, COALESCE(r.xp, 0) AS rolling_xp").
		Joins("LEFT JOIN (?) AS r ON r.user_id = u.id", rolling).
		Order(order).
		Order("u.username ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) TopGroups(ctx context.Context, weekStart string, limit int) ([]GroupXPRow, error) {
	var rows []GroupXPRow
	err := r.db.WithContext(ctx).Table("groups AS g").
		Select(`g.id AS group_id, g.name, g.image_url, g.challenge_wins,
			CASE WHEN g.week_start_date = ? THEN g.weekly_xp ELSE 0 END AS weekly_xp,
			(SELECT COUNT(*) FROM group_memberships m WHERE m.group_id = g.id) AS member_count`, weekStart).
		Order("weekly_xp DESC").
		Order("g.challenge_wins DESC").
		Order("g.name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) ListTierThresholds(ctx context.Context) ([]entity.TierThreshold, error) {
	var thresholds []entity.TierThreshold
	err := r.db.WithContext(ctx).Order("position ASC").Find(&thresholds).Error
	return thresholds, err
}
