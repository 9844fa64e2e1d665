package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SideMetrics is one group's standing over a window of the XP ledger.
type SideMetrics struct {
	XP     int
	Active int
}

// MetricsWindow bounds a score computation. XP counts from Since, activity from ActiveFrom, both up to To.
type MetricsWindow struct {
	Since      time.Time
	ActiveFrom time.Time
	To         time.Time
}

type ChallengeRepository interface {
	Transaction(ctx context.Context, fn func(tx ChallengeRepository) error) error
	FindGroup(ctx context.Context, id uuid.UUID) (*entity.Group, error)
	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, challenge *entity.Challenge) error
	LockGroups(ctx context.Context, ids []uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)
	Lock(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)
	Save(ctx context.Context, challenge *entity.Challenge) error
	HasOpenChallenge(ctx context.Context, groupA, groupB uuid.UUID) (bool, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, status string) ([]entity.Challenge, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// TotalXP sums the lifetime XP of a group's current members.
	TotalXP(ctx context.Context, groupID uuid.UUID) (int, error)
	// Metrics reads both groups in one statement so they share a snapshot.
	Metrics(ctx context.Context, groupIDs []uuid.UUID, window MetricsWindow) (map[uuid.UUID]SideMetrics, error)
	// Snapshot is Metrics inside a read-only repeatable-read transaction.
	Snapshot(ctx context.Context, groupIDs []uuid.UUID, window MetricsWindow) (map[uuid.UUID]SideMetrics, error)
	// RecordWin credits a win to the group and to each of its current members.
	RecordWin(ctx context.Context, groupID uuid.UUID) error
}

// uniqueViolation is the postgres SQLSTATE raised by idx_challenges_open_pair.
const uniqueViolation = "23505"

type challengeRepository struct {
	db *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) Transaction(ctx context.Context, fn func(tx ChallengeRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&challengeRepository{db: tx})
	})
}

func (r *challengeRepository) FindGroup(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	var group entity.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *challengeRepository) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&entity.GroupMembership{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *challengeRepository) Create(ctx context.Context, challenge *entity.Challenge) error {
	err := r.db.WithContext(ctx).Omit("ChallengerGroup", "ChallengedGroup").Create(challenge).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperror.Transition("these groups already have a pending or active challenge")
	}
	return err
}

// LockGroups takes the group rows in id order so pair checks for the same groups serialize.
func (r *challengeRepository) LockGroups(ctx context.Context, ids []uuid.UUID) error {
	var locked []uuid.UUID
	return r.db.WithContext(ctx).Model(&entity.Group{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
}

func (r *challengeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := r.db.WithContext(ctx).
		Preload("ChallengerGroup").
		Preload("ChallengedGroup").
		Where("id = ?", id).
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *challengeRepository) Lock(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *challengeRepository) Save(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Omit("ChallengerGroup", "ChallengedGroup").Save(challenge).Error
}

func (r *challengeRepository) HasOpenChallenge(ctx context.Context, groupA, groupB uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Challenge{}).
		Where("status IN ?", []string{entity.ChallengePending, entity.ChallengeActive}).
		Where("(challenger_group_id = ? AND challenged_group_id = ?) OR (challenger_group_id = ? AND challenged_group_id = ?)",
			groupA, groupB, groupB, groupA).
		Count(&count).Error
	return count > 0, err
}

func (r *challengeRepository) ListByGroup(ctx context.Context, groupID uuid.UUID, status string) ([]entity.Challenge, error) {
	db := r.db.WithContext(ctx).
		Preload("ChallengerGroup").
		Preload("ChallengedGroup").
		Where("challenger_group_id = ? OR challenged_group_id = ?", groupID, groupID)
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var challenges []entity.Challenge
	err := db.Order("created_at DESC").Limit(100).Find(&challenges).Error
	return challenges, err
}

func (r *challengeRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&entity.Challenge{}).
		Where("status = ? AND end_time <= ?", entity.ChallengeActive, now).
		Order("end_time ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *challengeRepository) TotalXP(ctx context.Context, groupID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Select("COALESCE(SUM(users.total_xp), 0)").
		Joins("JOIN group_memberships gm ON gm.user_id = users.id").
		Where("gm.group_id = ?", groupID).
		Scan(&total).Error
	return total, err
}

func (r *challengeRepository) Metrics(ctx context.Context, groupIDs []uuid.UUID, window MetricsWindow) (map[uuid.UUID]SideMetrics, error) {
	from := window.Since
	if window.ActiveFrom.Before(from) {
		from = window.ActiveFrom
	}

	var rows []struct {
		GroupID uuid.UUID
		XP      int
		Active  int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT gm.group_id,
			COALESCE(SUM(e.amount) FILTER (WHERE e.created_at >= @since), 0) AS xp,
			COUNT(DISTINCT e.user_id) FILTER (WHERE e.created_at >= @active_from) AS active
		FROM group_memberships gm
		JOIN xp_events e ON e.user_id = gm.user_id AND e.created_at >= @from AND e.created_at <= @to
		WHERE gm.group_id IN @groups
		GROUP BY gm.group_id`,
		sql.Named("since", window.Since),
		sql.Named("active_from", window.ActiveFrom),
		sql.Named("from", from),
		sql.Named("to", window.To),
		sql.Named("groups", groupIDs),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	metrics := make(map[uuid.UUID]SideMetrics, len(groupIDs))
	for _, id := range groupIDs {
		metrics[id] = SideMetrics{}
	}
	for _, row := range rows {
		metrics[row.GroupID] = SideMetrics{XP: row.XP, Active: row.Active}
	}
	return metrics, nil
}

func (r *challengeRepository) Snapshot(ctx context.Context, groupIDs []uuid.UUID, window MetricsWindow) (map[uuid.UUID]SideMetrics, error) {
	var metrics map[uuid.UUID]SideMetrics
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		metrics, err = (&challengeRepository{db: tx}).Metrics(ctx, groupIDs, window)
		return err
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return metrics, err
}

// RecordWin locks member rows in id order before the group row, the same order CreditTx
// takes them, so a concurrent credit cannot deadlock against it.
func (r *challengeRepository) RecordWin(ctx context.Context, groupID uuid.UUID) error {
	db := r.db.WithContext(ctx)

	var memberIDs []uuid.UUID
	if err := db.Model(&entity.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", db.Model(&entity.GroupMembership{}).Select("user_id").Where("group_id = ?", groupID)).
		Order("id").
		Pluck("id", &memberIDs).Error; err != nil {
		return err
	}

	if len(memberIDs) > 0 {
		if err := db.Model(&entity.User{}).Where("id IN ?", memberIDs).
			UpdateColumn("challenge_wins", gorm.Expr("challenge_wins + 1")).Error; err != nil {
			return err
		}
	}

	return db.Model(&entity.Group{}).Where("id = ?", groupID).
		UpdateColumn("challenge_wins", gorm.Expr("challenge_wins + 1")).Error
}
