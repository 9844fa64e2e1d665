package service

import (
	"context"
	"log"
	"time"

	leaderboardDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/dto"
	leaderboardRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/calendar"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
)

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, query leaderboardDto.LeaderboardQuery) ([]leaderboardDto.LeaderboardEntry, error)
	GetGroupLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.GroupLeaderboardEntry, error)
}

type leaderboardService struct {
	repo leaderboardRepo.LeaderboardRepository
	loc  *time.Location
	now  func() time.Time
}

func NewLeaderboardService(repo leaderboardRepo.LeaderboardRepository, loc *time.Location) LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &leaderboardService{repo: repo, loc: loc, now: time.Now}
}

func (s *leaderboardService) ladder(ctx context.Context) []tier.Threshold {
	stored, err := s.repo.ListTierThresholds(ctx)
	if err != nil {
		log.Printf("Failed to load tier thresholds, using defaults: %v", err)
		return tier.DefaultUserTiers
	}

	ladder := make([]tier.Threshold, 0, len(stored))
	for _, t := range stored {
		ladder = append(ladder, tier.Threshold{Name: t.Name, MinXP: t.MinXP, Position: t.Position, Color: t.Color})
	}
	return ladderFrom(ladder)
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, query leaderboardDto.LeaderboardQuery) ([]leaderboardDto.LeaderboardEntry, error) {
	query.Normalize()

	today := calendar.Day(s.now(), s.loc)
	windowStart, err := calendar.WindowStart(today, tier.RollingWindowDays)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.TopUsers(ctx, query.Timeframe == leaderboardDto.TimeframeRolling, windowStart, query.Limit)
	if err != nil {
		return nil, err
	}

	ladder := s.ladder(ctx)
	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, leaderboardDto.LeaderboardEntry{
			UserID:        row.UserID.String(),
			Username:      row.Username,
			DisplayName:   row.DisplayName,
			Position:      i + 1,
			TotalXP:       row.TotalXP,
			RollingXP:     row.RollingXP,
			CurrentStreak: row.CurrentStreak,
			Tier:          tier.Classify(ladder, row.RollingXP),
			ActivityLabel: ActivityLabel(row.RollingXP),
		})
	}
	return entries, nil
}

func (s *leaderboardService) GetGroupLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.GroupLeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	weekStart := calendar.WeekStart(s.now(), s.loc)
	rows, err := s.repo.TopGroups(ctx, weekStart, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboardDto.GroupLeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, leaderboardDto.GroupLeaderboardEntry{
			GroupID:       row.GroupID.String(),
			Name:          row.Name,
			ImageURL:      row.ImageURL,
			Position:      i + 1,
			WeeklyXP:      row.WeeklyXP,
			WeekStartDate: weekStart,
			Level:         tier.ClassifyGroup(row.WeeklyXP),
			MemberCount:   row.MemberCount,
			ChallengeWins: row.ChallengeWins,
		})
	}
	return entries, nil
}
