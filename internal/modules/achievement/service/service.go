package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	achievementDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/dto"
	achievementRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/repository"
	notifService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/service"
	progressionRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/calendar"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/scripture"
	"github.com/google/uuid"
)

type AchievementService interface {
	CheckXpAchievements(ctx context.Context, userID uuid.UUID, totalXP int) ([]achievementDto.AwardedAchievement, error)
	CheckStreakAchievements(ctx context.Context, userID uuid.UUID, currentStreak int) ([]achievementDto.AwardedAchievement, error)
	CheckBookAchievement(ctx context.Context, userID uuid.UUID, book string) ([]achievementDto.AwardedAchievement, error)
	CheckAllBookAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error)
	// CheckAllMiscAchievements runs the xp, streak and special categories against one user snapshot.
	CheckAllMiscAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error)
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AchievementResponse, error)
}

type predicate func(req entity.AchievementRequirement) bool

type achievementService struct {
	repo     achievementRepo.AchievementRepository
	tasks    queue.Producer
	notifier notifService.NotificationService
	loc      *time.Location
	now      func() time.Time
}

func NewAchievementService(repo achievementRepo.AchievementRepository, tasks queue.Producer, notifier notifService.NotificationService, loc *time.Location) AchievementService {
	if loc == nil {
		loc = time.UTC
	}
	return &achievementService{
		repo:     repo,
		tasks:    tasks,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *achievementService) CheckXpAchievements(ctx context.Context, userID uuid.UUID, totalXP int) ([]achievementDto.AwardedAchievement, error) {
	return s.run(ctx, userID, map[string]predicate{
		entity.CategoryXPMilestone: atLeast(totalXP),
	})
}

func (s *achievementService) CheckStreakAchievements(ctx context.Context, userID uuid.UUID, currentStreak int) ([]achievementDto.AwardedAchievement, error) {
	return s.run(ctx, userID, map[string]predicate{
		entity.CategoryStreak: atLeast(currentStreak),
	})
}

func (s *achievementService) CheckBookAchievement(ctx context.Context, userID uuid.UUID, book string) ([]achievementDto.AwardedAchievement, error) {
	counts, err := s.repo.CompletedChaptersByBook(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, map[string]predicate{
		entity.CategoryBookCompletion: func(req entity.AchievementRequirement) bool {
			return req.Book == book && bookFinished(counts, req.Book)
		},
	})
}

func (s *achievementService) CheckAllBookAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error) {
	counts, err := s.repo.CompletedChaptersByBook(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, map[string]predicate{
		entity.CategoryBookCompletion: func(req entity.AchievementRequirement) bool {
			return bookFinished(counts, req.Book)
		},
	})
}

func (s *achievementService) CheckAllMiscAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, map[string]predicate{
		entity.CategoryXPMilestone: atLeast(user.TotalXP),
		entity.CategoryStreak:      atLeast(user.CurrentStreak),
		entity.CategorySpecial:     atLeast(user.ChallengeWins),
	})
}

func atLeast(value int) predicate {
	return func(req entity.AchievementRequirement) bool {
		return req.Value > 0 && value >= req.Value
	}
}

func bookFinished(counts map[string]int, book string) bool {
	total := scripture.ChapterCount(book)
	return total > 0 && counts[book] >= total
}

// run evaluates every category against values captured before the pass, so reward XP
// granted here can only unlock further achievements through the follow-up task.
func (s *achievementService) run(ctx context.Context, userID uuid.UUID, checks map[string]predicate) ([]achievementDto.AwardedAchievement, error) {
	unlocked, err := s.repo.UnlockedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[uint]bool, len(unlocked))
	for _, ua := range unlocked {
		held[ua.AchievementID] = true
	}

	awarded := []achievementDto.AwardedAchievement{}
	rewardXP := 0

	for _, category := range []string{entity.CategoryBookCompletion, entity.CategoryXPMilestone, entity.CategoryStreak, entity.CategorySpecial} {
		satisfied, ok := checks[category]
		if !ok {
			continue
		}

		catalog, err := s.repo.ListByCategory(ctx, category)
		if err != nil {
			return awarded, err
		}

		for i := range catalog {
			achievement := &catalog[i]
			if held[achievement.ID] || !satisfied(achievement.ParsedRequirement()) {
				continue
			}

			result, ok, err := s.award(ctx, userID, achievement)
			if err != nil {
				return awarded, err
			}
			if !ok {
				continue
			}
			held[achievement.ID] = true
			awarded = append(awarded, *result)
			rewardXP += achievement.XPReward
		}
	}

	if rewardXP > 0 && s.tasks != nil {
		if err := s.tasks.Enqueue(context.WithoutCancel(ctx), queue.NewTask(queue.TaskRecomputeProgress, userID)); err != nil {
			log.Printf("Failed to enqueue follow-up recompute for user %s: %v", userID, err)
		}
	}

	return awarded, nil
}

func (s *achievementService) award(ctx context.Context, userID uuid.UUID, achievement *entity.Achievement) (*achievementDto.AwardedAchievement, bool, error) {
	now := s.now()
	credit := progressionRepo.Credit{
		UserID:    userID,
		Source:    entity.SourceAchievementReward,
		Reference: achievement.Key,
		Day:       calendar.Day(now, s.loc),
		WeekStart: calendar.WeekStart(now, s.loc),
		At:        now,
	}

	ok, item, err := s.repo.Award(ctx, achievement, credit)
	if err != nil {
		return nil, false, fmt.Errorf("award %s: %w", achievement.Key, err)
	}
	if !ok {
		return nil, false, nil
	}

	result := &achievementDto.AwardedAchievement{
		ID:           achievement.ID,
		Key:          achievement.Key,
		Name:         achievement.Name,
		Description:  achievement.Description,
		Icon:         achievement.Icon,
		Category:     achievement.Category,
		XPReward:     achievement.XPReward,
		TalentReward: achievement.TalentReward,
	}
	if item != nil {
		result.Item = &achievementDto.AwardedItem{ID: item.ID, Key: item.Key, Name: item.Name, Slot: item.Slot}
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, entity.NotificationAchievementUnlocked, "achievement", achievement.Key,
			fmt.Sprintf("Achievement unlocked: %s", achievement.Name))
	}

	return result, true, nil
}

func (s *achievementService) ListAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AchievementResponse, error) {
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return nil, err
	}

	catalog, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.repo.UnlockedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[uint]time.Time, len(unlocked))
	for _, ua := range unlocked {
		unlockedAt[ua.AchievementID] = ua.UnlockedAt
	}

	responses := make([]achievementDto.AchievementResponse, 0, len(catalog))
	for _, a := range catalog {
		req := a.ParsedRequirement()
		resp := achievementDto.AchievementResponse{
			ID:           a.ID,
			Key:          a.Key,
			Name:         a.Name,
			Description:  a.Description,
			Icon:         a.Icon,
			Category:     a.Category,
			Requirement:  achievementDto.RequirementResponse{Book: req.Book, Value: req.Value},
			XPReward:     a.XPReward,
			TalentReward: a.TalentReward,
		}
		if at, ok := unlockedAt[a.ID]; ok {
			resp.Unlocked = true
			resp.UnlockedAt = &at
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
