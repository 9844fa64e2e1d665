package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	achievementDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/dto"
	notifService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/service"
	progressionDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/dto"
	progressionRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/calendar"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/scripture"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"github.com/google/uuid"
)

const (
	XPPerVerse         = 1
	XPPerCorrectAnswer = 5
	XPPerChapter       = 10
	TalentsPerChapter  = 1
)

// BookAchievementChecker evaluates book achievements right after a book is finished,
// so the reward can travel back with the chapter completion.
type BookAchievementChecker interface {
	CheckBookAchievement(ctx context.Context, userID uuid.UUID, book string) ([]achievementDto.AwardedAchievement, error)
}

type ProgressionService interface {
	RecordVerseRead(ctx context.Context, userID uuid.UUID) (*progressionDto.VerseReadResult, error)
	RecordQuizAnswer(ctx context.Context, userID uuid.UUID, correct bool, book string, chapter int) (*progressionDto.QuizAnswerResult, error)
	CompleteChapter(ctx context.Context, userID uuid.UUID, book string, chapter int) (*progressionDto.CompleteChapterResult, error)
	GetProgressSummary(ctx context.Context, userID uuid.UUID) (*progressionDto.ProgressSummary, error)
	GetAllBookProgress(ctx context.Context, userID uuid.UUID) ([]progressionDto.BookProgress, error)
	// RecomputeTier re-derives the cached tier from the rolling window. Safe to repeat.
	RecomputeTier(ctx context.Context, userID uuid.UUID) (*tier.Status, error)
	// PurgeRollingDays drops buckets that fell out of the rolling window.
	PurgeRollingDays(ctx context.Context) (int64, error)
}

type progressionService struct {
	repo         progressionRepo.ProgressionRepository
	tasks        queue.Producer
	achievements BookAchievementChecker
	notifier     notifService.NotificationService
	loc          *time.Location
	now          func() time.Time
}

func NewProgressionService(repo progressionRepo.ProgressionRepository, tasks queue.Producer, achievements BookAchievementChecker, notifier notifService.NotificationService, loc *time.Location) ProgressionService {
	if loc == nil {
		loc = time.UTC
	}
	return &progressionService{
		repo:         repo,
		tasks:        tasks,
		achievements: achievements,
		notifier:     notifier,
		loc:          loc,
		now:          time.Now,
	}
}

func (s *progressionService) credit(userID uuid.UUID, amount int, source, reference string, at time.Time) progressionRepo.Credit {
	return progressionRepo.Credit{
		UserID:    userID,
		Amount:    amount,
		Source:    source,
		Reference: reference,
		Day:       calendar.Day(at, s.loc),
		WeekStart: calendar.WeekStart(at, s.loc),
		At:        at,
	}
}

func (s *progressionService) RecordVerseRead(ctx context.Context, userID uuid.UUID) (*progressionDto.VerseReadResult, error) {
	now := s.now()
	today := calendar.Day(now, s.loc)

	var result progressionDto.VerseReadResult
	err := s.repo.Transaction(ctx, func(tx progressionRepo.ProgressionRepository) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		streak, err := s.advanceStreak(ctx, tx, user, today)
		if err != nil {
			return err
		}

		total, err := tx.CreditXP(ctx, s.credit(userID, XPPerVerse, entity.SourceVerseRead, "", now))
		if err != nil {
			return err
		}

		result = progressionDto.VerseReadResult{
			XPAwarded:  XPPerVerse,
			TotalXP:    total,
			StreakInfo: streak,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.schedule(ctx, queue.TaskRecomputeProgress, userID)
	return &result, nil
}

func (s *progressionService) RecordQuizAnswer(ctx context.Context, userID uuid.UUID, correct bool, book string, chapter int) (*progressionDto.QuizAnswerResult, error) {
	canonical, err := validChapter(book, chapter)
	if err != nil {
		return nil, err
	}

	if !correct {
		user, err := s.repo.FindUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &progressionDto.QuizAnswerResult{XPAwarded: 0, TotalXP: user.TotalXP}, nil
	}

	now := s.now()
	reference := fmt.Sprintf("%s:%d", canonical.Name, chapter)

	var total int
	err = s.repo.Transaction(ctx, func(tx progressionRepo.ProgressionRepository) error {
		var err error
		total, err = tx.CreditXP(ctx, s.credit(userID, XPPerCorrectAnswer, entity.SourceQuizAnswer, reference, now))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.schedule(ctx, queue.TaskRecomputeProgress, userID)
	return &progressionDto.QuizAnswerResult{XPAwarded: XPPerCorrectAnswer, TotalXP: total}, nil
}

// validChapter resolves book to its catalog entry so ledger references stay canonical.
func validChapter(book string, chapter int) (scripture.Book, error) {
	canonical, ok := scripture.Lookup(book)
	if !ok {
		return scripture.Book{}, fmt.Errorf("unknown book %q: %w", book, apperror.ErrInvalidInput)
	}
	if !scripture.ValidChapter(canonical.Name, chapter) {
		return scripture.Book{}, fmt.Errorf("%s has no chapter %d: %w", canonical.Name, chapter, apperror.ErrInvalidInput)
	}
	return canonical, nil
}

func (s *progressionService) CompleteChapter(ctx context.Context, userID uuid.UUID, book string, chapter int) (*progressionDto.CompleteChapterResult, error) {
	canonical, err := validChapter(book, chapter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := calendar.Day(now, s.loc)
	result := progressionDto.CompleteChapterResult{
		Success:      true,
		Achievements: []achievementDto.AwardedAchievement{},
	}

	err = s.repo.Transaction(ctx, func(tx progressionRepo.ProgressionRepository) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		created, err := tx.CreateChapterCompletion(ctx, &entity.ChapterCompletion{
			UserID:      userID,
			Book:        canonical.Name,
			Chapter:     chapter,
			XPAwarded:   XPPerChapter,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if !created {
			result.AlreadyCompleted = true
			result.TotalXP = user.TotalXP
			result.StreakInfo = progressionDto.StreakInfo{
				CurrentStreak: user.CurrentStreak,
				LongestStreak: user.LongestStreak,
			}
			return nil
		}

		streak, err := s.advanceStreak(ctx, tx, user, today)
		if err != nil {
			return err
		}
		result.StreakInfo = streak

		reference := fmt.Sprintf("%s:%d", canonical.Name, chapter)
		total, err := tx.CreditXP(ctx, s.credit(userID, XPPerChapter, entity.SourceChapterComplete, reference, now))
		if err != nil {
			return err
		}
		if err := tx.AddTalents(ctx, userID, TalentsPerChapter); err != nil {
			return err
		}

		completed, err := tx.CountCompletedChapters(ctx, userID, canonical.Name)
		if err != nil {
			return err
		}

		result.XPAwarded = XPPerChapter
		result.TalentsAwarded = TalentsPerChapter
		result.TotalXP = total
		result.BookCompleted = completed >= canonical.Chapters
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCompleted {
		return &result, nil
	}

	if result.BookCompleted && s.achievements != nil {
		awarded, err := s.achievements.CheckBookAchievement(ctx, userID, canonical.Name)
		if err != nil {
			// The recompute task below covers the award if this pass failed.
			log.Printf("Book achievement check failed for user %s (%s): %v", userID, canonical.Name, err)
			s.schedule(ctx, queue.TaskCheckBookAchievements, userID)
		} else {
			result.Achievements = awarded
			for _, a := range awarded {
				result.TotalXP += a.XPReward
			}
		}
	}

	s.schedule(ctx, queue.TaskRecomputeProgress, userID)
	s.schedule(ctx, queue.TaskCheckMiscAchievements, userID)
	return &result, nil
}

// advanceStreak applies ComputeStreak to a locked user row and persists the outcome.
func (s *progressionService) advanceStreak(ctx context.Context, tx progressionRepo.ProgressionRepository, user *entity.User, today string) (progressionDto.StreakInfo, error) {
	streak := ComputeStreak(user.LastReadDate, today, user.CurrentStreak)
	longest := max(user.LongestStreak, streak.Current)

	if err := tx.UpdateStreak(ctx, user.ID, streak.Current, longest, today); err != nil {
		return progressionDto.StreakInfo{}, err
	}

	return progressionDto.StreakInfo{
		CurrentStreak: streak.Current,
		LongestStreak: longest,
		StreakUpdated: streak.Updated,
	}, nil
}

func (s *progressionService) schedule(ctx context.Context, kind queue.TaskType, userID uuid.UUID) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.Enqueue(context.WithoutCancel(ctx), queue.NewTask(kind, userID)); err != nil {
		log.Printf("Failed to enqueue %s for user %s: %v", kind, userID, err)
	}
}

func (s *progressionService) windowXP(ctx context.Context, userID uuid.UUID) (int, error) {
	today := calendar.Day(s.now(), s.loc)
	from, err := calendar.WindowStart(today, tier.RollingWindowDays)
	if err != nil {
		return 0, err
	}
	return s.repo.SumRollingXP(ctx, userID, from, today)
}

func (s *progressionService) ladder(ctx context.Context) []tier.Threshold {
	stored, err := s.repo.ListTierThresholds(ctx)
	if err != nil {
		log.Printf("Failed to load tier thresholds, using defaults: %v", err)
		return tier.DefaultUserTiers
	}
	if len(stored) == 0 {
		return tier.DefaultUserTiers
	}

	ladder := make([]tier.Threshold, 0, len(stored))
	for _, t := range stored {
		ladder = append(ladder, tier.Threshold{Name: t.Name, MinXP: t.MinXP, Position: t.Position, Color: t.Color})
	}
	if !tier.Validate(ladder) {
		log.Println("Stored tier thresholds are not strictly increasing, using defaults")
		return tier.DefaultUserTiers
	}
	return ladder
}

func (s *progressionService) RecomputeTier(ctx context.Context, userID uuid.UUID) (*tier.Status, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	window, err := s.windowXP(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := tier.Classify(s.ladder(ctx), window)
	if user.CurrentTier != nil && *user.CurrentTier == status.Name {
		return &status, nil
	}

	if err := s.repo.UpdateTier(ctx, userID, status.Name); err != nil {
		return nil, err
	}

	if user.CurrentTier != nil && s.notifier != nil {
		s.notifier.Notify(ctx, userID, entity.NotificationTierChanged, "tier", status.Name,
			fmt.Sprintf("Your tier changed from %s to %s with %d XP in the last %d days", *user.CurrentTier, status.Name, window, tier.RollingWindowDays))
	}

	return &status, nil
}

func (s *progressionService) GetProgressSummary(ctx context.Context, userID uuid.UUID) (*progressionDto.ProgressSummary, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	window, err := s.windowXP(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CompletedChaptersByBook(ctx, userID)
	if err != nil {
		return nil, err
	}

	chapters, books := 0, 0
	for _, c := range counts {
		chapters += c.Completed
		if total := scripture.ChapterCount(c.Book); total > 0 && c.Completed >= total {
			books++
		}
	}

	today := calendar.Day(s.now(), s.loc)
	active := false
	if user.LastReadDate != nil {
		if diff, err := calendar.DaysBetween(*user.LastReadDate, today); err == nil && diff >= 0 && diff <= 1 {
			active = true
		}
	}

	return &progressionDto.ProgressSummary{
		UserID:            user.ID.String(),
		Username:          user.Username,
		DisplayName:       user.DisplayName,
		TotalXP:           user.TotalXP,
		CurrentStreak:     user.CurrentStreak,
		LongestStreak:     user.LongestStreak,
		StreakActive:      active,
		LastReadDate:      user.LastReadDate,
		WindowXP:          window,
		Tier:              tier.Classify(s.ladder(ctx), window),
		Talents:           user.Talents,
		ChallengeWins:     user.ChallengeWins,
		ChaptersCompleted: chapters,
		BooksCompleted:    books,
	}, nil
}

func (s *progressionService) GetAllBookProgress(ctx context.Context, userID uuid.UUID) ([]progressionDto.BookProgress, error) {
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return nil, err
	}

	counts, err := s.repo.CompletedChaptersByBook(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]int, len(counts))
	for _, c := range counts {
		completed[c.Book] = c.Completed
	}

	books := scripture.Books()
	progress := make([]progressionDto.BookProgress, 0, len(books))
	for _, b := range books {
		done := min(completed[b.Name], b.Chapters)
		progress = append(progress, progressionDto.BookProgress{
			Book:              b.Name,
			TotalChapters:     b.Chapters,
			CompletedChapters: done,
			Percent:           math.Round(float64(done)/float64(b.Chapters)*10000) / 100,
			Completed:         done >= b.Chapters,
		})
	}
	return progress, nil
}

func (s *progressionService) PurgeRollingDays(ctx context.Context) (int64, error) {
	today := calendar.Day(s.now(), s.loc)
	cutoff, err := calendar.WindowStart(today, tier.RollingWindowDays)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteRollingDaysBefore(ctx, cutoff)
}
