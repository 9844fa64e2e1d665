// Package recompute holds the background task handlers that re-derive tiers and award
// achievements after a progress event commits.
package recompute

import (
	"context"
	"errors"
	"log"

	achievementDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"github.com/google/uuid"
)

type TierRecomputer interface {
	RecomputeTier(ctx context.Context, userID uuid.UUID) (*tier.Status, error)
}

type AchievementChecker interface {
	CheckAllBookAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error)
	CheckAllMiscAchievements(ctx context.Context, userID uuid.UUID) ([]achievementDto.AwardedAchievement, error)
}

type Handlers struct {
	progression  TierRecomputer
	achievements AchievementChecker
}

func NewHandlers(progression TierRecomputer, achievements AchievementChecker) *Handlers {
	return &Handlers{progression: progression, achievements: achievements}
}

// Register binds every task type to the worker.
func (h *Handlers) Register(w *queue.Worker) {
	w.Handle(queue.TaskRecomputeProgress, h.RecomputeProgress)
	w.Handle(queue.TaskCheckBookAchievements, h.CheckBookAchievements)
	w.Handle(queue.TaskCheckMiscAchievements, h.CheckMiscAchievements)
}

// RecomputeProgress refreshes the tier, then awards any xp or streak achievements the new totals reach.
func (h *Handlers) RecomputeProgress(ctx context.Context, task queue.Task) error {
	if _, err := h.progression.RecomputeTier(ctx, task.UserID); err != nil {
		return dropMissing(task, err)
	}
	return h.CheckMiscAchievements(ctx, task)
}

func (h *Handlers) CheckBookAchievements(ctx context.Context, task queue.Task) error {
	awarded, err := h.achievements.CheckAllBookAchievements(ctx, task.UserID)
	if err != nil {
		return dropMissing(task, err)
	}
	logAwarded(task, awarded)
	return nil
}

func (h *Handlers) CheckMiscAchievements(ctx context.Context, task queue.Task) error {
	awarded, err := h.achievements.CheckAllMiscAchievements(ctx, task.UserID)
	if err != nil {
		return dropMissing(task, err)
	}
	logAwarded(task, awarded)
	return nil
}

// dropMissing stops retries for users that no longer exist.
func dropMissing(task queue.Task, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		log.Printf("[recompute] dropping %s: user %s not found", task.Type, task.UserID)
		return nil
	}
	return err
}

func logAwarded(task queue.Task, awarded []achievementDto.AwardedAchievement) {
	for _, a := range awarded {
		log.Printf("[recompute] %s awarded %s to user %s", task.Type, a.Key, task.UserID)
	}
}
