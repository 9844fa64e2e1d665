package recompute

import (
	"context"
	"errors"
	"sync"
	"testing"

	achievementDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgression struct {
	err   error
	calls []uuid.UUID
}

func (f *fakeProgression) RecomputeTier(_ context.Context, userID uuid.UUID) (*tier.Status, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	return &tier.Status{}, nil
}

type fakeAchievements struct {
	mu    sync.Mutex
	err   error
	book  int
	misc  int
	award []achievementDto.AwardedAchievement
}

func (f *fakeAchievements) CheckAllBookAchievements(context.Context, uuid.UUID) ([]achievementDto.AwardedAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.book++
	return f.award, f.err
}

func (f *fakeAchievements) CheckAllMiscAchievements(context.Context, uuid.UUID) ([]achievementDto.AwardedAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misc++
	return f.award, f.err
}

func TestRecomputeProgress(t *testing.T) {
	tests := []struct {
		Desc         string
		TierErr      error
		CheckErr     error
		WantErr      bool
		WantMiscRuns int
	}{
		{Desc: "tier then misc achievements", WantMiscRuns: 1},
		{Desc: "missing user is dropped", TierErr: apperror.ErrUserNotFound},
		{Desc: "transient tier failure is retried", TierErr: errors.New("connection reset"), WantErr: true},
		{Desc: "achievement failure is retried", CheckErr: errors.New("deadlock"), WantErr: true, WantMiscRuns: 1},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			progression := &fakeProgression{err: tc.TierErr}
			achievements := &fakeAchievements{err: tc.CheckErr}
			h := NewHandlers(progression, achievements)
			userID := uuid.New()

			err := h.RecomputeProgress(context.Background(), queue.NewTask(queue.TaskRecomputeProgress, userID))
			if tc.WantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []uuid.UUID{userID}, progression.calls)
			assert.Equal(t, tc.WantMiscRuns, achievements.misc)
			assert.Zero(t, achievements.book)
		})
	}
}

func TestCheckBookAchievementsDropsMissingUser(t *testing.T) {
	achievements := &fakeAchievements{err: apperror.ErrUserNotFound}
	h := NewHandlers(&fakeProgression{}, achievements)

	err := h.CheckBookAchievements(context.Background(), queue.NewTask(queue.TaskCheckBookAchievements, uuid.New()))
	assert.NoError(t, err)
	assert.Equal(t, 1, achievements.book)
}

func TestRegisterRoutesEveryTaskType(t *testing.T) {
	achievements := &fakeAchievements{award: []achievementDto.AwardedAchievement{{Key: "book_ruth"}}}
	progression := &fakeProgression{}
	h := NewHandlers(progression, achievements)

	q := queue.NewMemoryQueue(8)
	w := queue.NewWorker(q, 1, 1)
	h.Register(w)

	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, q.Enqueue(ctx, queue.NewTask(queue.TaskRecomputeProgress, userID)))
	require.NoError(t, q.Enqueue(ctx, queue.NewTask(queue.TaskCheckBookAchievements, userID)))
	require.NoError(t, q.Enqueue(ctx, queue.NewTask(queue.TaskCheckMiscAchievements, userID)))
	q.Close()

	require.NoError(t, w.Run(ctx))

	assert.Len(t, progression.calls, 1)
	assert.Equal(t, 1, achievements.book)
	assert.Equal(t, 2, achievements.misc)
}
