package service

import (
	"context"
	"errors"
	"testing"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created []*entity.Notification
	err     error
}

func (f *fakeRepo) Create(_ context.Context, n *entity.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	var out []entity.Notification
	for _, n := range f.created {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkAsRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeRepo) MarkAllAsRead(context.Context, uuid.UUID) error        { return nil }
func (f *fakeRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(f.created)), nil
}

func TestNotifyStoresWithoutRedis(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewNotificationService(repo, nil)
	userID := uuid.New()

	svc.Notify(context.Background(), userID, entity.NotificationAchievementUnlocked, "achievement", "streak_7", "Unlocked Faithful Week")

	require.Len(t, repo.created, 1)
	assert.Equal(t, userID, repo.created[0].UserID)
	assert.Equal(t, entity.NotificationAchievementUnlocked, repo.created[0].Type)

	list, err := svc.GetNotifications(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotifySwallowsStorageErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	svc := NewNotificationService(repo, nil)

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), uuid.New(), entity.NotificationTierChanged, "tier", "", "Silver")
	})
	assert.Empty(t, repo.created)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "user_notifications:abc", Channel("abc"))
}
