package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users map[uuid.UUID]*entity.User
	// racer is inserted just before Create runs, simulating a concurrent registration.
	racer *entity.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[uuid.UUID]*entity.User{}}
}

func (f *fakeRepo) Create(_ context.Context, user *entity.User) (bool, error) {
	if f.racer != nil {
		f.users[f.racer.ID] = f.racer
		f.racer = nil
	}
	for _, u := range f.users {
		if u.ID == user.ID || strings.EqualFold(u.Username, user.Username) {
			return false, nil
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	f.users[user.ID] = &cp
	return true, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.ErrUserNotFound
}

func TestRegister(t *testing.T) {
	repo := newFakeRepo()
	svc := NewUserService(repo)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Register(ctx, userID, dto.RegisterRequest{Username: "priscilla", DisplayName: "<b>Priscilla</b>"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "Priscilla", first.User.DisplayName)
	assert.Zero(t, first.User.TotalXP)

	again, err := svc.Register(ctx, userID, dto.RegisterRequest{Username: "somethingelse"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, "priscilla", again.User.Username)

	_, err = svc.Register(ctx, uuid.New(), dto.RegisterRequest{Username: "Priscilla"})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	svc := NewUserService(newFakeRepo())

	result, err := svc.Register(context.Background(), uuid.New(), dto.RegisterRequest{Username: "aquila", DisplayName: "   "})
	require.NoError(t, err)
	assert.Equal(t, "aquila", result.User.DisplayName)
}

func TestRegisterRace(t *testing.T) {
	tests := []struct {
		Desc       string
		SameUser   bool
		WantErr    error
		WantResult bool
	}{
		{Desc: "own concurrent registration wins", SameUser: true, WantResult: true},
		{Desc: "another user takes the name", WantErr: apperror.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			repo := newFakeRepo()
			userID := uuid.New()
			racerID := uuid.New()
			if tc.SameUser {
				racerID = userID
			}
			repo.racer = &entity.User{ID: racerID, Username: "apollos"}

			result, err := NewUserService(repo).Register(context.Background(), userID, dto.RegisterRequest{Username: "apollos"})
			if tc.WantErr != nil {
				assert.ErrorIs(t, err, tc.WantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, result.Created)
			assert.Equal(t, userID.String(), result.User.ID)
		})
	}
}

func TestGetMe(t *testing.T) {
	repo := newFakeRepo()
	svc := NewUserService(repo)
	userID := uuid.New()

	_, err := svc.GetMe(context.Background(), userID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	repo.users[userID] = &entity.User{ID: userID, Username: "timothy", TotalXP: 42, CurrentStreak: 3}
	me, err := svc.GetMe(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 42, me.TotalXP)
	assert.Equal(t, 3, me.CurrentStreak)
}
