package service

import (
	"context"
	"testing"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	avatarRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ownedKey struct {
	user uuid.UUID
	item uint
}

type fakeRepo struct {
	users map[uuid.UUID]*entity.User
	items map[uint]*entity.AvatarItem
	owned map[ownedKey]entity.UserAvatarItem
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: map[uuid.UUID]*entity.User{},
		items: map[uint]*entity.AvatarItem{},
		owned: map[ownedKey]entity.UserAvatarItem{},
	}
}

func (f *fakeRepo) Transaction(_ context.Context, fn func(tx avatarRepo.AvatarRepository) error) error {
	return fn(f)
}

func (f *fakeRepo) ListItems(context.Context) ([]entity.AvatarItem, error) {
	var out []entity.AvatarItem
	for id := uint(1); id <= uint(len(f.items)); id++ {
		out = append(out, *f.items[id])
	}
	return out, nil
}

func (f *fakeRepo) FindItem(_ context.Context, id uint) (*entity.AvatarItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, apperror.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeRepo) OwnedItems(_ context.Context, userID uuid.UUID) ([]entity.UserAvatarItem, error) {
	var out []entity.UserAvatarItem
	for k, v := range f.owned {
		if k.user == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeRepo) LockUser(_ context.Context, userID uuid.UUID) (*entity.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GrantItem(_ context.Context, owned *entity.UserAvatarItem) (bool, error) {
	k := ownedKey{owned.UserID, owned.ItemID}
	if _, ok := f.owned[k]; ok {
		return false, nil
	}
	f.owned[k] = *owned
	return true, nil
}

func (f *fakeRepo) SpendTalents(_ context.Context, userID uuid.UUID, amount int) error {
	f.users[userID].Talents -= amount
	return nil
}

func TestPurchaseItem(t *testing.T) {
	tests := []struct {
		Desc          string
		Talents       int
		ItemID        uint
		PreOwned      bool
		WantErr       error
		WantSpent     int
		WantRemaining int
		WantOwned     bool
	}{
		{Desc: "enough talents", Talents: 12, ItemID: 1, WantSpent: 10, WantRemaining: 2},
		{Desc: "exactly enough", Talents: 10, ItemID: 1, WantSpent: 10, WantRemaining: 0},
		{Desc: "not enough talents", Talents: 9, ItemID: 1, WantErr: apperror.ErrInvalidInput},
		{Desc: "achievement item", Talents: 100, ItemID: 2, WantErr: apperror.ErrInvalidTransition},
		{Desc: "unknown item", Talents: 100, ItemID: 99, WantErr: apperror.ErrNotFound},
		{Desc: "already owned", Talents: 15, ItemID: 1, PreOwned: true, WantRemaining: 15, WantOwned: true},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			repo := newFakeRepo()
			user := &entity.User{ID: uuid.New(), Talents: tc.Talents}
			repo.users[user.ID] = user
			repo.items[1] = &entity.AvatarItem{ID: 1, Key: "shepherd_staff", Name: "Shepherd Staff", Slot: "staff", TalentCost: 10}
			repo.items[2] = &entity.AvatarItem{ID: 2, Key: "book_ruth", Name: "Sheaf of Barley", Slot: "staff", Unlockable: true}
			if tc.PreOwned {
				repo.owned[ownedKey{user.ID, 1}] = entity.UserAvatarItem{UserID: user.ID, ItemID: 1, Source: entity.ItemSourcePurchase}
			}

			svc := NewAvatarService(repo)
			res, err := svc.PurchaseItem(context.Background(), user.ID, tc.ItemID)

			if tc.WantErr != nil {
				assert.ErrorIs(t, err, tc.WantErr)
				assert.Equal(t, tc.Talents, user.Talents)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.WantOwned, res.AlreadyOwned)
			assert.Equal(t, tc.WantSpent, res.TalentsSpent)
			assert.Equal(t, tc.WantRemaining, res.TalentsRemaining)
			assert.Equal(t, tc.WantRemaining, user.Talents)
			assert.True(t, res.Item.Owned)
		})
	}
}

func TestListItemsMarksOwned(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.items[1] = &entity.AvatarItem{ID: 1, Key: "halo", Name: "Halo", Slot: "head", TalentCost: 3}
	repo.items[2] = &entity.AvatarItem{ID: 2, Key: "book_ruth", Name: "Sheaf of Barley", Slot: "staff", Unlockable: true}
	acquired := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	repo.owned[ownedKey{userID, 2}] = entity.UserAvatarItem{UserID: userID, ItemID: 2, Source: entity.ItemSourceAchievement, AcquiredAt: acquired}

	list, err := NewAvatarService(repo).ListItems(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.False(t, list[0].Owned)
	assert.True(t, list[1].Owned)
	assert.Equal(t, entity.ItemSourceAchievement, list[1].Source)
	assert.Equal(t, acquired, *list[1].AcquiredAt)
}
