package service

import (
	"context"
	"fmt"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	avatarDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/dto"
	avatarRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
)

type AvatarService interface {
	ListItems(ctx context.Context, userID uuid.UUID) ([]avatarDto.AvatarItemResponse, error)
	PurchaseItem(ctx context.Context, userID uuid.UUID, itemID uint) (*avatarDto.PurchaseResult, error)
}

type avatarService struct {
	repo avatarRepo.AvatarRepository
	now  func() time.Time
}

func NewAvatarService(repo avatarRepo.AvatarRepository) AvatarService {
	return &avatarService{repo: repo, now: time.Now}
}

func toResponse(item entity.AvatarItem) avatarDto.AvatarItemResponse {
	return avatarDto.AvatarItemResponse{
		ID:         item.ID,
		Key:        item.Key,
		Name:       item.Name,
		Slot:       item.Slot,
		Category:   item.Category,
		TalentCost: item.TalentCost,
		Unlockable: item.Unlockable,
	}
}

func (s *avatarService) ListItems(ctx context.Context, userID uuid.UUID) ([]avatarDto.AvatarItemResponse, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := s.repo.OwnedItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint]entity.UserAvatarItem, len(owned))
	for _, o := range owned {
		byItem[o.ItemID] = o
	}

	responses := make([]avatarDto.AvatarItemResponse, 0, len(items))
	for _, item := range items {
		resp := toResponse(item)
		if o, ok := byItem[item.ID]; ok {
			resp.Owned = true
			resp.Source = o.Source
			acquired := o.AcquiredAt
			resp.AcquiredAt = &acquired
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *avatarService) PurchaseItem(ctx context.Context, userID uuid.UUID, itemID uint) (*avatarDto.PurchaseResult, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Unlockable {
		return nil, apperror.Transition(fmt.Sprintf("%s can only be unlocked through its achievement", item.Name))
	}

	result := avatarDto.PurchaseResult{Item: toResponse(*item)}
	now := s.now()

	err = s.repo.Transaction(ctx, func(tx avatarRepo.AvatarRepository) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.Talents < item.TalentCost {
			return fmt.Errorf("insufficient talents: need %d, have %d: %w", item.TalentCost, user.Talents, apperror.ErrInvalidInput)
		}

		created, err := tx.GrantItem(ctx, &entity.UserAvatarItem{
			UserID:     userID,
			ItemID:     item.ID,
			Source:     entity.ItemSourcePurchase,
			AcquiredAt: now,
		})
		if err != nil {
			return err
		}
		if !created {
			result.AlreadyOwned = true
			result.TalentsRemaining = user.Talents
			return nil
		}

		if item.TalentCost > 0 {
			if err := tx.SpendTalents(ctx, userID, item.TalentCost); err != nil {
				return err
			}
		}
		result.TalentsSpent = item.TalentCost
		result.TalentsRemaining = user.Talents - item.TalentCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Item.Owned = true
	return &result, nil
}
