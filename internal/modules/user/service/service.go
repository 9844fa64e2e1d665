package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type UserService interface {
	// Register records the authenticated identity. Registering twice returns the existing user.
	Register(ctx context.Context, userID uuid.UUID, req dto.RegisterRequest) (*dto.RegisterResult, error)
	GetMe(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	sanitizer *bluemonday.Policy
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *userService) Register(ctx context.Context, userID uuid.UUID, req dto.RegisterRequest) (*dto.RegisterResult, error) {
	existing, err := s.repo.FindByID(ctx, userID)
	if err == nil {
		return &dto.RegisterResult{User: toResponse(existing)}, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	if taken, err := s.repo.FindByUsername(ctx, req.Username); err == nil && taken.ID != userID {
		return nil, apperror.Transition("username is already taken")
	}

	displayName := strings.TrimSpace(s.sanitizer.Sanitize(req.DisplayName))
	if displayName == "" {
		displayName = req.Username
	}

	user := &entity.User{
		ID:          userID,
		Username:    req.Username,
		DisplayName: displayName,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if !created {
		// Lost a race: either our own concurrent registration or someone took the username.
		existing, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.Transition("username is already taken")
			}
			return nil, err
		}
		return &dto.RegisterResult{User: toResponse(existing)}, nil
	}

	log.Printf("Registered user %s as %s", userID, user.Username)
	stored, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.RegisterResult{User: toResponse(stored), Created: true}, nil
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(user)
	return &resp, nil
}

func toResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            u.ID.String(),
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		TotalXP:       u.TotalXP,
		CurrentStreak: u.CurrentStreak,
		LongestStreak: u.LongestStreak,
		LastReadDate:  u.LastReadDate,
		CurrentTier:   u.CurrentTier,
		Talents:       u.Talents,
		ChallengeWins: u.ChallengeWins,
		CreatedAt:     u.CreatedAt,
	}
}
