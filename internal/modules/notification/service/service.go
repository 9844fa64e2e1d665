package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	notifRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel returns the redis pub/sub channel carrying a user's notifications.
func Channel(userID string) string {
	return fmt.Sprintf("user_notifications:%s", userID)
}

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	// Notify is the fire-and-forget variant used by the engine; failures are logged.
	Notify(ctx context.Context, userID uuid.UUID, kind, entityType, entityID, message string)
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err == nil {
			if err := s.redisClient.Publish(ctx, Channel(notification.UserID.String()), payload).Err(); err != nil {
				log.Printf("Failed to publish notification for user %s: %v", notification.UserID, err)
			}
		}
	}

	return nil
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, kind, entityType, entityID, message string) {
	n := &entity.Notification{
		UserID:     userID,
		EntityID:   entityID,
		EntityType: entityType,
		Type:       kind,
		Message:    message,
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		log.Printf("Failed to send %s notification to user %s: %v", kind, userID, err)
	}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
