package notification

import (
	"errors"
	"fmt"
	"time"

	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/models"
	"opendebate/backend/pkg/apperrors"

	"gorm.io/gorm"
)

// Service owns durable notifications and their realtime push. Pushes are
// explicit calls after each state mutation, never implicit hooks, so the
// call graph stays auditable.
type Service struct {
	db  *gorm.DB
	hub *hub.Hub
}

func NewService(db *gorm.DB, h *hub.Hub) *Service {
	return &Service{db: db, hub: h}
}

// Create stores a notification and pushes it to the user's notification
// stream. The push is fire-and-forget.
func (s *Service) Create(userID uint, message, redirectURL string) (*models.Notification, error) {
	n := models.Notification{
		UserID:      userID,
		Message:     message,
		RedirectURL: redirectURL,
	}
	if err := s.db.Create(&n).Error; err != nil {
		return nil, err
	}

	s.push("new_notification", &n)
	return &n, nil
}

// CreateNewDiscussion files the "you have been paired" notification for one
// participant of a freshly created discussion.
func (s *Service) CreateNewDiscussion(userID uint, partnerNickname, debateTitle string, discussionID uint) (*models.Notification, error) {
	message := fmt.Sprintf("You have been paired with %s to debate \"%s\"", partnerNickname, debateTitle)
	return s.Create(userID, message, fmt.Sprintf("/discussions/%d", discussionID))
}

// CreateInviteAccepted tells an invite's creator that someone accepted it
// and points them at the resulting discussion.
func (s *Service) CreateInviteAccepted(creatorID uint, accepterNickname, debateTitle string, discussionID uint) (*models.Notification, error) {
	message := fmt.Sprintf("%s accepted your invite to debate \"%s\"", accepterNickname, debateTitle)
	return s.Create(creatorID, message, fmt.Sprintf("/discussions/%d", discussionID))
}

// MarkRead marks a notification as read and pushes the update.
func (s *Service) MarkRead(userID, notificationID uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("user_id = ?", userID).First(&n, notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("notification not found")
		}
		return nil, err
	}

	if !n.Read {
		n.Read = true
		if err := s.db.Save(&n).Error; err != nil {
			return nil, err
		}
		s.push("update_notification", &n)
	}

	return &n, nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(userID uint, offset, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// UnreadCount returns the number of unread notifications for the badge.
func (s *Service) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *Service) push(eventType string, n *models.Notification) {
	s.hub.Publish(hub.StreamNotification, n.UserID, hub.Success(eventType, map[string]interface{}{
		"notification_id": n.ID,
		"message":         n.Message,
		"read":            n.Read,
		"redirect_url":    n.RedirectURL,
		"created_at":      n.CreatedAt.Format(time.RFC3339),
	}))
}
