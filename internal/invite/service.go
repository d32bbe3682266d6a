package invite

import (
	"errors"
	"log"
	"strings"

	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/models"
	"opendebate/backend/internal/notification"
	"opendebate/backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns invite codes: shareable links that start a discussion on a
// debate directly, without going through matchmaking.
type Service struct {
	db            *gorm.DB
	discussions   *discussion.Service
	notifications *notification.Service
}

func NewService(db *gorm.DB, discussions *discussion.Service, notifications *notification.Service) *Service {
	return &Service{db: db, discussions: discussions, notifications: notifications}
}

// Create issues a fresh invite for a debate the creator wants to be
// challenged on.
func (s *Service) Create(creatorID uint, debateSlug string) (*models.Invite, error) {
	var debate models.Debate
	if err := s.db.Where("slug = ?", debateSlug).First(&debate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDebateNotFound
		}
		return nil, err
	}

	inv := models.Invite{
		Code:      newCode(),
		CreatorID: creatorID,
		DebateID:  debate.ID,
	}
	if err := s.db.Create(&inv).Error; err != nil {
		return nil, err
	}
	inv.Debate = debate
	return &inv, nil
}

// GetByCode looks an invite up for display. Anyone holding the code may
// view it.
func (s *Service) GetByCode(code string) (*models.Invite, error) {
	var inv models.Invite
	err := s.db.Preload("Creator").Preload("Debate").
		Where("code = ?", code).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInviteNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListByCreator returns the user's own invites, newest first.
func (s *Service) ListByCreator(creatorID uint, offset, limit int) ([]models.Invite, error) {
	var invites []models.Invite
	err := s.db.Preload("Debate").
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&invites).Error
	return invites, err
}

// Accept redeems an invite for userID: it creates the discussion between
// the invite's creator and the accepter, with both read checkpoints, and
// records the use so the same user cannot redeem the code twice. The
// creator is notified after commit.
func (s *Service) Accept(code string, userID uint) (*models.InviteUse, error) {
	var use models.InviteUse
	var disc *models.Discussion
	var inv models.Invite

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Creator").Preload("Debate").
			Where("code = ?", code).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrInviteNotFound
			}
			return err
		}
		if inv.CreatorID == userID {
			return apperrors.ErrOwnInvite
		}

		var existing models.InviteUse
		err := tx.Where("invite_id = ? AND user_id = ?", inv.ID, userID).
			First(&existing).Error
		if err == nil {
			return apperrors.ErrInviteAlreadyAccepted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		d, err := s.discussions.CreateDiscussionAndReadCheckpoints(tx, inv.DebateID, inv.CreatorID, userID)
		if err != nil {
			return err
		}
		disc = d

		use = models.InviteUse{
			InviteID:     inv.ID,
			UserID:       userID,
			DiscussionID: d.ID,
		}
		return tx.Create(&use).Error
	})
	if err != nil {
		return nil, err
	}

	s.discussions.NotifyNewDiscussionLive(disc)

	var accepter models.User
	accepterName := "Someone"
	if err := s.db.First(&accepter, userID).Error; err == nil {
		accepterName = accepter.Nickname
	}
	if _, err := s.notifications.CreateInviteAccepted(inv.CreatorID, accepterName, inv.Debate.Title, disc.ID); err != nil {
		log.Printf("invite: failed to notify creator %d about accepted invite %s: %v", inv.CreatorID, inv.Code, err)
	}

	return &use, nil
}

// Delete removes an invite. Only its creator may do so; a code belonging
// to someone else reads as not found.
func (s *Service) Delete(code string, creatorID uint) error {
	res := s.db.Where("code = ? AND creator_id = ?", code, creatorID).
		Delete(&models.Invite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInviteNotFound
	}
	return nil
}

func newCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
