package discussion

import (
	"errors"
	"sort"
	"strings"
	"time"

	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/models"
	"opendebate/backend/pkg/apperrors"

	"gorm.io/gorm"
)

const maxMessageLength = 5000

// Service owns discussions, messages and read checkpoints.
type Service struct {
	db  *gorm.DB
	hub *hub.Hub
}

func NewService(db *gorm.DB, h *hub.Hub) *Service {
	return &Service{db: db, hub: h}
}

// CreateDiscussionAndReadCheckpoints creates a discussion between two
// participants together with both read checkpoints. It is the sole
// discussion-creation entrypoint, used by both pairing paths. The tx
// argument lets callers run it inside a larger transaction; pass nil to
// use the service's own connection.
func (s *Service) CreateDiscussionAndReadCheckpoints(tx *gorm.DB, debateID, participant1ID, participant2ID uint) (*models.Discussion, error) {
	if tx == nil {
		tx = s.db
	}

	discussion := models.Discussion{
		DebateID:       debateID,
		Participant1ID: participant1ID,
		Participant2ID: participant2ID,
	}
	if err := tx.Create(&discussion).Error; err != nil {
		return nil, err
	}

	checkpoints := []models.ReadCheckpoint{
		{DiscussionID: discussion.ID, UserID: participant1ID},
		{DiscussionID: discussion.ID, UserID: participant2ID},
	}
	if err := tx.Create(&checkpoints).Error; err != nil {
		return nil, err
	}

	return &discussion, nil
}

// GetForParticipant loads a discussion the user takes part in.
func (s *Service) GetForParticipant(discussionID, userID uint) (*models.Discussion, error) {
	var discussion models.Discussion
	err := s.db.Preload("Debate").Preload("Participant1").Preload("Participant2").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		First(&discussion, discussionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotParticipant
		}
		return nil, err
	}
	return &discussion, nil
}

// PostMessage appends a message, marks the author's own checkpoint as read
// up to it, and fans the message out to both participants.
func (s *Service) PostMessage(userID, discussionID uint, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return nil, apperrors.ErrMessageTooLong
	}

	discussion, err := s.GetForParticipant(discussionID, userID)
	if err != nil {
		return nil, err
	}

	message := models.Message{
		DiscussionID: discussion.ID,
		AuthorID:     userID,
		Text:         text,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		// Sending a message implies the author is caught up.
		var checkpoint models.ReadCheckpoint
		if err := tx.Where("discussion_id = ? AND user_id = ?", discussion.ID, userID).
			First(&checkpoint).Error; err != nil {
			return err
		}
		return s.readUntil(tx, &checkpoint, &message)
	})
	if err != nil {
		return nil, err
	}

	var author models.User
	if err := s.db.First(&author, userID).Error; err != nil {
		return nil, err
	}

	for _, participantID := range []uint{discussion.Participant1ID, discussion.Participant2ID} {
		archived, _ := discussion.IsArchivedFor(participantID)
		s.hub.Publish(hub.StreamDiscussion, participantID, hub.Success("new_message", map[string]interface{}{
			"discussion_id":          discussion.ID,
			"message_id":             message.ID,
			"sender_id":              userID,
			"sender":                 author.Nickname,
			"message":                message.Text,
			"created_at":             message.CreatedAt.Format(time.RFC3339),
			"is_archived":            archived,
			"is_current_user_sender": participantID == userID,
		}))
	}

	return &message, nil
}

// ReadMessages advances the user's checkpoint past every unread message in
// the discussion and returns how many were read. With nothing to read on a
// never-opened checkpoint it only records the open (ReadAt set, message
// pointer untouched) and returns 0; callers skip the realtime update in
// that case.
func (s *Service) ReadMessages(userID, discussionID uint) (int64, error) {
	discussion, err := s.GetForParticipant(discussionID, userID)
	if err != nil {
		return 0, err
	}

	var numRead int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var checkpoint models.ReadCheckpoint
		if err := tx.Preload("LastMessageRead").
			Where("discussion_id = ? AND user_id = ?", discussion.ID, userID).
			First(&checkpoint).Error; err != nil {
			return err
		}

		unread := tx.Model(&models.Message{}).Where("discussion_id = ?", discussion.ID)
		if checkpoint.LastMessageRead != nil {
			unread = unread.Where("created_at > ?", checkpoint.LastMessageRead.CreatedAt)
		}

		if err := unread.Count(&numRead).Error; err != nil {
			return err
		}

		if numRead == 0 {
			// First open of an empty discussion still counts as opened.
			if checkpoint.ReadAt == nil {
				now := time.Now()
				checkpoint.ReadAt = &now
				return tx.Save(&checkpoint).Error
			}
			return nil
		}

		var latest models.Message
		query := tx.Where("discussion_id = ?", discussion.ID)
		if checkpoint.LastMessageRead != nil {
			query = query.Where("created_at > ?", checkpoint.LastMessageRead.CreatedAt)
		}
		if err := query.Order("created_at DESC").First(&latest).Error; err != nil {
			return err
		}

		return s.readUntil(tx, &checkpoint, &latest)
	})
	if err != nil {
		return 0, err
	}

	if numRead > 0 {
		for _, participantID := range []uint{discussion.Participant1ID, discussion.Participant2ID} {
			s.hub.Publish(hub.StreamDiscussion, participantID, hub.Success("read_messages", map[string]interface{}{
				"discussion_id":     discussion.ID,
				"reader_id":         userID,
				"is_current_user":   participantID == userID,
				"num_messages_read": numRead,
			}))
		}
	}

	return numRead, nil
}

// readUntil records that the checkpoint's owner has read up to message.
// ReadAt is always set together with the pointer, keeping the invariant
// that a non-null pointer never has a null timestamp.
func (s *Service) readUntil(tx *gorm.DB, checkpoint *models.ReadCheckpoint, message *models.Message) error {
	now := time.Now()
	checkpoint.LastMessageReadID = &message.ID
	checkpoint.ReadAt = &now
	return tx.Save(checkpoint).Error
}

// UnreadCount sums unread messages across the user's non-archived
// discussions, for the navbar badge.
func (s *Service) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Joins("JOIN discussions ON discussions.id = messages.discussion_id AND discussions.deleted_at IS NULL").
		Joins("LEFT JOIN read_checkpoints ON read_checkpoints.discussion_id = discussions.id AND read_checkpoints.user_id = ? AND read_checkpoints.deleted_at IS NULL", userID).
		Joins("LEFT JOIN messages last_read ON last_read.id = read_checkpoints.last_message_read_id").
		Where("(discussions.participant1_id = ? AND discussions.is_archived_for_p1 = ?) OR (discussions.participant2_id = ? AND discussions.is_archived_for_p2 = ?)",
			userID, false, userID, false).
		Where("last_read.id IS NULL OR messages.created_at > last_read.created_at").
		Count(&count).Error
	return count, err
}

// DiscussionSummary is a discussion annotated for list views.
type DiscussionSummary struct {
	Discussion      models.Discussion
	LatestMessage   *models.Message
	IsUnread        bool
	RecentDate      time.Time
	IsArchivedForMe bool
}

// ListDiscussions returns the user's discussions ordered by most recent
// activity (discussion creation or latest message, whichever is later).
// filter may be "", "active" or "archived".
func (s *Service) ListDiscussions(userID uint, filter string, offset, limit int) ([]DiscussionSummary, error) {
	query := s.db.Preload("Debate").Preload("Participant1").Preload("Participant2").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID)

	switch filter {
	case "active":
		query = query.Where("(participant1_id = ? AND is_archived_for_p1 = ?) OR (participant2_id = ? AND is_archived_for_p2 = ?)",
			userID, false, userID, false)
	case "archived":
		query = query.Where("(participant1_id = ? AND is_archived_for_p1 = ?) OR (participant2_id = ? AND is_archived_for_p2 = ?)",
			userID, true, userID, true)
	}

	var discussions []models.Discussion
	if err := query.Find(&discussions).Error; err != nil {
		return nil, err
	}

	summaries := make([]DiscussionSummary, 0, len(discussions))
	for i := range discussions {
		d := discussions[i]

		var latest models.Message
		var latestPtr *models.Message
		err := s.db.Where("discussion_id = ?", d.ID).Order("created_at DESC").First(&latest).Error
		if err == nil {
			latestPtr = &latest
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var checkpoint models.ReadCheckpoint
		if err := s.db.Where("discussion_id = ? AND user_id = ?", d.ID, userID).
			First(&checkpoint).Error; err != nil {
			return nil, err
		}

		recent := d.CreatedAt
		if latestPtr != nil && latestPtr.CreatedAt.After(recent) {
			recent = latestPtr.CreatedAt
		}

		isUnread := checkpoint.ReadAt == nil ||
			(latestPtr != nil && latestPtr.CreatedAt.After(*checkpoint.ReadAt))

		archived, _ := d.IsArchivedFor(userID)

		summaries = append(summaries, DiscussionSummary{
			Discussion:      d,
			LatestMessage:   latestPtr,
			IsUnread:        isUnread,
			RecentDate:      recent,
			IsArchivedForMe: archived,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RecentDate.After(summaries[j].RecentDate)
	})

	if offset >= len(summaries) {
		return []DiscussionSummary{}, nil
	}
	end := offset + limit
	if end > len(summaries) {
		end = len(summaries)
	}
	return summaries[offset:end], nil
}

// Messages returns a page of a discussion's messages, newest first.
func (s *Service) Messages(userID, discussionID uint, offset, limit int) ([]models.Message, error) {
	if _, err := s.GetForParticipant(discussionID, userID); err != nil {
		return nil, err
	}

	var messages []models.Message
	err := s.db.Where("discussion_id = ?", discussionID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, err
}

// SetArchived flips the caller's archive flag on a discussion.
func (s *Service) SetArchived(userID, discussionID uint, archived bool) (*models.Discussion, error) {
	discussion, err := s.GetForParticipant(discussionID, userID)
	if err != nil {
		return nil, err
	}

	if discussion.Participant1ID == userID {
		discussion.IsArchivedForP1 = archived
	} else {
		discussion.IsArchivedForP2 = archived
	}

	if err := s.db.Save(discussion).Error; err != nil {
		return nil, err
	}
	return discussion, nil
}

// DeleteMessage removes one of the caller's own messages. Any checkpoint
// pointing at it is first reassigned to the immediately preceding message
// in the same discussion (or to no message at all while keeping its
// timestamp), so a checkpoint never dangles.
func (s *Service) DeleteMessage(userID, messageID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("message not found")
			}
			return err
		}
		if message.AuthorID != userID {
			return apperrors.New(apperrors.CodeFailedPrecondition, "only the author can delete a message")
		}

		var previous models.Message
		var previousID *uint
		err := tx.Where("discussion_id = ? AND created_at < ?", message.DiscussionID, message.CreatedAt).
			Order("created_at DESC").First(&previous).Error
		if err == nil {
			previousID = &previous.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Model(&models.ReadCheckpoint{}).
			Where("last_message_read_id = ?", message.ID).
			Update("last_message_read_id", previousID).Error; err != nil {
			return err
		}

		return tx.Delete(&message).Error
	})
}

// NotifyNewDiscussionLive pushes a freshly created discussion into both
// participants' live discussion lists.
func (s *Service) NotifyNewDiscussionLive(discussion *models.Discussion) {
	for _, participantID := range []uint{discussion.Participant1ID, discussion.Participant2ID} {
		s.hub.Publish(hub.StreamDiscussion, participantID, hub.Success("new_discussion", map[string]interface{}{
			"discussion_id": discussion.ID,
			"debate_id":     discussion.DebateID,
			"is_unread":     true,
		}))
	}
}
