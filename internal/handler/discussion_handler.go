package handler

import (
	"net/http"
	"strconv"
	"time"

	"opendebate/backend/internal/discussion"
	"opendebate/backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// DiscussionResponse defines the structure for a discussion in list views.
type DiscussionResponse struct {
	ID                  uint       `json:"id"`
	DebateID            uint       `json:"debate_id"`
	DebateTitle         string     `json:"debate_title"`
	Participant1ID      uint       `json:"participant1_id"`
	Participant1        string     `json:"participant1"`
	Participant2ID      uint       `json:"participant2_id"`
	Participant2        string     `json:"participant2"`
	IsUnread            bool       `json:"is_unread"`
	IsArchived          bool       `json:"is_archived"`
	RecentDate          time.Time  `json:"recent_date"`
	LatestMessage       *string    `json:"latest_message,omitempty"`
	LatestMessageAt     *time.Time `json:"latest_message_at,omitempty"`
	LatestMessageSender *uint      `json:"latest_message_sender,omitempty"`
}

// MessageResponse defines the structure for a single message.
type MessageResponse struct {
	ID            uint      `json:"id"`
	DiscussionID  uint      `json:"discussion_id"`
	AuthorID      uint      `json:"author_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	IsCurrentUser bool      `json:"is_current_user"`
}

// ArchiveInput defines the structure for archiving/unarchiving a discussion.
type ArchiveInput struct {
	Archived *bool `json:"archived" binding:"required"`
}

func newDiscussionResponse(summary discussion.DiscussionSummary) DiscussionResponse {
	d := summary.Discussion
	response := DiscussionResponse{
		ID:             d.ID,
		DebateID:       d.DebateID,
		DebateTitle:    d.Debate.Title,
		Participant1ID: d.Participant1ID,
		Participant1:   d.Participant1.Nickname,
		Participant2ID: d.Participant2ID,
		Participant2:   d.Participant2.Nickname,
		IsUnread:       summary.IsUnread,
		IsArchived:     summary.IsArchivedForMe,
		RecentDate:     summary.RecentDate,
	}
	if summary.LatestMessage != nil {
		response.LatestMessage = &summary.LatestMessage.Text
		response.LatestMessageAt = &summary.LatestMessage.CreatedAt
		response.LatestMessageSender = &summary.LatestMessage.AuthorID
	}
	return response
}

// endregion

func respondServiceError(c *gin.Context, err error, fallback string) {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.CodeInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.CodeAlreadyExists:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperrors.CodeFailedPrecondition:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// GetDiscussions godoc
// @Summary      List discussions
// @Description  Gets the caller's discussions ordered by most recent activity.
// @Tags         discussions
// @Produce      json
// @Security     BearerAuth
// @Param        filter query string false "Filter: active or archived"
// @Param        page   query int    false "Page number" default(1)
// @Param        limit  query int    false "Items per page" default(15)
// @Success      200 {array} DiscussionResponse
// @Router       /discussions [get]
func GetDiscussions(c *gin.Context) {
	userID, _ := c.Get("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "15"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 15
	}
	filter := c.Query("filter")
	if filter != "" && filter != "active" && filter != "archived" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be \"active\" or \"archived\""})
		return
	}

	summaries, err := discussionService.ListDiscussions(userID.(uint), filter, (page-1)*limit, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list discussions"})
		return
	}

	response := make([]DiscussionResponse, 0, len(summaries))
	for _, summary := range summaries {
		response = append(response, newDiscussionResponse(summary))
	}

	c.JSON(http.StatusOK, response)
}

// GetDiscussionByID godoc
// @Summary      Get a discussion
// @Description  Gets a single discussion's info. Participants only.
// @Tags         discussions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Discussion ID"
// @Success      200 {object} DiscussionResponse
// @Failure      404 {object} ErrorResponse
// @Router       /discussions/{id} [get]
func GetDiscussionByID(c *gin.Context) {
	userID, _ := c.Get("userID")
	discussionID, _ := strconv.Atoi(c.Param("id"))

	d, err := discussionService.GetForParticipant(uint(discussionID), userID.(uint))
	if err != nil {
		respondServiceError(c, err, "Failed to load discussion")
		return
	}

	archived, _ := d.IsArchivedFor(userID.(uint))
	c.JSON(http.StatusOK, DiscussionResponse{
		ID:             d.ID,
		DebateID:       d.DebateID,
		DebateTitle:    d.Debate.Title,
		Participant1ID: d.Participant1ID,
		Participant1:   d.Participant1.Nickname,
		Participant2ID: d.Participant2ID,
		Participant2:   d.Participant2.Nickname,
		IsArchived:     archived,
		RecentDate:     d.CreatedAt,
	})
}

// GetDiscussionMessages godoc
// @Summary      Get a discussion's messages
// @Description  Gets a page of messages, newest first. Participants only.
// @Tags         discussions
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int true  "Discussion ID"
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(50)
// @Success      200 {array} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /discussions/{id}/messages [get]
func GetDiscussionMessages(c *gin.Context) {
	userID, _ := c.Get("userID")
	discussionID, _ := strconv.Atoi(c.Param("id"))

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	messages, err := discussionService.Messages(userID.(uint), uint(discussionID), (page-1)*limit, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list messages")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		response = append(response, MessageResponse{
			ID:            message.ID,
			DiscussionID:  message.DiscussionID,
			AuthorID:      message.AuthorID,
			Text:          message.Text,
			CreatedAt:     message.CreatedAt,
			IsCurrentUser: message.AuthorID == userID.(uint),
		})
	}

	c.JSON(http.StatusOK, response)
}

// SetDiscussionArchived godoc
// @Summary      Archive or unarchive a discussion
// @Description  Flips the caller's own archive flag; the other participant is unaffected.
// @Tags         discussions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int          true "Discussion ID"
// @Param        input body ArchiveInput true "Archive flag"
// @Success      200 {object} map[string]bool "{"archived": true}"
// @Failure      404 {object} ErrorResponse
// @Router       /discussions/{id}/archive [post]
func SetDiscussionArchived(c *gin.Context) {
	userID, _ := c.Get("userID")
	discussionID, _ := strconv.Atoi(c.Param("id"))

	var input ArchiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := discussionService.SetArchived(userID.(uint), uint(discussionID), *input.Archived)
	if err != nil {
		respondServiceError(c, err, "Failed to update discussion")
		return
	}

	archived, _ := updated.IsArchivedFor(userID.(uint))
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// GetUnreadCount godoc
// @Summary      Get the total unread message count
// @Description  Sums unread messages across non-archived discussions, for the navbar badge.
// @Tags         discussions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]int64 "{"unread_count": 3}"
// @Router       /discussions/unread_count [get]
func GetUnreadCount(c *gin.Context) {
	userID, _ := c.Get("userID")

	count, err := discussionService.UnreadCount(userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Deletes one of the caller's own messages. Read checkpoints pointing at it are repaired to the previous message first.
// @Tags         discussions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Message ID"
// @Success      200 {object} map[string]string "{"message": "Message deleted"}"
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /messages/{id} [delete]
func DeleteMessage(c *gin.Context) {
	userID, _ := c.Get("userID")
	messageID, _ := strconv.Atoi(c.Param("id"))

	if err := discussionService.DeleteMessage(userID.(uint), uint(messageID)); err != nil {
		respondServiceError(c, err, "Failed to delete message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}
