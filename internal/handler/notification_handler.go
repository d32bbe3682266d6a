package handler

import (
	"net/http"
	"strconv"
	"time"

	"opendebate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// NotificationResponse defines the structure for a notification.
type NotificationResponse struct {
	ID          uint      `json:"id"`
	Message     string    `json:"message"`
	RedirectURL string    `json:"redirect_url"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// UnreadNotificationCountResponse defines the structure for the unread badge count.
type UnreadNotificationCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

func newNotificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		Message:     n.Message,
		RedirectURL: n.RedirectURL,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

// endregion

// GetNotifications godoc
// @Summary      List notifications
// @Description  Gets the current user's notifications, newest first.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(20)
// @Success      200 {array} NotificationResponse
// @Failure      500 {object} ErrorResponse
// @Router       /notifications [get]
func GetNotifications(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	notifications, err := notificationService.List(userID, (page-1)*limit, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve notifications"})
		return
	}

	response := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		response = append(response, newNotificationResponse(n))
	}
	c.JSON(http.StatusOK, response)
}

// MarkNotificationRead godoc
// @Summary      Mark a notification as read
// @Description  Marks one of the current user's notifications as read.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Notification ID"
// @Success      200 {object} NotificationResponse
// @Failure      404 {object} ErrorResponse
// @Router       /notifications/{id}/read [post]
func MarkNotificationRead(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	notificationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid notification ID"})
		return
	}

	n, err := notificationService.MarkRead(userID, uint(notificationID))
	if err != nil {
		respondServiceError(c, err, "Failed to mark notification as read")
		return
	}

	c.JSON(http.StatusOK, newNotificationResponse(*n))
}

// GetUnreadNotificationCount godoc
// @Summary      Count unread notifications
// @Description  Gets the number of unread notifications for the current user.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UnreadNotificationCountResponse
// @Failure      500 {object} ErrorResponse
// @Router       /notifications/unread-count [get]
func GetUnreadNotificationCount(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	count, err := notificationService.UnreadCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, UnreadNotificationCountResponse{UnreadCount: count})
}
