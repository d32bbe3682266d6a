package handler

import (
	"net/http"
	"strconv"
	"time"

	"opendebate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CreateInviteInput defines the request body for creating an invite.
type CreateInviteInput struct {
	DebateSlug string `json:"debate_slug" binding:"required"`
}

// InviteResponse defines the structure for an invite.
type InviteResponse struct {
	Code            string    `json:"code"`
	CreatorNickname string    `json:"creator_nickname,omitempty"`
	DebateID        uint      `json:"debate_id"`
	DebateTitle     string    `json:"debate_title"`
	DebateSlug      string    `json:"debate_slug"`
	CreatedAt       time.Time `json:"created_at"`
}

// AcceptInviteResponse points the accepter at the discussion the invite
// produced.
type AcceptInviteResponse struct {
	DiscussionID uint `json:"discussion_id"`
}

func newInviteResponse(inv models.Invite) InviteResponse {
	return InviteResponse{
		Code:            inv.Code,
		CreatorNickname: inv.Creator.Nickname,
		DebateID:        inv.DebateID,
		DebateTitle:     inv.Debate.Title,
		DebateSlug:      inv.Debate.Slug,
		CreatedAt:       inv.CreatedAt,
	}
}

// endregion

// CreateInvite godoc
// @Summary      Create an invite
// @Description  Issues a shareable invite code for a debate.
// @Tags         invites
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        invite body CreateInviteInput true "Invite details"
// @Success      201 {object} InviteResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /invites [post]
func CreateInvite(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input CreateInviteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	inv, err := inviteService.Create(userID, input.DebateSlug)
	if err != nil {
		respondServiceError(c, err, "Failed to create invite")
		return
	}

	c.JSON(http.StatusCreated, newInviteResponse(*inv))
}

// GetInvite godoc
// @Summary      View an invite
// @Description  Shows an invite by its code. Public, so the link can be previewed before logging in.
// @Tags         invites
// @Produce      json
// @Param        code path string true "Invite code"
// @Success      200 {object} InviteResponse
// @Failure      404 {object} ErrorResponse
// @Router       /invites/{code} [get]
func GetInvite(c *gin.Context) {
	inv, err := inviteService.GetByCode(c.Param("code"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve invite")
		return
	}

	c.JSON(http.StatusOK, newInviteResponse(*inv))
}

// GetInvites godoc
// @Summary      List own invites
// @Description  Gets the invites the current user has created, newest first.
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(15)
// @Success      200 {array} InviteResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invites [get]
func GetInvites(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "15"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 15
	}

	invites, err := inviteService.ListByCreator(userID, (page-1)*limit, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve invites"})
		return
	}

	response := make([]InviteResponse, 0, len(invites))
	for _, inv := range invites {
		response = append(response, newInviteResponse(inv))
	}
	c.JSON(http.StatusOK, response)
}

// AcceptInvite godoc
// @Summary      Accept an invite
// @Description  Redeems an invite code, creating a discussion between the current user and the invite's creator.
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Invite code"
// @Success      200 {object} AcceptInviteResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /invites/{code}/accept [post]
func AcceptInvite(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	use, err := inviteService.Accept(c.Param("code"), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to accept invite")
		return
	}

	c.JSON(http.StatusOK, AcceptInviteResponse{DiscussionID: use.DiscussionID})
}

// DeleteInvite godoc
// @Summary      Delete an invite
// @Description  Deletes one of the current user's invites.
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Invite code"
// @Success      204 "No Content"
// @Failure      404 {object} ErrorResponse
// @Router       /invites/{code} [delete]
func DeleteInvite(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	if err := inviteService.Delete(c.Param("code"), userID); err != nil {
		respondServiceError(c, err, "Failed to delete invite")
		return
	}

	c.Status(http.StatusNoContent)
}
