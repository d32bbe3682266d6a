package handler

import (
	"net/http"
	"strconv"

	"opendebate/backend/internal/database"
	"opendebate/backend/internal/models"
	"opendebate/backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

// region --- DTOs ---

// DebateInput defines the structure for creating or updating a debate.
type DebateInput struct {
	Title       string `json:"title" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
}

// DebateResponse defines the structure for a debate.
type DebateResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	MyStance    *bool  `json:"my_stance,omitempty"`
}

// StanceInput defines the structure for taking a stance on a debate.
type StanceInput struct {
	Stance *bool `json:"stance" binding:"required"`
}

// PassivePairingInput defines the structure for filing a passive pairing request.
type PassivePairingInput struct {
	DesiredStance *bool `json:"desired_stance" binding:"required"`
}

func newDebateResponse(debate models.Debate, myStance *bool) DebateResponse {
	return DebateResponse{
		ID:          debate.ID,
		Title:       debate.Title,
		Slug:        debate.Slug,
		Description: debate.Description,
		MyStance:    myStance,
	}
}

// endregion

// GetDebates godoc
// @Summary      List debates
// @Description  Gets a paginated list of debate topics.
// @Tags         debates
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(10)
// @Success      200 {object} PaginatedResponse[DebateResponse]
// @Router       /debates [get]
func GetDebates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	paginated, err := Paginate[models.Debate](database.DB.Order("created_at DESC"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list debates"})
		return
	}

	stances := stancesForPage(c, paginated.Data)

	response := make([]DebateResponse, 0, len(paginated.Data))
	for _, debate := range paginated.Data {
		response = append(response, newDebateResponse(debate, stances[debate.ID]))
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(response, paginated.Meta.TotalItems, page, limit))
}

// stancesForPage batch-loads the caller's stances on one page of debates.
// Anonymous callers get an empty map.
func stancesForPage(c *gin.Context, debates []models.Debate) map[uint]*bool {
	myStances := make(map[uint]*bool)

	userID, ok := c.Get("userID")
	if !ok || len(debates) == 0 {
		return myStances
	}

	debateIDs := make([]uint, 0, len(debates))
	for _, debate := range debates {
		debateIDs = append(debateIDs, debate.ID)
	}

	var stances []models.Stance
	if err := database.DB.Where("user_id = ? AND debate_id IN ?", userID, debateIDs).
		Find(&stances).Error; err != nil {
		return myStances
	}
	for i := range stances {
		myStances[stances[i].DebateID] = &stances[i].Stance
	}
	return myStances
}

// GetDebateByID godoc
// @Summary      Get a debate by ID
// @Description  Gets a single debate with the caller's stance, if any.
// @Tags         debates
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Debate ID"
// @Success      200 {object} DebateResponse
// @Failure      404 {object} ErrorResponse
// @Router       /debates/{id} [get]
func GetDebateByID(c *gin.Context) {
	userID, _ := c.Get("userID")
	debateID, _ := strconv.Atoi(c.Param("id"))

	var debate models.Debate
	if err := database.DB.First(&debate, debateID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	var myStance *bool
	var stance models.Stance
	if err := database.DB.Where("user_id = ? AND debate_id = ?", userID, debate.ID).First(&stance).Error; err == nil {
		myStance = &stance.Stance
	}

	c.JSON(http.StatusOK, newDebateResponse(debate, myStance))
}

// SetStance godoc
// @Summary      Take a stance on a debate
// @Description  Creates or updates the caller's stance. A stance is required before requesting pairing.
// @Tags         debates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Debate ID"
// @Param        input body StanceInput true "Stance"
// @Success      200 {object} map[string]bool "{"stance": true}"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /debates/{id}/stance [post]
func SetStance(c *gin.Context) {
	userID, _ := c.Get("userID")
	debateID, _ := strconv.Atoi(c.Param("id"))

	var debate models.Debate
	if err := database.DB.First(&debate, debateID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	var input StanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stance := models.Stance{
		UserID:   userID.(uint),
		DebateID: debate.ID,
		Stance:   *input.Stance,
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "debate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stance", "updated_at"}),
	}).Create(&stance).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save stance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stance": stance.Stance})
}

// RequestPassivePairing godoc
// @Summary      Request passive pairing on a debate
// @Description  Files a passive pairing request; the batch matcher will pair it when a compatible partner ages in.
// @Tags         pairing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int                 true "Debate ID"
// @Param        input body PassivePairingInput true "Desired stance of the partner"
// @Success      201 {object} map[string]uint "{"pairing_request_id": 1}"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse "An active pairing request already exists"
// @Router       /debates/{id}/pairing/passive [post]
func RequestPassivePairing(c *gin.Context) {
	userID, _ := c.Get("userID")
	debateID, _ := strconv.Atoi(c.Param("id"))

	var input PassivePairingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := pairingService.CreateRequest(userID.(uint), uint(debateID), *input.DesiredStance, true)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.CodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case apperrors.CodeAlreadyExists:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case apperrors.CodeFailedPrecondition:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pairing request"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pairing_request_id": request.ID})
}

// CreateDebate godoc
// @Summary      Create a debate
// @Description  Creates a new debate topic. Admin only.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body DebateInput true "Debate Info"
// @Success      201 {object} DebateResponse
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /admin/debates [post]
func CreateDebate(c *gin.Context) {
	var input DebateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	debate := models.Debate{
		Title:       input.Title,
		Slug:        input.Slug,
		Description: input.Description,
	}
	if err := database.DB.Create(&debate).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A debate with this slug already exists"})
		return
	}

	c.JSON(http.StatusCreated, newDebateResponse(debate, nil))
}

// UpdateDebate godoc
// @Summary      Update a debate
// @Description  Updates a debate topic. Admin only.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Debate ID"
// @Param        input body DebateInput true "Debate Info"
// @Success      200 {object} DebateResponse
// @Failure      404 {object} ErrorResponse
// @Router       /admin/debates/{id} [put]
func UpdateDebate(c *gin.Context) {
	debateID, _ := strconv.Atoi(c.Param("id"))

	var debate models.Debate
	if err := database.DB.First(&debate, debateID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	var input DebateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	debate.Title = input.Title
	debate.Slug = input.Slug
	debate.Description = input.Description
	if err := database.DB.Save(&debate).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update debate"})
		return
	}

	c.JSON(http.StatusOK, newDebateResponse(debate, nil))
}

// DeleteDebate godoc
// @Summary      Delete a debate
// @Description  Deletes a debate topic. Admin only.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Debate ID"
// @Success      200 {object} map[string]string "{"message": "Debate deleted"}"
// @Failure      404 {object} ErrorResponse
// @Router       /admin/debates/{id} [delete]
func DeleteDebate(c *gin.Context) {
	debateID, _ := strconv.Atoi(c.Param("id"))

	var debate models.Debate
	if err := database.DB.First(&debate, debateID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	if err := database.DB.Delete(&debate).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete debate"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Debate deleted"})
}
