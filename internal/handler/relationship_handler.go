package handler

import (
	"net/http"
	"strconv"

	"linkup/backend/internal/models"
	"linkup/backend/internal/relationship"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CreateContactInput defines the body for sending a friend request.
type CreateContactInput struct {
	Username string `json:"username" binding:"required" example:"frienduser"`
}

// UpdateContactInput defines the body for resolving a pending request.
type UpdateContactInput struct {
	Status string `json:"status" binding:"required" example:"accepted"`
}

// BlockContactInput defines the body for blocking a user.
type BlockContactInput struct {
	UserID string `json:"user_id" binding:"required"`
}

// endregion

// RelationshipHandler exposes the relationship state machine over HTTP.
type RelationshipHandler struct {
	svc *relationship.Service
}

func NewRelationshipHandler(svc *relationship.Service) *RelationshipHandler {
	return &RelationshipHandler{svc: svc}
}

// GetContacts godoc
// @Summary      List relationships
// @Description  Returns relationships visible to the viewer with the directional type computed per viewer. Blocked entries are only visible to their initiator.
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        type   query     string  false  "Relationship type (pending, settled, blocked)"  default(settled)
// @Param        limit  query     int     false  "Maximum number of results"  default(20)
// @Success      200  {array}   relationship.View
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /contacts [get]
func (h *RelationshipHandler) GetContacts(c *gin.Context) {
	relType := models.RelationshipType(c.DefaultQuery("type", string(models.RelationshipSettled)))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	views, err := h.svc.GetRelationships(c.Request.Context(), viewerID(c), relType, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if views == nil {
		views = []relationship.View{}
	}
	c.JSON(http.StatusOK, views)
}

// CreateContact godoc
// @Summary      Send friend request
// @Description  Creates a pending relationship towards the user with the given username and notifies both parties.
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateContactInput true "Target username"
// @Success      201  {object}  map[string]string "{"id": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Failure      409  {object}  ErrorResponse "Request already exists in either direction"
// @Router       /contacts [put]
func (h *RelationshipHandler) CreateContact(c *gin.Context) {
	var input CreateContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rel, err := h.svc.CreateFriendRequest(c.Request.Context(), viewerID(c), input.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rel.ID})
}

// UpdateContact godoc
// @Summary      Accept or reject a friend request
// @Description  Accepting settles the relationship and creates the paired conversation atomically; rejecting deletes the request.
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string              true  "Relationship ID"
// @Param        input  body      UpdateContactInput  true  "accepted or rejected"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Relationship not found"
// @Router       /contacts/{id} [patch]
func (h *RelationshipHandler) UpdateContact(c *gin.Context) {
	var input UpdateContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.svc.UpdateRelationshipStatus(c.Request.Context(), c.Param("id"), relationship.Status(input.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{"status": input.Status}
	if conv != nil {
		response["conversation_id"] = conv.ID
	}
	c.JSON(http.StatusOK, response)
}

// BlockContact godoc
// @Summary      Block a user
// @Description  Upserts the relationship with the target to blocked, overriding any prior state. Idempotent.
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body BlockContactInput true "Target user ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Router       /contacts/block [post]
func (h *RelationshipHandler) BlockContact(c *gin.Context) {
	var input BlockContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rel, err := h.svc.BlockUser(c.Request.Context(), viewerID(c), input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rel.ID})
}

// DeleteContact godoc
// @Summary      Remove a friend
// @Description  Deletes the relationship and its paired 1:1 conversation. Only a party to the relationship may do this.
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Relationship ID"
// @Success      200  {object}  map[string]string "{"message": "Relationship removed"}"
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Relationship not found"
// @Router       /contacts/{id} [delete]
func (h *RelationshipHandler) DeleteContact(c *gin.Context) {
	if err := h.svc.DeleteFriend(c.Request.Context(), c.Param("id"), viewerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Relationship removed"})
}
