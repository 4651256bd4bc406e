package handler

import (
	"net/http"
	"strconv"
	"time"

	"linkup/backend/internal/conversation"
	"linkup/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// SendMessageInput defines the body for appending a message.
type SendMessageInput struct {
	Text string `json:"text" binding:"required" example:"hey!"`
}

// MessageResponse is one message of a conversation.
type MessageResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	SeenBy    []string  `json:"seen_by"`
}

// ConversationResponse is a full conversation with members and messages.
type ConversationResponse struct {
	ID        string               `json:"id"`
	Name      *string              `json:"name,omitempty"`
	AvatarURL *string              `json:"avatar_url,omitempty"`
	IsGroup   bool                 `json:"is_group"`
	UserLimit *int                 `json:"user_limit,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	Members   []PublicUserResponse `json:"members"`
	Messages  []MessageResponse    `json:"messages"`
}

func buildConversationResponse(conv *models.Conversation) ConversationResponse {
	response := ConversationResponse{
		ID:        conv.ID,
		Name:      conv.Name,
		AvatarURL: conv.AvatarURL,
		IsGroup:   conv.IsGroup,
		UserLimit: conv.UserLimit,
		CreatedAt: conv.CreatedAt,
		Members:   make([]PublicUserResponse, 0, len(conv.Members)),
		Messages:  make([]MessageResponse, 0, len(conv.Messages)),
	}
	for _, member := range conv.Members {
		response.Members = append(response.Members, buildPublicUserResponse(member))
	}
	for _, msg := range conv.Messages {
		seenBy := make([]string, 0, len(msg.SeenBy))
		for _, u := range msg.SeenBy {
			seenBy = append(seenBy, u.ID)
		}
		response.Messages = append(response.Messages, MessageResponse{
			ID:        msg.ID,
			AuthorID:  msg.AuthorID,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
			SeenBy:    seenBy,
		})
	}
	return response
}

// endregion

// ConversationHandler serves the conversation read and write paths.
type ConversationHandler struct {
	svc *conversation.Service
}

func NewConversationHandler(svc *conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// GetConversations godoc
// @Summary      List conversation previews
// @Description  Cursor-paginated previews ordered by (last message time, creation time) descending. Pass next_cursor back verbatim to fetch the following page.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        limit        query     int     false  "Page size"  default(20)
// @Param        next_cursor  query     string  false  "Opaque continuation token"
// @Success      200  {object}  CursorPage[conversation.Preview]
// @Failure      400  {object}  ErrorResponse "Malformed or foreign-entity cursor"
// @Failure      401  {object}  ErrorResponse
// @Router       /conversations [get]
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	page, err := h.svc.Previews(c.Request.Context(), viewerID(c), limit, c.Query("next_cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewCursorPage(page.Items, page.NextCursor, page.HasMore))
}

// CreateConversation godoc
// @Summary      Create a conversation
// @Description  Creates a conversation with at least two members. Name, avatar and user limit are group-only.
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body conversation.CreateInput true "Conversation Info"
// @Success      201  {object}  ConversationResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "A member does not exist"
// @Router       /conversations [put]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var input conversation.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildConversationResponse(conv))
}

// GetConversation godoc
// @Summary      Get a conversation
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  ConversationResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.svc.Get(c.Request.Context(), c.Param("id"), viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildConversationResponse(conv))
}

// SendMessage godoc
// @Summary      Send a message
// @Description  Appends a message to the conversation and bumps it to the front of the preview ordering.
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string            true  "Conversation ID"
// @Param        input  body      SendMessageInput  true  "Message"
// @Success      201  {object}  MessageResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SaveMessage(c.Request.Context(), c.Param("id"), viewerID(c), input.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{
		ID:        msg.ID,
		AuthorID:  msg.AuthorID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		SeenBy:    []string{},
	})
}

// MarkSeen godoc
// @Summary      Mark the latest message as seen
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /conversations/{id}/seen [post]
func (h *ConversationHandler) MarkSeen(c *gin.Context) {
	if err := h.svc.MarkSeen(c.Request.Context(), c.Param("id"), viewerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Seen"})
}
