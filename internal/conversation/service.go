// Package conversation implements conversation creation, the message append
// path, and the cursor-paginated per-viewer preview query.
package conversation

import (
	"context"
	"errors"
	"time"

	"linkup/backend/internal/apperr"
	"linkup/backend/internal/models"
	"linkup/backend/internal/pagination"
	"linkup/backend/internal/store"
)

// CursorEntity tags preview cursors. Cursors minted for other entities are
// rejected by the decoder.
const CursorEntity = "conversation"

const (
	cursorKeyCreatedAt        = "last_created_at"
	cursorKeyMessageCreatedAt = "last_message_created_at"

	cursorTimeLayout = time.RFC3339Nano

	defaultPageSize = 20
)

// CreateInput is the payload for explicit conversation creation.
type CreateInput struct {
	IsGroup   bool     `json:"is_group"`
	MemberIDs []string `json:"members" binding:"required"`
	Name      *string  `json:"name"`
	AvatarURL *string  `json:"avatar_url"`
	UserLimit *int     `json:"user_limit"`
}

// MessagePreview is the last-message projection inside a preview item.
type MessagePreview struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Seen      bool      `json:"seen"`
}

// Preview is one viewer-relative conversation projection: the display name is
// the peer's username for 1:1 conversations and the stored name for groups.
type Preview struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
	IsGroup     bool            `json:"is_group"`
	CreatedAt   time.Time       `json:"created_at"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
}

// Page is one page of previews plus the continuation token.
type Page struct {
	Items      []Preview `json:"data"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// Service serves the conversation read and write paths.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create validates membership rules and persists a conversation. Group-only
// fields on a non-group conversation are a validation error, as is a
// membership below two users.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Conversation, error) {
	if len(input.MemberIDs) < 2 {
		return nil, apperr.Validation("validation_error",
			"Conversation has to have at least 2 members.")
	}
	if !input.IsGroup {
		if len(input.MemberIDs) > 2 {
			return nil, apperr.Validation("validation_error",
				"is_group must be true for group conversations.")
		}
		if input.Name != nil || input.AvatarURL != nil || input.UserLimit != nil {
			return nil, apperr.Validation("validation_error",
				"name, avatar_url and user_limit can only be set for group conversations.")
		}
	}

	members := make([]models.User, 0, len(input.MemberIDs))
	for _, id := range input.MemberIDs {
		user, err := s.store.UserByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("user_not_found", "Conversation member does not exist.")
			}
			return nil, err
		}
		members = append(members, *user)
	}

	conv := &models.Conversation{
		Name:      input.Name,
		AvatarURL: input.AvatarURL,
		IsGroup:   input.IsGroup,
		UserLimit: input.UserLimit,
		Members:   members,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get fetches a conversation with its members and messages. The requester
// must be a member.
func (s *Service) Get(ctx context.Context, conversationID, requesterID string) (*models.Conversation, error) {
	conv, err := s.store.ConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("conversation_not_found", "Conversation not found")
		}
		return nil, err
	}
	if !s.isMember(conv, requesterID) {
		return nil, apperr.Authorization("prohibited_operation",
			"You are not a member of this conversation")
	}
	return conv, nil
}

// SaveMessage appends a message and stamps the conversation's last-message
// timestamp, which moves it to the front of the preview ordering.
func (s *Service) SaveMessage(ctx context.Context, conversationID, authorID, text string) (*models.Message, error) {
	if text == "" {
		return nil, apperr.Validation("validation_error", "Message text must not be empty")
	}

	conv, err := s.store.ConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("conversation_not_found", "Conversation not found")
		}
		return nil, err
	}
	if !s.isMember(conv, authorID) {
		return nil, apperr.Authorization("prohibited_operation",
			"You are not a member of this conversation")
	}

	if _, err := s.store.UserByID(ctx, authorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("sender_not_found", "Sender not found.")
		}
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		AuthorID:       authorID,
		Text:           text,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkSeen adds the viewer to the seen set of the conversation's latest
// message. A conversation without messages is a no-op.
func (s *Service) MarkSeen(ctx context.Context, conversationID, viewerID string) error {
	conv, err := s.Get(ctx, conversationID, viewerID)
	if err != nil {
		return err
	}
	if len(conv.Messages) == 0 {
		return nil
	}
	last := conv.Messages[len(conv.Messages)-1]
	return s.store.MarkMessageSeen(ctx, last.ID, viewerID)
}

// Previews returns one page of the viewer's conversation previews ordered by
// (last-message time, creation time) descending. It fetches limit+1 rows to
// detect has_more without a count query; when another page exists, the
// tie-break values of the last returned item become the next cursor.
func (s *Service) Previews(ctx context.Context, viewerID string, limit int, cursorToken string) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	anchor, err := decodePreviewCursor(cursorToken)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.PreviewPage(ctx, viewerID, limit+1, anchor)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	page := &Page{Items: make([]Preview, 0, len(rows)), HasMore: hasMore}
	for _, row := range rows {
		page.Items = append(page.Items, s.buildPreview(row, viewerID))
	}

	if hasMore {
		page.NextCursor = encodePreviewCursor(rows[len(rows)-1])
	}
	return page, nil
}

func (s *Service) isMember(conv *models.Conversation, userID string) bool {
	for _, m := range conv.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (s *Service) buildPreview(row store.PreviewRow, viewerID string) Preview {
	conv := row.Conversation
	preview := Preview{
		ID:        conv.ID,
		IsGroup:   conv.IsGroup,
		CreatedAt: conv.CreatedAt,
	}

	if conv.IsGroup {
		if conv.Name != nil {
			preview.Name = *conv.Name
		}
		if conv.AvatarURL != nil {
			preview.AvatarURL = *conv.AvatarURL
		}
	} else if peer := conv.PeerFor(viewerID); peer != nil {
		preview.Name = peer.Username
		preview.AvatarURL = peer.AvatarURL
	}

	if row.LastMessage != nil {
		preview.LastMessage = &MessagePreview{
			ID:        row.LastMessage.ID,
			Text:      row.LastMessage.Text,
			AuthorID:  row.LastMessage.AuthorID,
			CreatedAt: row.LastMessage.CreatedAt,
			Seen:      row.LastMessage.SeenByUser(viewerID),
		}
	}
	return preview
}

// decodePreviewCursor turns a client token into a store anchor. An empty
// token means the first page. All failures are client errors.
func decodePreviewCursor(token string) (*store.PreviewAnchor, error) {
	if token == "" {
		return nil, nil
	}

	cursor, err := pagination.DecodeFor(CursorEntity, token)
	if err != nil {
		return nil, err
	}

	rawCreatedAt, ok := cursor.Get(cursorKeyCreatedAt)
	if !ok {
		return nil, apperr.Validation("invalid_cursor",
			"Invalid pagination cursor: "+cursorKeyCreatedAt+" is missing")
	}
	createdAt, err := time.Parse(cursorTimeLayout, rawCreatedAt)
	if err != nil {
		return nil, apperr.Validation("invalid_cursor",
			"Invalid pagination cursor: "+cursorKeyCreatedAt+" is malformed")
	}

	anchor := &store.PreviewAnchor{LastCreatedAt: createdAt}
	if raw, ok := cursor.Get(cursorKeyMessageCreatedAt); ok {
		msgCreatedAt, err := time.Parse(cursorTimeLayout, raw)
		if err != nil {
			return nil, apperr.Validation("invalid_cursor",
				"Invalid pagination cursor: "+cursorKeyMessageCreatedAt+" is malformed")
		}
		anchor.LastMessageCreatedAt = &msgCreatedAt
	}
	return anchor, nil
}

// encodePreviewCursor builds the continuation token from the last returned
// row. The message timestamp is present only when the anchor had a message;
// the codec omits empty values entirely.
func encodePreviewCursor(row store.PreviewRow) string {
	messageCreatedAt := ""
	if row.LastMessage != nil {
		messageCreatedAt = row.LastMessage.CreatedAt.Format(cursorTimeLayout)
	}
	return pagination.Encode(CursorEntity,
		pagination.Pair{Key: cursorKeyCreatedAt, Value: row.Conversation.CreatedAt.Format(cursorTimeLayout)},
		pagination.Pair{Key: cursorKeyMessageCreatedAt, Value: messageCreatedAt},
	)
}
