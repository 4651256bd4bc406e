// Package store is the persistence boundary of the relationship core. The
// gorm/postgres implementation is the production backend; the in-memory
// implementation backs tests and single-process development.
package store

import (
	"context"
	"errors"
	"time"

	"linkup/backend/internal/models"
)

// Sentinel errors. Services translate these into domain errors at their
// boundary; raw driver errors never leak past this package.
var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
	ErrConflict  = errors.New("store: conflicting update")
)

// PreviewAnchor carries the tie-break values of the last item of the previous
// preview page. A nil LastMessageCreatedAt means the anchor had no messages.
type PreviewAnchor struct {
	LastCreatedAt        time.Time
	LastMessageCreatedAt *time.Time
}

// PrimaryKey returns the anchor's primary sort value: the last message
// timestamp when present, otherwise the conversation's own creation time.
func (a PreviewAnchor) PrimaryKey() time.Time {
	if a.LastMessageCreatedAt != nil {
		return *a.LastMessageCreatedAt
	}
	return a.LastCreatedAt
}

// PreviewRow is one conversation of a preview page. Conversation.Members is
// populated; LastMessage is nil for conversations without messages and has
// its SeenBy set loaded otherwise.
type PreviewRow struct {
	Conversation models.Conversation
	LastMessage  *models.Message
}

// Store is the transactional persistence interface shared by the services.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByUsername matches case-insensitively.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsersExcept(ctx context.Context, userID string) ([]models.User, error)

	// Relationships. CreateRelationship returns ErrDuplicate when the
	// normalized pair key already exists; the unique index is the
	// authoritative guard against concurrent duplicate requests.
	CreateRelationship(ctx context.Context, rel *models.Relationship) error
	RelationshipByID(ctx context.Context, id string) (*models.Relationship, error)
	PendingRelationship(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error)
	ListRelationships(ctx context.Context, viewerID string, relType models.RelationshipType, initiatorOnly bool, limit int) ([]models.Relationship, error)
	UpsertBlocked(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error

	// SettleRelationship atomically flips a pending relationship to settled
	// and creates the paired 2-member conversation. Readers never observe one
	// without the other. Returns ErrConflict when the relationship is no
	// longer pending, so a concurrent block is never overridden and a
	// repeated accept cannot fork a second conversation.
	SettleRelationship(ctx context.Context, relID string) (*models.Conversation, error)

	// DeleteRelationshipWithConversation atomically removes the relationship
	// and, when conversationID is non-empty, the paired conversation.
	DeleteRelationshipWithConversation(ctx context.Context, relID, conversationID string) error

	// Conversations.
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ConversationForPair(ctx context.Context, userA, userB string) (*models.Conversation, error)
	PreviewPage(ctx context.Context, viewerID string, limit int, anchor *PreviewAnchor) ([]PreviewRow, error)

	// Messages.
	SaveMessage(ctx context.Context, msg *models.Message) error
	MarkMessageSeen(ctx context.Context, messageID, userID string) error

	// Stats. ResetRelationshipStats is an idempotent, race-safe upsert that
	// lazily creates the counter row on first reset.
	ResetRelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) error
	RelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) (*models.RelationshipStats, error)
}
