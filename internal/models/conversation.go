package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a chat between two or more users. Name, AvatarURL and
// UserLimit are only meaningful for groups; a 1:1 conversation borrows the
// peer's username and avatar at read time.
type Conversation struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	Name      *string `gorm:"size:255"`
	AvatarURL *string `gorm:"size:512"`
	IsGroup   bool    `gorm:"not null;default:false"`
	UserLimit *int
	CreatedAt time.Time

	// LastMessageAt is stamped on every appended message and drives the
	// preview ordering. Nil means the conversation has no messages yet.
	LastMessageAt *time.Time `gorm:"index"`

	Members  []User    `gorm:"many2many:conversation_members;"`
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE;"`
}

// BeforeCreate assigns a fresh UUID when the caller did not set one.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// MemberIDs returns the ids of all members, in stored order.
func (c *Conversation) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// PeerFor returns the other member of a 1:1 conversation, or nil for groups
// and for conversations the viewer is not part of.
func (c *Conversation) PeerFor(viewerID string) *User {
	if c.IsGroup || len(c.Members) != 2 {
		return nil
	}
	for i := range c.Members {
		if c.Members[i].ID != viewerID {
			return &c.Members[i]
		}
	}
	return nil
}
