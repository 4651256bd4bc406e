package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a chat message within a conversation.
type Message struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	ConversationID string `gorm:"type:uuid;not null;index"`
	AuthorID       string `gorm:"type:uuid;not null"`
	Text           string `gorm:"not null"`
	CreatedAt      time.Time

	Author User   `gorm:"foreignKey:AuthorID"`
	SeenBy []User `gorm:"many2many:message_seen_by;"`
}

// BeforeCreate assigns a fresh UUID when the caller did not set one.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SeenByUser reports whether the given user is in the seen set. The author
// counts as having seen their own message.
func (m *Message) SeenByUser(userID string) bool {
	if m.AuthorID == userID {
		return true
	}
	for _, u := range m.SeenBy {
		if u.ID == userID {
			return true
		}
	}
	return false
}
