package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered account. The account subsystem owns this
// record; the relationship core only reads it for lookups and projections.
type User struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Username     string `gorm:"size:255;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	AvatarURL    string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BeforeCreate assigns a fresh UUID when the caller did not set one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
