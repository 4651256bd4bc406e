package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelationshipType is the stored state of a relationship between two users.
type RelationshipType string

const (
	// RelationshipPending means a friend request has been sent but not yet
	// accepted. Whether it reads as incoming or outgoing depends on the viewer.
	RelationshipPending RelationshipType = "pending"

	// RelationshipBlocked means one side blocked the other. Terminal: there is
	// no modeled transition out of it.
	RelationshipBlocked RelationshipType = "blocked"

	// RelationshipSettled means the request was accepted and the users are friends.
	RelationshipSettled RelationshipType = "settled"
)

// DisplayType is the viewer-relative rendering of a relationship type.
// It is computed at the read boundary and never persisted.
type DisplayType string

const (
	DisplayIncomingRequest DisplayType = "incoming_request"
	DisplayOutgoingRequest DisplayType = "outgoing_request"
	DisplayBlocked         DisplayType = "blocked"
	DisplaySettled         DisplayType = "settled"
)

// Relationship represents a directed request or an established link between
// exactly two users. PairKey normalizes the unordered pair so the database's
// unique index guarantees at most one row per pair.
type Relationship struct {
	ID              string           `gorm:"type:uuid;primaryKey"`
	InitiatorUserID string           `gorm:"type:uuid;not null;index"`
	TargetUserID    string           `gorm:"type:uuid;not null;index"`
	PairKey         string           `gorm:"size:80;uniqueIndex;not null"`
	Type            RelationshipType `gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time

	Initiator User `gorm:"foreignKey:InitiatorUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Target    User `gorm:"foreignKey:TargetUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// PairKeyFor returns the normalized key for the unordered pair {a, b}.
func PairKeyFor(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// BeforeCreate assigns the UUID and normalized pair key.
func (r *Relationship) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.PairKey == "" {
		r.PairKey = PairKeyFor(r.InitiatorUserID, r.TargetUserID)
	}
	return nil
}

// DisplayTypeFor renders the stored type relative to the viewer. A pending
// relationship reads as outgoing to the initiator and incoming to the target.
func (r *Relationship) DisplayTypeFor(viewerID string) DisplayType {
	switch r.Type {
	case RelationshipPending:
		if r.InitiatorUserID == viewerID {
			return DisplayOutgoingRequest
		}
		return DisplayIncomingRequest
	case RelationshipBlocked:
		return DisplayBlocked
	default:
		return DisplaySettled
	}
}

// PeerOf returns the party that is not the given user.
func (r *Relationship) PeerOf(userID string) string {
	if r.InitiatorUserID == userID {
		return r.TargetUserID
	}
	return r.InitiatorUserID
}

// HasParty reports whether the given user is one of the two parties.
func (r *Relationship) HasParty(userID string) bool {
	return r.InitiatorUserID == userID || r.TargetUserID == userID
}
