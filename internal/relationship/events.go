package relationship

import (
	"time"

	"linkup/backend/internal/models"
)

// Realtime event names exchanged with clients.
const (
	// EventNew notifies both parties that a relationship was created.
	EventNew = "relationship:new"
	// EventDelete tells the initiator their pending entry was superseded
	// (sent after an acceptance commits, so the UI can drop the request row).
	EventDelete = "relationship:delete"
	// EventRequestRejected tells the initiator their request was declined.
	EventRequestRejected = "relationship:request_rejected"
	// EventEventsSeen is inbound from clients and resets the unseen counter
	// for one relationship type.
	EventEventsSeen = "relationship:events_seen"
)

// Peer is the public projection of the other party of a relationship.
type Peer struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// NewPayload is the relationship:new event body. Type is rendered
// directionally relative to the recipient.
type NewPayload struct {
	ID        string             `json:"id"`
	Type      models.DisplayType `json:"type"`
	User      Peer               `json:"user"`
	CreatedAt time.Time          `json:"created_at"`
}

// DeletePayload is the relationship:delete event body. It carries the old
// pending identity as the initiator saw it.
type DeletePayload struct {
	RelationshipID string             `json:"relationship_id"`
	Type           models.DisplayType `json:"type"`
}

// RequestRejectedPayload is the relationship:request_rejected event body.
type RequestRejectedPayload struct {
	RelationshipID string             `json:"relationship_id"`
	Type           models.DisplayType `json:"type"`
}

// EventsSeenPayload is the inbound relationship:events_seen body.
type EventsSeenPayload struct {
	Type models.RelationshipType `json:"type"`
}

func peerOf(user models.User) Peer {
	return Peer{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL}
}
