// Package relationship owns the relationship lifecycle state machine:
//
//	[none] --request--> pending --accept--> settled (+conversation)
//	                       |--reject--> [deleted]
//	any state --block--> blocked (terminal)
//	settled --delete friend--> [deleted] (+conversation deleted)
package relationship

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkup/backend/internal/apperr"
	"linkup/backend/internal/models"
	"linkup/backend/internal/store"
)

// Status is a requested transition for a pending relationship.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Emitter delivers a named event to one user's active connection. Non-strict
// delivery treats a disconnected recipient as success.
type Emitter interface {
	EmitToUser(ctx context.Context, userID, event string, payload interface{}, strict bool) error
}

// View is the viewer-relative projection of a relationship returned by reads.
type View struct {
	ID             string             `json:"id"`
	Type           models.DisplayType `json:"type"`
	User           Peer               `json:"user"`
	ConversationID string             `json:"conversation_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Service implements the relationship state machine and its fan-out.
type Service struct {
	store   store.Store
	emitter Emitter
	log     *slog.Logger
}

// NewService wires the state machine to its store and realtime emitter.
func NewService(st store.Store, emitter Emitter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, emitter: emitter, log: log}
}

// CreateFriendRequest resolves the target by username and inserts a pending
// relationship. The store's unique pair index is the authoritative guard
// against the concurrent duplicate-request race; a losing insert surfaces as
// a conflict, never as a second row.
func (s *Service) CreateFriendRequest(ctx context.Context, initiatorID, targetUsername string) (*models.Relationship, error) {
	target, err := s.store.UserByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user_not_found",
				"Oh no, it looks like I couldn't find the person you were searching for.")
		}
		return nil, err
	}

	initiator, err := s.store.UserByID(ctx, initiatorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user_not_found", "Initiating user no longer exists.")
		}
		return nil, err
	}

	if initiator.ID == target.ID {
		return nil, apperr.Validation("self_reference_error",
			"You can't send a friend request to yourself")
	}

	// The peer may have already requested us; steer both sides toward
	// acceptance instead of creating a duplicate.
	_, err = s.store.PendingRelationship(ctx, target.ID, initiator.ID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("already_received_friend_request",
			"You already have a pending friend request from this user.")
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	rel := &models.Relationship{
		InitiatorUserID: initiator.ID,
		TargetUserID:    target.ID,
		Type:            models.RelationshipPending,
	}
	if err := s.store.CreateRelationship(ctx, rel); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("already_sent_request",
				"You already have a pending request to this user.")
		}
		return nil, err
	}

	// Best-effort fan-out: an offline peer never blocks the mutation.
	s.emit(ctx, initiator.ID, EventNew, NewPayload{
		ID:        rel.ID,
		Type:      rel.DisplayTypeFor(initiator.ID),
		User:      peerOf(*target),
		CreatedAt: rel.CreatedAt,
	})
	s.emit(ctx, target.ID, EventNew, NewPayload{
		ID:        rel.ID,
		Type:      rel.DisplayTypeFor(target.ID),
		User:      peerOf(*initiator),
		CreatedAt: rel.CreatedAt,
	})

	return rel, nil
}

// UpdateRelationshipStatus resolves a pending relationship: acceptance flips
// it to settled and creates the paired conversation in one transaction;
// rejection deletes it. The returned conversation is non-nil only for
// acceptance.
func (s *Service) UpdateRelationshipStatus(ctx context.Context, relID string, status Status) (*models.Conversation, error) {
	rel, err := s.store.RelationshipByID(ctx, relID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("relationship_not_found", "Relationship not found")
		}
		return nil, err
	}
	if rel.Type != models.RelationshipPending {
		return nil, apperr.Validation("validation_error",
			"Only pending relationships can be accepted or rejected")
	}

	switch status {
	case StatusAccepted:
		conv, err := s.store.SettleRelationship(ctx, rel.ID)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, apperr.Conflict("relationship_not_pending",
					"The relationship changed state while being accepted")
			}
			return nil, err
		}
		// Only after the transaction is durable: the initiator's client
		// removes the pending entry it has been rendering.
		s.emit(ctx, rel.InitiatorUserID, EventDelete, DeletePayload{
			RelationshipID: rel.ID,
			Type:           models.DisplayOutgoingRequest,
		})
		return conv, nil

	case StatusRejected:
		if err := s.store.DeleteRelationship(ctx, rel.ID); err != nil {
			return nil, err
		}
		s.emit(ctx, rel.InitiatorUserID, EventRequestRejected, RequestRejectedPayload{
			RelationshipID: rel.ID,
			Type:           models.DisplayOutgoingRequest,
		})
		return nil, nil

	default:
		return nil, apperr.Validation("validation_error",
			"Status must be either accepted or rejected")
	}
}

// BlockUser upserts the pair's relationship to blocked. Blocking always wins
// over pending and settled, and repeating it is a no-op.
func (s *Service) BlockUser(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error) {
	if initiatorID == targetID {
		return nil, apperr.Validation("self_reference_error", "You can't block yourself")
	}
	if _, err := s.store.UserByID(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user_not_found", "The user you are trying to block does not exist.")
		}
		return nil, err
	}
	return s.store.UpsertBlocked(ctx, initiatorID, targetID)
}

// DeleteFriend removes a relationship and its paired 1:1 conversation. Only
// a party to the relationship may do this. A settled relationship without a
// matching conversation is tolerated: the relationship is still removed.
func (s *Service) DeleteFriend(ctx context.Context, relID, requesterID string) error {
	rel, err := s.store.RelationshipByID(ctx, relID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("relationship_not_found", "Relationship not found")
		}
		return err
	}
	if !rel.HasParty(requesterID) {
		return apperr.Authorization("prohibited_operation",
			"You cannot modify a relationship you are not a party to")
	}

	conversationID := ""
	if rel.Type == models.RelationshipSettled {
		conv, err := s.store.ConversationForPair(ctx, rel.InitiatorUserID, rel.TargetUserID)
		switch {
		case err == nil:
			conversationID = conv.ID
		case errors.Is(err, store.ErrNotFound):
			s.log.Warn("settled relationship has no paired conversation",
				"relationship_id", rel.ID)
		default:
			return err
		}
	}

	return s.store.DeleteRelationshipWithConversation(ctx, rel.ID, conversationID)
}

// GetRelationships lists relationships visible to the viewer. Blocked rows
// are only shown to their initiator; pending rows carry the computed
// directional label; settled rows resolve their 1:1 conversation id.
func (s *Service) GetRelationships(ctx context.Context, viewerID string, relType models.RelationshipType, limit int) ([]View, error) {
	switch relType {
	case models.RelationshipPending, models.RelationshipBlocked, models.RelationshipSettled:
	default:
		return nil, apperr.Validation("validation_error", "Unknown relationship type")
	}
	if limit <= 0 {
		limit = 20
	}

	initiatorOnly := relType == models.RelationshipBlocked
	rels, err := s.store.ListRelationships(ctx, viewerID, relType, initiatorOnly, limit)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(rels))
	for _, rel := range rels {
		peer := rel.Target
		if rel.TargetUserID == viewerID {
			peer = rel.Initiator
		}

		view := View{
			ID:        rel.ID,
			Type:      rel.DisplayTypeFor(viewerID),
			User:      peerOf(peer),
			CreatedAt: rel.CreatedAt,
		}

		if rel.Type == models.RelationshipSettled {
			conv, err := s.store.ConversationForPair(ctx, rel.InitiatorUserID, rel.TargetUserID)
			switch {
			case err == nil:
				view.ConversationID = conv.ID
			case !errors.Is(err, store.ErrNotFound):
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// ResetStats zeroes the viewer's unseen counter for one relationship type.
// The row is created lazily on the first reset.
func (s *Service) ResetStats(ctx context.Context, userID string, relType models.RelationshipType) error {
	switch relType {
	case models.RelationshipPending, models.RelationshipBlocked, models.RelationshipSettled:
	default:
		return apperr.Validation("validation_error", "Unknown relationship type")
	}
	return s.store.ResetRelationshipStats(ctx, userID, relType)
}

// emit performs a best-effort delivery. Failures concern a side effect of an
// already committed mutation, so they are logged and swallowed.
func (s *Service) emit(ctx context.Context, userID, event string, payload interface{}) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitToUser(ctx, userID, event, payload, false); err != nil {
		s.log.Warn("relationship event delivery failed",
			"event", event, "user_id", userID, "err", err)
	}
}
