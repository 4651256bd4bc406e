package relationship

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"linkup/backend/internal/apperr"
	"linkup/backend/internal/models"
	"linkup/backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emittedEvent struct {
	UserID  string
	Event   string
	Payload interface{}
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
	err    error
}

func (f *fakeEmitter) EmitToUser(ctx context.Context, userID, event string, payload interface{}, strict bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emittedEvent{UserID: userID, Event: event, Payload: payload})
	return nil
}

func (f *fakeEmitter) eventsFor(userID string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *store.MemStore, *fakeEmitter) {
	t.Helper()
	st := store.NewMemStore()
	emitter := &fakeEmitter{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, emitter, log), st, emitter
}

func seedUser(t *testing.T, st *store.MemStore, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func TestCreateFriendRequest(t *testing.T) {
	ctx := context.Background()
	svc, st, emitter := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipPending, rel.Type)
	assert.Equal(t, alice.ID, rel.InitiatorUserID)
	assert.Equal(t, bob.ID, rel.TargetUserID)

	// Both parties are notified, each with their own directional type.
	aliceEvents := emitter.eventsFor(alice.ID)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, EventNew, aliceEvents[0].Event)
	assert.Equal(t, models.DisplayOutgoingRequest, aliceEvents[0].Payload.(NewPayload).Type)
	assert.Equal(t, bob.ID, aliceEvents[0].Payload.(NewPayload).User.ID)

	bobEvents := emitter.eventsFor(bob.ID)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, EventNew, bobEvents[0].Event)
	assert.Equal(t, models.DisplayIncomingRequest, bobEvents[0].Payload.(NewPayload).Type)
	assert.Equal(t, alice.ID, bobEvents[0].Payload.(NewPayload).User.ID)
}

func TestCreateFriendRequestTargetLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "Bob")

	_, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	assert.NoError(t, err)
}

func TestCreateFriendRequestUnknownTarget(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")

	_, err := svc.CreateFriendRequest(ctx, alice.ID, "nobody")
	require.Error(t, err)
	assert.Equal(t, "user_not_found", apperr.CodeOf(err))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateFriendRequestSelfReference(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")

	_, err := svc.CreateFriendRequest(ctx, alice.ID, "alice")
	require.Error(t, err)
	assert.Equal(t, "self_reference_error", apperr.CodeOf(err))
}

func TestCreateFriendRequestConflictsInBothDirections(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	_, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	// Repeating the same request.
	_, err = svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.Error(t, err)
	assert.Equal(t, "already_sent_request", apperr.CodeOf(err))
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// The peer requesting back hits the reverse-direction guard.
	_, err = svc.CreateFriendRequest(ctx, bob.ID, "alice")
	require.Error(t, err)
	assert.Equal(t, "already_received_friend_request", apperr.CodeOf(err))
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestAcceptSettlesAndCreatesConversation(t *testing.T) {
	ctx := context.Background()
	svc, st, emitter := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	conv, err := svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.False(t, conv.IsGroup)
	assert.Len(t, conv.Members, 2)

	// Relationship is settled and the pair resolves to the new conversation.
	settled, err := st.RelationshipByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipSettled, settled.Type)

	paired, err := st.ConversationForPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, paired.ID)

	// The initiator's pending entry is retired client-side.
	events := emitter.eventsFor(alice.ID)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventDelete, last.Event)
	assert.Equal(t, rel.ID, last.Payload.(DeletePayload).RelationshipID)
	assert.Equal(t, models.DisplayOutgoingRequest, last.Payload.(DeletePayload).Type)
}

func TestRejectDeletesWithoutConversation(t *testing.T) {
	ctx := context.Background()
	svc, st, emitter := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	conv, err := svc.UpdateRelationshipStatus(ctx, rel.ID, StatusRejected)
	require.NoError(t, err)
	assert.Nil(t, conv)

	_, err = st.RelationshipByID(ctx, rel.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.ConversationForPair(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	events := emitter.eventsFor(alice.ID)
	require.NotEmpty(t, events)
	assert.Equal(t, EventRequestRejected, events[len(events)-1].Event)
}

func TestUpdateRelationshipStatusValidation(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")

	_, err := svc.UpdateRelationshipStatus(ctx, "missing", StatusAccepted)
	assert.Equal(t, "relationship_not_found", apperr.CodeOf(err))

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, Status("maybe"))
	assert.Equal(t, "validation_error", apperr.CodeOf(err))

	// Settled relationships can no longer be accepted or rejected.
	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.NoError(t, err)
	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, StatusRejected)
	assert.Equal(t, "validation_error", apperr.CodeOf(err))
}

// settleConflictStore simulates a settle losing to a concurrent state change
// after the service's own pending check has passed.
type settleConflictStore struct {
	store.Store
}

func (s *settleConflictStore) SettleRelationship(ctx context.Context, relID string) (*models.Conversation, error) {
	return nil, store.ErrConflict
}

func TestAcceptConflictWhenStateChangesUnderneath(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	emitter := &fakeEmitter{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(&settleConflictStore{Store: st}, emitter, log)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, "relationship_not_pending", apperr.CodeOf(err))

	// The failed accept must not retire the initiator's pending entry.
	for _, e := range emitter.eventsFor(alice.ID) {
		assert.NotEqual(t, EventDelete, e.Event)
	}
}

func TestBlockOverridesExistingState(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.NoError(t, err)

	blocked, err := svc.BlockUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipBlocked, blocked.Type)
	assert.Equal(t, rel.ID, blocked.ID, "blocking reuses the pair's single row")

	// Blocking again is a no-op.
	again, err := svc.BlockUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, blocked.ID, again.ID)
	assert.Equal(t, models.RelationshipBlocked, again.Type)
}

func TestBlockValidation(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")

	_, err := svc.BlockUser(ctx, alice.ID, alice.ID)
	assert.Equal(t, "self_reference_error", apperr.CodeOf(err))

	_, err = svc.BlockUser(ctx, alice.ID, "missing")
	assert.Equal(t, "user_not_found", apperr.CodeOf(err))
}

func TestBlockedRowsVisibleToInitiatorOnly(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	_, err := svc.BlockUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	views, err := svc.GetRelationships(ctx, alice.ID, models.RelationshipBlocked, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.DisplayBlocked, views[0].Type)
	assert.Equal(t, bob.ID, views[0].User.ID)

	views, err = svc.GetRelationships(ctx, bob.ID, models.RelationshipBlocked, 20)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestDeleteFriendRequiresParty(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	mallory := seedUser(t, st, "mallory")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	err = svc.DeleteFriend(ctx, rel.ID, mallory.ID)
	require.Error(t, err)
	assert.Equal(t, "prohibited_operation", apperr.CodeOf(err))
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	// The failed attempt left the relationship untouched.
	_, err = st.RelationshipByID(ctx, rel.ID)
	assert.NoError(t, err)
}

func TestDeleteFriendRemovesConversation(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	conv, err := svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFriend(ctx, rel.ID, bob.ID))

	_, err = st.RelationshipByID(ctx, rel.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.ConversationByID(ctx, conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteFriendToleratesMissingConversation(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	// A settled relationship whose paired conversation never materialized.
	rel := &models.Relationship{
		InitiatorUserID: alice.ID,
		TargetUserID:    bob.ID,
		Type:            models.RelationshipSettled,
	}
	require.NoError(t, st.CreateRelationship(ctx, rel))

	require.NoError(t, svc.DeleteFriend(ctx, rel.ID, alice.ID))

	_, err := st.RelationshipByID(ctx, rel.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetRelationshipsDirectionalTypes(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	_, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	views, err := svc.GetRelationships(ctx, alice.ID, models.RelationshipPending, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.DisplayOutgoingRequest, views[0].Type)
	assert.Equal(t, bob.ID, views[0].User.ID)
	assert.Empty(t, views[0].ConversationID)

	views, err = svc.GetRelationships(ctx, bob.ID, models.RelationshipPending, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.DisplayIncomingRequest, views[0].Type)
	assert.Equal(t, alice.ID, views[0].User.ID)
}

func TestGetRelationshipsSettledResolvesConversation(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)
	conv, err := svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	require.NoError(t, err)

	views, err := svc.GetRelationships(ctx, alice.ID, models.RelationshipSettled, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.DisplaySettled, views[0].Type)
	assert.Equal(t, conv.ID, views[0].ConversationID)
}

func TestGetRelationshipsRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")

	_, err := svc.GetRelationships(ctx, alice.ID, models.RelationshipType("bizarre"), 20)
	assert.Equal(t, "validation_error", apperr.CodeOf(err))
}

func TestResetStats(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	alice := seedUser(t, st, "alice")

	err := svc.ResetStats(ctx, alice.ID, models.RelationshipType("bizarre"))
	assert.Equal(t, "validation_error", apperr.CodeOf(err))

	require.NoError(t, svc.ResetStats(ctx, alice.ID, models.RelationshipPending))
	stats, err := st.RelationshipStats(ctx, alice.ID, models.RelationshipPending)
	require.NoError(t, err)
	assert.Zero(t, stats.UnseenCount)

	// Resetting twice stays at zero.
	require.NoError(t, svc.ResetStats(ctx, alice.ID, models.RelationshipPending))
}

func TestEmitterFailureNeverFailsTheMutation(t *testing.T) {
	ctx := context.Background()
	svc, st, emitter := newTestService(t)
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	emitter.err = errors.New("connection reset")

	rel, err := svc.CreateFriendRequest(ctx, alice.ID, "bob")
	require.NoError(t, err)

	_, err = svc.UpdateRelationshipStatus(ctx, rel.ID, StatusAccepted)
	assert.NoError(t, err)
}
