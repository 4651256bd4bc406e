package store

import (
	"context"
	"testing"

	"linkup/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPair(t *testing.T, st *MemStore) (*models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	alice := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	bob := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(ctx, alice))
	require.NoError(t, st.CreateUser(ctx, bob))
	return alice, bob
}

func TestSettleRelationshipDoesNotOverrideBlock(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	alice, bob := seedPair(t, st)

	rel := &models.Relationship{
		InitiatorUserID: alice.ID,
		TargetUserID:    bob.ID,
		Type:            models.RelationshipPending,
	}
	require.NoError(t, st.CreateRelationship(ctx, rel))

	// A block lands between the caller's pending check and the settle.
	_, err := st.UpsertBlocked(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	_, err = st.SettleRelationship(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// Blocking won: the row stays blocked and no conversation materialized.
	current, err := st.RelationshipByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipBlocked, current.Type)

	_, err = st.ConversationForPair(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettleRelationshipRequiresPending(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	alice, bob := seedPair(t, st)

	rel := &models.Relationship{
		InitiatorUserID: alice.ID,
		TargetUserID:    bob.ID,
		Type:            models.RelationshipPending,
	}
	require.NoError(t, st.CreateRelationship(ctx, rel))

	conv, err := st.SettleRelationship(ctx, rel.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)

	// A repeated settle conflicts instead of forking a second conversation.
	_, err = st.SettleRelationship(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrConflict)

	paired, err := st.ConversationForPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, paired.ID)

	_, err = st.SettleRelationship(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
