package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"linkup/backend/internal/models"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and single-process development.
// A single mutex stands in for the database's transactional guarantees, so
// the multi-write operations are atomic here as well.
type MemStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	relationships map[string]*models.Relationship
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
	stats         map[string]*models.RelationshipStats
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:         make(map[string]*models.User),
		relationships: make(map[string]*models.Relationship),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
		stats:         make(map[string]*models.RelationshipStats),
	}
}

func stampTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// region --- Users ---

func (s *MemStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return ErrDuplicate
		}
	}
	user.CreatedAt = stampTime(user.CreatedAt)
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *MemStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByIDLocked(id)
}

func (s *MemStore) userByIDLocked(id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for _, user := range s.users {
		if user.ID != userID {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// endregion

// region --- Relationships ---

func (s *MemStore) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.PairKey == "" {
		rel.PairKey = models.PairKeyFor(rel.InitiatorUserID, rel.TargetUserID)
	}
	for _, existing := range s.relationships {
		if existing.PairKey == rel.PairKey {
			return ErrDuplicate
		}
	}
	rel.CreatedAt = stampTime(rel.CreatedAt)
	copied := *rel
	s.relationships[rel.ID] = &copied
	return nil
}

func (s *MemStore) RelationshipByID(ctx context.Context, id string) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateRelationshipLocked(rel), nil
}

func (s *MemStore) hydrateRelationshipLocked(rel *models.Relationship) *models.Relationship {
	copied := *rel
	if user, err := s.userByIDLocked(rel.InitiatorUserID); err == nil {
		copied.Initiator = *user
	}
	if user, err := s.userByIDLocked(rel.TargetUserID); err == nil {
		copied.Target = *user
	}
	return &copied
}

func (s *MemStore) PendingRelationship(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.relationships {
		if rel.InitiatorUserID == initiatorID && rel.TargetUserID == targetID &&
			rel.Type == models.RelationshipPending {
			return s.hydrateRelationshipLocked(rel), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListRelationships(ctx context.Context, viewerID string, relType models.RelationshipType, initiatorOnly bool, limit int) ([]models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rels []models.Relationship
	for _, rel := range s.relationships {
		if rel.Type != relType {
			continue
		}
		if initiatorOnly {
			if rel.InitiatorUserID != viewerID {
				continue
			}
		} else if !rel.HasParty(viewerID) {
			continue
		}
		rels = append(rels, *s.hydrateRelationshipLocked(rel))
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].CreatedAt.Before(rels[j].CreatedAt) })
	if limit > 0 && len(rels) > limit {
		rels = rels[:limit]
	}
	return rels, nil
}

func (s *MemStore) UpsertBlocked(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairKey := models.PairKeyFor(initiatorID, targetID)
	for _, rel := range s.relationships {
		if rel.PairKey == pairKey {
			rel.Type = models.RelationshipBlocked
			rel.InitiatorUserID = initiatorID
			rel.TargetUserID = targetID
			return s.hydrateRelationshipLocked(rel), nil
		}
	}

	rel := &models.Relationship{
		ID:              uuid.NewString(),
		InitiatorUserID: initiatorID,
		TargetUserID:    targetID,
		PairKey:         pairKey,
		Type:            models.RelationshipBlocked,
		CreatedAt:       time.Now().UTC(),
	}
	s.relationships[rel.ID] = rel
	return s.hydrateRelationshipLocked(rel), nil
}

func (s *MemStore) DeleteRelationship(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relationships[id]; !ok {
		return ErrNotFound
	}
	delete(s.relationships, id)
	return nil
}

func (s *MemStore) SettleRelationship(ctx context.Context, relID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[relID]
	if !ok {
		return nil, ErrNotFound
	}
	if rel.Type != models.RelationshipPending {
		return nil, ErrConflict
	}
	rel.Type = models.RelationshipSettled

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   false,
		CreatedAt: time.Now().UTC(),
	}
	for _, id := range []string{rel.InitiatorUserID, rel.TargetUserID} {
		if user, err := s.userByIDLocked(id); err == nil {
			conv.Members = append(conv.Members, *user)
		} else {
			conv.Members = append(conv.Members, models.User{ID: id})
		}
	}
	s.conversations[conv.ID] = conv

	copied := *conv
	return &copied, nil
}

func (s *MemStore) DeleteRelationshipWithConversation(ctx context.Context, relID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relationships[relID]; !ok {
		return ErrNotFound
	}
	delete(s.relationships, relID)
	if conversationID != "" {
		delete(s.conversations, conversationID)
		delete(s.messages, conversationID)
	}
	return nil
}

// endregion

// region --- Conversations ---

func (s *MemStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	conv.CreatedAt = stampTime(conv.CreatedAt)
	copied := *conv
	copied.Members = append([]models.User(nil), conv.Members...)
	s.conversations[conv.ID] = &copied
	return nil
}

func (s *MemStore) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *conv
	copied.Members = append([]models.User(nil), conv.Members...)
	for _, msg := range s.messages[id] {
		copied.Messages = append(copied.Messages, *msg)
	}
	return &copied, nil
}

func (s *MemStore) ConversationForPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversations {
		if conv.IsGroup || len(conv.Members) != 2 {
			continue
		}
		ids := map[string]bool{}
		for _, m := range conv.Members {
			ids[m.ID] = true
		}
		if ids[userA] && ids[userB] {
			copied := *conv
			copied.Members = append([]models.User(nil), conv.Members...)
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) PreviewPage(ctx context.Context, viewerID string, limit int, anchor *PreviewAnchor) ([]PreviewRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	effective := func(conv *models.Conversation) time.Time {
		if conv.LastMessageAt != nil {
			return *conv.LastMessageAt
		}
		return conv.CreatedAt
	}

	var rows []PreviewRow
	for _, conv := range s.conversations {
		member := false
		for _, m := range conv.Members {
			if m.ID == viewerID {
				member = true
				break
			}
		}
		if !member {
			continue
		}

		if anchor != nil {
			primary := anchor.PrimaryKey()
			eff := effective(conv)
			older := eff.Before(primary) ||
				(eff.Equal(primary) && conv.CreatedAt.Before(anchor.LastCreatedAt))
			if !older {
				continue
			}
		}

		row := PreviewRow{Conversation: *conv}
		row.Conversation.Members = append([]models.User(nil), conv.Members...)
		if msgs := s.messages[conv.ID]; len(msgs) > 0 {
			last := *msgs[len(msgs)-1]
			row.LastMessage = &last
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := &rows[i].Conversation, &rows[j].Conversation
		ea, eb := effective(a), effective(b)
		if !ea.Equal(eb) {
			return ea.After(eb)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// endregion

// region --- Messages ---

func (s *MemStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = stampTime(msg.CreatedAt)

	copied := *msg
	s.messages[conv.ID] = append(s.messages[conv.ID], &copied)
	at := msg.CreatedAt
	conv.LastMessageAt = &at
	return nil
}

func (s *MemStore) MarkMessageSeen(ctx context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.ID != messageID {
				continue
			}
			for _, u := range msg.SeenBy {
				if u.ID == userID {
					return nil
				}
			}
			seen := models.User{ID: userID}
			if user, err := s.userByIDLocked(userID); err == nil {
				seen = *user
			}
			msg.SeenBy = append(msg.SeenBy, seen)
			return nil
		}
	}
	return ErrNotFound
}

// endregion

// region --- Stats ---

func (s *MemStore) ResetRelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + string(relType)
	if stats, ok := s.stats[key]; ok {
		stats.UnseenCount = 0
		return nil
	}
	s.stats[key] = &models.RelationshipStats{
		UserID:           userID,
		RelationshipType: relType,
	}
	return nil
}

func (s *MemStore) RelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) (*models.RelationshipStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.stats[userID+"|"+string(relType)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *stats
	return &copied, nil
}

// endregion
