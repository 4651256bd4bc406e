package store

import (
	"context"
	"errors"

	"linkup/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm/postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an established gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps gorm errors onto the package sentinels. Requires the
// connection to be opened with TranslateError so unique violations surface
// as gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// region --- Users ---

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "LOWER(username) = LOWER(?)", username).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Where("id <> ?", userID).Order("username").Find(&users).Error
	return users, translate(err)
}

// endregion

// region --- Relationships ---

func (s *GormStore) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	return translate(s.db.WithContext(ctx).Create(rel).Error)
}

func (s *GormStore) RelationshipByID(ctx context.Context, id string) (*models.Relationship, error) {
	var rel models.Relationship
	err := s.db.WithContext(ctx).
		Preload("Initiator").Preload("Target").
		First(&rel, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rel, nil
}

func (s *GormStore) PendingRelationship(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error) {
	var rel models.Relationship
	err := s.db.WithContext(ctx).
		Where("initiator_user_id = ? AND target_user_id = ? AND type = ?",
			initiatorID, targetID, models.RelationshipPending).
		First(&rel).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rel, nil
}

func (s *GormStore) ListRelationships(ctx context.Context, viewerID string, relType models.RelationshipType, initiatorOnly bool, limit int) ([]models.Relationship, error) {
	query := s.db.WithContext(ctx).
		Preload("Initiator").Preload("Target").
		Where("type = ?", relType)

	if initiatorOnly {
		query = query.Where("initiator_user_id = ?", viewerID)
	} else {
		query = query.Where("initiator_user_id = ? OR target_user_id = ?", viewerID, viewerID)
	}

	var rels []models.Relationship
	err := query.Limit(limit).Find(&rels).Error
	return rels, translate(err)
}

func (s *GormStore) UpsertBlocked(ctx context.Context, initiatorID, targetID string) (*models.Relationship, error) {
	rel := &models.Relationship{
		InitiatorUserID: initiatorID,
		TargetUserID:    targetID,
		Type:            models.RelationshipBlocked,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pair_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"type":              models.RelationshipBlocked,
			"initiator_user_id": initiatorID,
			"target_user_id":    targetID,
		}),
	}).Create(rel).Error
	if err != nil {
		return nil, translate(err)
	}

	// Reload so the caller sees the canonical row, not the insert attempt.
	var current models.Relationship
	pairKey := models.PairKeyFor(initiatorID, targetID)
	if err := s.db.WithContext(ctx).First(&current, "pair_key = ?", pairKey).Error; err != nil {
		return nil, translate(err)
	}
	return &current, nil
}

func (s *GormStore) DeleteRelationship(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Relationship{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SettleRelationship(ctx context.Context, relID string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rel models.Relationship
		if err := tx.First(&rel, "id = ?", relID).Error; err != nil {
			return err
		}

		// The flip is conditional on the row still being pending; a
		// concurrent block or a second accept loses here and rolls back.
		result := tx.Model(&models.Relationship{}).
			Where("id = ? AND type = ?", rel.ID, models.RelationshipPending).
			Update("type", models.RelationshipSettled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		var members []models.User
		err := tx.Find(&members, "id IN ?", []string{rel.InitiatorUserID, rel.TargetUserID}).Error
		if err != nil {
			return err
		}

		created := &models.Conversation{IsGroup: false, Members: members}
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		conv = created
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return conv, nil
}

func (s *GormStore) DeleteRelationshipWithConversation(ctx context.Context, relID, conversationID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Relationship{}, "id = ?", relID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if conversationID == "" {
			return nil
		}
		return tx.Select(clause.Associations).
			Delete(&models.Conversation{ID: conversationID}).Error
	})
	return translate(err)
}

// endregion

// region --- Conversations ---

func (s *GormStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return translate(s.db.WithContext(ctx).Create(conv).Error)
}

func (s *GormStore) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Members").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at")
		}).
		Preload("Messages.SeenBy").
		First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *GormStore) ConversationForPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	// The paired conversation is the non-group one whose member set is
	// exactly {userA, userB}.
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("conversations.is_group = ?", false).
		Where("cm.user_id IN ?", []string{userA, userB}).
		Group("conversations.id").
		Having("COUNT(DISTINCT cm.user_id) = 2").
		Having("(SELECT COUNT(*) FROM conversation_members total WHERE total.conversation_id = conversations.id) = 2").
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *GormStore) PreviewPage(ctx context.Context, viewerID string, limit int, anchor *PreviewAnchor) ([]PreviewRow, error) {
	const effectiveTS = "COALESCE(conversations.last_message_at, conversations.created_at)"

	query := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("cm.user_id = ?", viewerID)

	if anchor != nil {
		primary := anchor.PrimaryKey()
		query = query.Where(
			"("+effectiveTS+" < ?) OR ("+effectiveTS+" = ? AND conversations.created_at < ?)",
			primary, primary, anchor.LastCreatedAt,
		)
	}

	var convs []models.Conversation
	err := query.
		Order(effectiveTS + " DESC, conversations.created_at DESC").
		Limit(limit).
		Preload("Members").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err)
	}

	rows := make([]PreviewRow, 0, len(convs))
	for _, conv := range convs {
		row := PreviewRow{Conversation: conv}

		var msg models.Message
		err := s.db.WithContext(ctx).
			Preload("SeenBy").
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			First(&msg).Error
		switch {
		case err == nil:
			row.LastMessage = &msg
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No messages yet; preview falls back to the creation timestamp.
		default:
			return nil, translate(err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// endregion

// region --- Messages ---

func (s *GormStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	return translate(err)
}

func (s *GormStore) MarkMessageSeen(ctx context.Context, messageID, userID string) error {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", messageID).Error; err != nil {
		return translate(err)
	}
	err := s.db.WithContext(ctx).Model(&msg).
		Association("SeenBy").
		Append(&models.User{ID: userID})
	return translate(err)
}

// endregion

// region --- Stats ---

func (s *GormStore) ResetRelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) error {
	stats := &models.RelationshipStats{
		UserID:           userID,
		RelationshipType: relType,
		UnseenCount:      0,
	}
	// Upsert keyed on (user_id, relationship_type); concurrent resets for the
	// same key converge on the same row.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "relationship_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"unseen_count": 0}),
	}).Create(stats).Error
	return translate(err)
}

func (s *GormStore) RelationshipStats(ctx context.Context, userID string, relType models.RelationshipType) (*models.RelationshipStats, error) {
	var stats models.RelationshipStats
	err := s.db.WithContext(ctx).
		First(&stats, "user_id = ? AND relationship_type = ?", userID, relType).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

// endregion
