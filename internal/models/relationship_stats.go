package models

// RelationshipStats tracks the per-user unseen event counter for one
// relationship type. Rows are created lazily on the first reset.
type RelationshipStats struct {
	ID               uint             `gorm:"primaryKey"`
	UserID           string           `gorm:"type:uuid;not null;uniqueIndex:idx_stats_user_type"`
	RelationshipType RelationshipType `gorm:"type:varchar(20);not null;uniqueIndex:idx_stats_user_type"`
	UnseenCount      int              `gorm:"not null;default:0"`
}
