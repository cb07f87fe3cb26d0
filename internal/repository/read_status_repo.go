package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadStatusRepository keeps the per-user unread counters
type ReadStatusRepository struct {
	db *gorm.DB
}

func NewReadStatusRepository(db *gorm.DB) *ReadStatusRepository {
	return &ReadStatusRepository{db: db}
}

// Increment adds one unread message for userID. The update is a single atomic
// statement, so concurrent sends never lose a count.
func (r *ReadStatusRepository) Increment(ctx context.Context, userID, conversationID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.ReadStatus{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Rows are created with the conversation; this only covers legacy data
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"unread_count": gorm.Expr("message_read_status.unread_count + 1")}),
	}).Create(&model.ReadStatus{UserID: userID, ConversationID: conversationID, UnreadCount: 1}).Error
}

// Lock loads the row with a lock held until the surrounding transaction ends,
// creating it first if needed. Mark-read takes this lock before touching
// messages so it serializes with increments on the same row.
func (r *ReadStatusRepository) Lock(ctx context.Context, userID, conversationID uuid.UUID) (*model.ReadStatus, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ReadStatus{UserID: userID, ConversationID: conversationID}).Error; err != nil {
		return nil, err
	}

	var status model.ReadStatus
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Reset clears the counter and stamps the read watermark
func (r *ReadStatusRepository) Reset(ctx context.Context, userID, conversationID uuid.UUID, lastMessageID *uint64, now time.Time) error {
	return r.Sync(ctx, userID, conversationID, 0, lastMessageID, now)
}

// Sync sets the counter to the number of messages still unread after a partial mark-read
func (r *ReadStatusRepository) Sync(ctx context.Context, userID, conversationID uuid.UUID, remaining int64, lastMessageID *uint64, now time.Time) error {
	updates := map[string]interface{}{
		"unread_count": remaining,
		"last_read_at": now,
		"updated_at":   now,
	}
	if lastMessageID != nil {
		updates["last_read_message_id"] = *lastMessageID
	}
	return r.db.WithContext(ctx).Model(&model.ReadStatus{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Updates(updates).Error
}

// Get returns the row, or a zero-valued one if it does not exist yet
func (r *ReadStatusRepository) Get(ctx context.Context, userID, conversationID uuid.UUID) (*model.ReadStatus, error) {
	var status model.ReadStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.ReadStatus{UserID: userID, ConversationID: conversationID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// TotalUnread sums the user's counters over active conversations
func (r *ReadStatusRepository) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.ReadStatus{}).
		Select("COALESCE(SUM(message_read_status.unread_count), 0)").
		Joins("JOIN conversations ON conversations.id = message_read_status.conversation_id").
		Where("message_read_status.user_id = ? AND conversations.is_active = ?", userID, true).
		Scan(&total).Error
	return total, err
}
