package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a message from senderID into conv. The recipient is always
// derived from the conversation and never taken from the caller.
// Callers hold the conversation row lock so ids commit in order.
func (r *MessageRepository) Append(ctx context.Context, conv *model.Conversation, senderID uuid.UUID, content string, msgType model.MessageType, attachments []model.AttachmentInput) (*model.Message, error) {
	if !conv.IsParticipant(senderID) {
		return nil, apperror.NotParticipant("sender is not a participant of this conversation")
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    conv.OtherParticipant(senderID),
		Content:        content,
		Type:           msgType,
		Attachments:    make([]model.MessageAttachment, 0, len(attachments)),
	}
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, model.MessageAttachment{
			URL:      a.URL,
			FileName: a.FileName,
			FileSize: a.FileSize,
			MimeType: a.MimeType,
		})
	}

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// FindByID finds a message by ID with its attachments
func (r *MessageRepository) FindByID(ctx context.Context, id uint64) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, notFound(err, "message")
	}
	return &msg, nil
}

// lockByID loads a message with a row lock held until the surrounding transaction ends
func (r *MessageRepository) lockByID(ctx context.Context, id uint64) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Attachments").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, notFound(err, "message")
	}
	return &msg, nil
}

// Edit replaces the content of a message owned by editorID inside the edit window.
// The write only applies to a live message of that sender, so a delete that lands
// between the check and the update wins.
func (r *MessageRepository) Edit(ctx context.Context, messageID uint64, editorID uuid.UUID, content string, now time.Time) (*model.Message, error) {
	msg, err := r.lockByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := msg.CheckEditable(editorID, now); err != nil {
		return nil, err
	}

	msg.ApplyEdit(content, now)
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", msg.ID, editorID, false).
		Updates(map[string]interface{}{
			"content":    msg.Content,
			"is_edited":  true,
			"edited_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.Forbidden("deleted messages cannot be edited")
	}
	return msg, nil
}

// SoftDelete turns a message owned by requesterID into a tombstone.
// The row and its id stay so ordering and counts are preserved.
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID uint64, requesterID uuid.UUID, now time.Time) (*model.Message, error) {
	msg, err := r.lockByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := msg.CheckDeletable(requesterID); err != nil {
		return nil, err
	}

	msg.ApplyDelete(now)
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", msg.ID, requesterID, false).
		Updates(map[string]interface{}{
			"content":    msg.Content,
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.Forbidden("message is already deleted")
	}
	if err := db.Where("message_id = ?", msg.ID).Delete(&model.MessageAttachment{}).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead flags unread messages addressed to recipientID as read, either all of them
// or those with id <= upTo. Already-read messages are left untouched.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, recipientID uuid.UUID, upTo *uint64, now time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false)
	if upTo != nil {
		q = q.Where("id <= ?", *upTo)
	}
	res := q.Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	})
	return res.RowsAffected, res.Error
}

// CountInConversation counts how many of ids belong to the conversation
func (r *MessageRepository) CountInConversation(ctx context.Context, conversationID uuid.UUID, ids []uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND id IN ?", conversationID, ids).
		Count(&count).Error
	return count, err
}

// CountUnread counts unread messages addressed to recipientID in a conversation
func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false).
		Count(&count).Error
	return count, err
}

// LatestID returns the newest message id of a conversation, 0 when it has none
func (r *MessageRepository) LatestID(ctx context.Context, conversationID uuid.UUID) (uint64, error) {
	var latest *uint64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id = ?", conversationID).
		Scan(&latest).Error
	if err != nil || latest == nil {
		return 0, err
	}
	return *latest, nil
}

// Page returns one page of a conversation's messages, oldest first unless
// filter.NewestFirst is set, and the total number of matches
func (r *MessageRepository) Page(ctx context.Context, conversationID uuid.UUID, viewerID uuid.UUID, filter model.MessageFilter, page model.Pagination) ([]model.Message, int64, error) {
	build := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Message{}).
			Where("conversation_id = ?", conversationID)
		if s := strings.TrimSpace(filter.Search); s != "" {
			q = q.Where("is_deleted = ? AND LOWER(content) LIKE ?", false, "%"+strings.ToLower(s)+"%")
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.UnreadOnly {
			q = q.Where("recipient_id = ? AND is_read = ?", viewerID, false)
		}
		if filter.BeforeID != nil {
			q = q.Where("id < ?", *filter.BeforeID)
		}
		if filter.AfterID != nil {
			q = q.Where("id > ?", *filter.AfterID)
		}
		return q
	}

	var total int64
	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "id ASC"
	if filter.NewestFirst {
		order = "id DESC"
	}
	messages := []model.Message{}
	err := build().
		Preload("Attachments").
		Order(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
