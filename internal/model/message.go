package model

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// MessageState is the lifecycle state of a message.
// Read is tracked separately and never reverts.
type MessageState string

const (
	MessageStateActive  MessageState = "active"
	MessageStateEdited  MessageState = "edited"
	MessageStateDeleted MessageState = "deleted"
)

const (
	// EditWindow is how long after creation a sender may still edit a message
	EditWindow = 24 * time.Hour

	// DeletedPlaceholder replaces the content of a deleted message
	DeletedPlaceholder = "This message has been deleted"

	previewLength  = 100
	imagePreview   = "📷 Image"
	filePreview    = "📎 File"
	previewEllipse = "..."
)

// Message is one entry of a conversation's ordered log.
// IDs are assigned by the database and only ever grow.
type Message struct {
	ID             uint64       `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationID uuid.UUID    `json:"conversation_id" gorm:"type:uuid;not null;index:idx_messages_conversation_id"`
	SenderID       uuid.UUID    `json:"sender_id" gorm:"type:uuid;not null;index"`
	RecipientID    uuid.UUID    `json:"recipient_id" gorm:"type:uuid;not null;index:idx_messages_recipient_unread,priority:1"`
	Content        string       `json:"content" gorm:"type:text"`
	Type           MessageType  `json:"type" gorm:"type:varchar(20);not null;default:'text'"`
	IsRead         bool         `json:"is_read" gorm:"not null;default:false;index:idx_messages_recipient_unread,priority:2"`
	ReadAt         *time.Time   `json:"read_at,omitempty"`
	IsEdited       bool         `json:"is_edited" gorm:"not null;default:false"`
	EditedAt       *time.Time   `json:"edited_at,omitempty"`
	IsDeleted      bool         `json:"is_deleted" gorm:"not null;default:false"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Relations
	Attachments []MessageAttachment `json:"attachments" gorm:"foreignKey:MessageID"`
}

// State derives the lifecycle state from the persisted flags
func (m *Message) State() MessageState {
	switch {
	case m.IsDeleted:
		return MessageStateDeleted
	case m.IsEdited:
		return MessageStateEdited
	default:
		return MessageStateActive
	}
}

// CheckEditable returns a Forbidden error unless editorID may edit the message at now
func (m *Message) CheckEditable(editorID uuid.UUID, now time.Time) error {
	if m.SenderID != editorID {
		return apperror.Forbidden("only the sender can edit this message")
	}
	switch m.State() {
	case MessageStateDeleted:
		return apperror.Forbidden("deleted messages cannot be edited")
	case MessageStateActive, MessageStateEdited:
	}
	if now.Sub(m.CreatedAt) >= EditWindow {
		return apperror.Forbidden("the edit window for this message has expired")
	}
	return nil
}

// ApplyEdit replaces the content. Read flags are left alone.
func (m *Message) ApplyEdit(content string, now time.Time) {
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
}

// CheckDeletable returns a Forbidden error unless requesterID may delete the message
func (m *Message) CheckDeletable(requesterID uuid.UUID) error {
	if m.SenderID != requesterID {
		return apperror.Forbidden("only the sender can delete this message")
	}
	if m.State() == MessageStateDeleted {
		return apperror.Forbidden("message is already deleted")
	}
	return nil
}

// ApplyDelete turns the message into a tombstone
func (m *Message) ApplyDelete(now time.Time) {
	m.Content = DeletedPlaceholder
	m.Attachments = []MessageAttachment{}
	m.IsDeleted = true
	m.DeletedAt = &now
}

// Preview renders the conversation-list preview for this message
func (m *Message) Preview() string {
	if m.State() == MessageStateDeleted {
		return DeletedPlaceholder
	}
	return PreviewText(m.Type, m.Content)
}

// PreviewText truncates text previews and renders fixed labels for media
func PreviewText(msgType MessageType, content string) string {
	switch msgType {
	case MessageTypeImage:
		return imagePreview
	case MessageTypeFile:
		return filePreview
	}
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + previewEllipse
}
