package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ========== WebSocket Event DTOs ==========

// WSEvent is an outbound frame
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// InboundWSEvent is a frame received from a client; the payload is decoded
// once the type is known
type InboundWSEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Server -> client event types
const (
	WSEventMessageNew          = "message:new"
	WSEventMessageEdited       = "message:edited"
	WSEventMessageDeleted      = "message:deleted"
	WSEventTypingIndicator     = "typing:indicator"
	WSEventConversationUpdated = "conversation:updated"
	WSEventConversationJoined  = "conversation:joined"
	WSEventMessagesRead        = "messages:read"
	WSEventUnreadUpdated       = "unread:updated"
	WSEventNotification        = "notification"
	WSEventUserOnline          = "user:online"
	WSEventUserOffline         = "user:offline"
	WSEventUserStatus          = "user:status"
	WSEventError               = "error"
)

// Client -> server event types
const (
	WSEventJoinConversation  = "conversation:join"
	WSEventLeaveConversation = "conversation:leave"
	WSEventTypingStart       = "typing:start"
	WSEventTypingStop        = "typing:stop"
	WSEventSendMessage       = "message:send"
	WSEventMarkRead          = "messages:mark_read"
	WSEventStatusUpdate      = "status:update"
)

type MessageEditedEvent struct {
	MessageID      uint64     `json:"message_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	IsEdited       bool       `json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at"`
}

type MessageDeletedEvent struct {
	MessageID      uint64     `json:"message_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

type ConversationUpdatedEvent struct {
	ConversationID     uuid.UUID  `json:"conversation_id"`
	LastMessagePreview string     `json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int        `json:"unread_count"`
	IsActive           bool       `json:"is_active"`
}

type ConversationJoinedEvent struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	OnlineUsers    []uuid.UUID `json:"online_users"`
}

type MessagesReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	MessageIDs     []uint64  `json:"message_ids,omitempty"`
	UpToMessageID  *uint64   `json:"up_to_message_id,omitempty"`
	ReadAt         time.Time `json:"read_at"`
}

type UnreadUpdatedEvent struct {
	TotalUnread int64 `json:"total_unread"`
}

// NotificationEvent is the in-app counterpart of a push notification
type NotificationEvent struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type PresenceEvent struct {
	UserID   uuid.UUID  `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	Status   string     `json:"status,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ErrorEvent is only ever sent to the connection that caused it
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// ========== Inbound payloads ==========

type ConversationRoomPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
}

type StatusUpdatePayload struct {
	Status string `json:"status" binding:"required,oneof=online away busy"`
}
