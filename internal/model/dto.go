package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Conversation DTOs ==========

type CreateConversationRequest struct {
	ParticipantID  uuid.UUID        `json:"participant_id" binding:"required"`
	Type           ConversationType `json:"type" binding:"omitempty,oneof=direct listing_inquiry"`
	ListingID      *uuid.UUID       `json:"listing_id"`
	Title          string           `json:"title" binding:"max=200"`
	InitialMessage string           `json:"initial_message" binding:"max=5000"`
}

type ContactListingRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

type ConversationListQuery struct {
	Search            string           `form:"search" binding:"max=100"`
	Type              ConversationType `form:"type" binding:"omitempty,oneof=direct listing_inquiry"`
	ListingID         string           `form:"listing_id" binding:"omitempty,uuid"`
	HasUnreadMessages *bool            `form:"has_unread_messages"`
	SortBy            string           `form:"sort_by" binding:"omitempty,oneof=last_message_at created_at"`
	SortOrder         string           `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page              int              `form:"page,default=1" binding:"min=1"`
	Limit             int              `form:"limit,default=20" binding:"min=1,max=100"`
}

// ConversationSummary is a conversation as seen by one of its participants
type ConversationSummary struct {
	ID                 uuid.UUID         `json:"id"`
	Type               ConversationType  `json:"type"`
	Title              string            `json:"title,omitempty"`
	ListingID          *uuid.UUID        `json:"listing_id,omitempty"`
	IsActive           bool              `json:"is_active"`
	LastMessageAt      *time.Time        `json:"last_message_at,omitempty"`
	LastMessagePreview string            `json:"last_message_preview"`
	MessageCount       int               `json:"message_count"`
	UnreadCount        int               `json:"unread_count"`
	OtherParticipant   UserProfile       `json:"other_participant"`
	Listing            *ListingThumbnail `json:"listing,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type ConversationListResponse struct {
	Data       []ConversationSummary `json:"data"`
	Pagination PageMeta              `json:"pagination"`
}

type ContactListingResponse struct {
	Conversation ConversationSummary `json:"conversation"`
	Message      *Message            `json:"message"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	ConversationID uuid.UUID         `json:"conversation_id" binding:"required"`
	Content        string            `json:"content" binding:"max=5000"`
	Type           MessageType       `json:"type" binding:"omitempty,oneof=text image file"`
	Attachments    []AttachmentInput `json:"attachments,omitempty" binding:"omitempty,max=10,dive"`
}

// AttachmentInput is used when sending a message with attachments
type AttachmentInput struct {
	URL      string `json:"url" binding:"required,url,max=1000"`
	FileName string `json:"file_name" binding:"max=255"`
	FileSize int64  `json:"file_size" binding:"gte=0"`
	MimeType string `json:"mime_type" binding:"max=100"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// MarkReadRequest marks everything unread up to the highest of MessageIDs, or the
// whole conversation with MarkAllAsRead. Every id must belong to the conversation.
type MarkReadRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	MessageIDs     []uint64  `json:"message_ids" binding:"omitempty,max=500"`
	MarkAllAsRead  bool      `json:"mark_all_as_read"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type TypingRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	IsTyping       *bool     `json:"is_typing" binding:"required"`
}

type MessageListQuery struct {
	Search          string      `form:"search" binding:"max=100"`
	MessageType     MessageType `form:"message_type" binding:"omitempty,oneof=text image file"`
	UnreadOnly      bool        `form:"unread_only"`
	BeforeMessageID *uint64     `form:"before_message_id"`
	AfterMessageID  *uint64     `form:"after_message_id"`
	Order           string      `form:"order" binding:"omitempty,oneof=asc desc"`
	Page            int         `form:"page,default=1" binding:"min=1"`
	Limit           int         `form:"limit,default=50" binding:"min=1,max=100"`
}

type MessageListResponse struct {
	Data         []Message           `json:"data"`
	Pagination   PageMeta            `json:"pagination"`
	Conversation ConversationSummary `json:"conversation"`
}

type UnreadCountResponse struct {
	TotalUnread int64 `json:"total_unread"`
}

// UploadResponse describes a stored attachment; it can be sent back as an AttachmentInput
type UploadResponse struct {
	URL      string      `json:"url"`
	FileName string      `json:"file_name"`
	FileSize int64       `json:"file_size"`
	MimeType string      `json:"mime_type"`
	Type     MessageType `json:"type"`
}

// ========== Device / admin DTOs ==========

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required,max=512"`
	DeviceType string `json:"device_type" binding:"required,oneof=android ios web"`
}

type RoleNotificationRequest struct {
	Role  UserRole `json:"role" binding:"required,oneof=buyer seller admin"`
	Title string   `json:"title" binding:"required,max=100"`
	Body  string   `json:"body" binding:"required,max=500"`
}

// ========== Filters & pagination ==========

// Pagination is a 1-based page request
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Normalize clamps page and limit into sane bounds
func (p Pagination) Normalize(defaultLimit, maxLimit int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewPageMeta(p Pagination, total int64) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

type ConversationFilter struct {
	Search    string
	Type      ConversationType
	ListingID *uuid.UUID
	HasUnread *bool
	SortBy    string // last_message_at | created_at
	SortOrder string // asc | desc
}

type MessageFilter struct {
	Search      string
	Type        MessageType
	UnreadOnly  bool
	BeforeID    *uint64
	AfterID     *uint64
	NewestFirst bool
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
