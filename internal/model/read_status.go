package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReadStatus is a user's unread counter and read watermark for one conversation
type ReadStatus struct {
	ID                uuid.UUID  `json:"-" gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_read_status_user_conversation,priority:1"`
	ConversationID    uuid.UUID  `json:"conversation_id" gorm:"type:uuid;not null;uniqueIndex:idx_read_status_user_conversation,priority:2;index"`
	UnreadCount       int        `json:"unread_count" gorm:"not null;default:0;check:chk_read_status_unread_non_negative,unread_count >= 0"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	LastReadMessageID *uint64    `json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time  `json:"-"`
	UpdatedAt         time.Time  `json:"-"`
}

func (ReadStatus) TableName() string {
	return "message_read_status"
}

func (r *ReadStatus) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
