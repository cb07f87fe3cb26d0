package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageAttachment represents a file attached to a message
type MessageAttachment struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID uint64         `json:"message_id" gorm:"index;not null"`
	URL       string         `json:"url" gorm:"size:1000;not null"`
	FileName  string         `json:"file_name" gorm:"size:255"`
	FileSize  int64          `json:"file_size"`
	MimeType  string         `json:"mime_type" gorm:"size:100"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
