package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing is the messaging core's read-only view of a marketplace listing
type Listing struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID      uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title        string    `json:"title" gorm:"size:200;not null"`
	ThumbnailURL string    `json:"thumbnail_url" gorm:"size:1000"`
	Status       string    `json:"status" gorm:"size:20;default:'active'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ListingThumbnail is embedded in conversation summaries
type ListingThumbnail struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}
