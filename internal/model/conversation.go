package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationType defines what a conversation is about
type ConversationType string

const (
	ConversationTypeDirect         ConversationType = "direct"
	ConversationTypeListingInquiry ConversationType = "listing_inquiry"
)

// noListingScope fills listing_scope for conversations without a listing,
// so the active-triple unique index also covers them (NULLs never collide)
const noListingScope = "-"

// Conversation is a two-party thread, optionally tied to a listing.
// Participants are stored canonically: the lower id is always Participant1.
type Conversation struct {
	ID                 uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Participant1ID     uuid.UUID        `json:"participant1_id" gorm:"column:participant1_id;type:uuid;not null;index;uniqueIndex:idx_conversations_active_triple,priority:1,where:is_active = true"`
	Participant2ID     uuid.UUID        `json:"participant2_id" gorm:"column:participant2_id;type:uuid;not null;index;uniqueIndex:idx_conversations_active_triple,priority:2"`
	Type               ConversationType `json:"type" gorm:"type:varchar(20);not null;default:'direct';uniqueIndex:idx_conversations_active_triple,priority:3"`
	ListingScope       string           `json:"-" gorm:"size:64;not null;uniqueIndex:idx_conversations_active_triple,priority:4"`
	ListingID          *uuid.UUID       `json:"listing_id,omitempty" gorm:"type:uuid;index"`
	Title              string           `json:"title,omitempty" gorm:"size:200"`
	IsActive           bool             `json:"is_active" gorm:"not null;default:true"`
	LastMessageAt      *time.Time       `json:"last_message_at,omitempty"`
	LastMessagePreview string           `json:"last_message_preview" gorm:"size:120"`
	MessageCount       int              `json:"message_count" gorm:"not null;default:0"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// BeforeCreate assigns an id and the listing scope used by the uniqueness constraint
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.ListingScope = ListingScopeOf(c.ListingID)
	return nil
}

// ListingScopeOf renders the listing part of the active-triple key
func ListingScopeOf(listingID *uuid.UUID) string {
	if listingID == nil || *listingID == uuid.Nil {
		return noListingScope
	}
	return listingID.String()
}

// CanonicalPair orders two participant ids so that (a, b) and (b, a) map to the same row
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

// IsParticipant checks whether userID is one of the two participants
func (c *Conversation) IsParticipant(userID uuid.UUID) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the participant that is not userID
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}
