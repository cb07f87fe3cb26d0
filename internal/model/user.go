package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole is the marketplace role of a user, also used as a broadcast room
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
)

// User is the messaging core's view of a marketplace account.
// Accounts are owned by the user directory; the core only reads them
// and mirrors presence.
type User struct {
	ID                    uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name                  string         `json:"name" gorm:"size:100;not null"`
	Email                 string         `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Avatar                string         `json:"avatar" gorm:"size:500;default:''"`
	Role                  UserRole       `json:"role" gorm:"type:varchar(20);not null;default:'buyer'"`
	IsNotificationEnabled bool           `json:"is_notification_enabled" gorm:"not null;default:true"`
	IsOnline              bool           `json:"is_online" gorm:"not null;default:false"`
	LastSeen              *time.Time     `json:"last_seen"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserProfile is the public part of a user embedded in conversation summaries
type UserProfile struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Avatar   string     `json:"avatar"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ToProfile converts User to its public profile
func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:       u.ID,
		Name:     u.Name,
		Avatar:   u.Avatar,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}
