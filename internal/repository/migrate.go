package repository

import (
	"github.com/quocanhngo/tradetalk/internal/model"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table owned or read by the messaging core.
// Production schemas come from the SQL migrations; this is the fallback used by
// tests and local SQLite runs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.UserDevice{},
		&model.Listing{},
		&model.Conversation{},
		&model.Message{},
		&model.MessageAttachment{},
		&model.ReadStatus{},
	)
}
