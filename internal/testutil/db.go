// Package testutil provides a throwaway SQLite database and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database that lives for the duration of the test.
// A single connection is used, so SQLite serializes writers the way row locks do on Postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "chat.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given name and role
func CreateUser(t testing.TB, db *gorm.DB, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:                  name,
		Email:                 fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Role:                  role,
		IsNotificationEnabled: true,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))
	return user
}

// CreateListing inserts an active listing owned by ownerID
func CreateListing(t testing.TB, db *gorm.DB, ownerID uuid.UUID, title string) *model.Listing {
	t.Helper()
	listing := &model.Listing{OwnerID: ownerID, Title: title, ThumbnailURL: "https://cdn.example.com/" + title + ".jpg"}
	require.NoError(t, repository.NewListingRepository(db).Create(context.Background(), listing))
	return listing
}
