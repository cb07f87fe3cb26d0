package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository is the user directory as seen by the messaging core:
// profile lookups, push tokens and presence mirroring
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// UpdateOnlineStatus sets a user's online status; going offline stamps last_seen
func (r *UserRepository) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, isOnline bool, at time.Time) error {
	updates := map[string]interface{}{
		"is_online": isOnline,
	}
	if !isOnline {
		updates["last_seen"] = at
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}

// AddDevice adds or refreshes a push token
func (r *UserRepository) AddDevice(ctx context.Context, userID uuid.UUID, token string, deviceType string) error {
	now := time.Now()
	device := model.UserDevice{
		UserID:       userID,
		FCMToken:     token,
		DeviceType:   deviceType,
		LastActiveAt: now,
	}
	// Upsert: on conflict do update
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_active_at": now,
			"device_type":    deviceType,
		}),
	}).Create(&device).Error
}

// GetPushTokens returns every registered push token of a user
func (r *UserRepository) GetPushTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	tokens := []string{}
	err := r.db.WithContext(ctx).Model(&model.UserDevice{}).
		Where("user_id = ?", userID).
		Order("last_active_at DESC").
		Pluck("fcm_token", &tokens).Error
	return tokens, err
}

// RemoveDeviceTokens forgets tokens the push provider no longer accepts
func (r *UserRepository) RemoveDeviceTokens(ctx context.Context, userID uuid.UUID, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND fcm_token IN ?", userID, tokens).
		Delete(&model.UserDevice{}).Error
}
