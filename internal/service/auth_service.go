package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

// TokenRevoker blacklists a bearer token for the rest of its lifetime
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}

// AuthService covers the account operations the messaging core owns:
// session teardown, push device registration and the caller's own profile.
// Sign-up and login live in the marketplace's identity service.
type AuthService struct {
	userRepo *repository.UserRepository
	revoker  TokenRevoker
}

func NewAuthService(userRepo *repository.UserRepository, revoker TokenRevoker) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		revoker:  revoker,
	}
}

// GetProfile returns the current user's profile
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// RegisterDevice registers a device token for push notifications
func (s *AuthService) RegisterDevice(ctx context.Context, userID uuid.UUID, req model.RegisterDeviceRequest) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.AddDevice(ctx, userID, req.FCMToken, req.DeviceType); err != nil {
		return apperror.Internal("failed to register device", err)
	}
	return nil
}

// Logout revokes the token and marks the user offline
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, token string) error {
	if err := s.revoker.Revoke(ctx, token); err != nil {
		return err
	}
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, false, time.Now()); err != nil {
		return apperror.Internal("failed to update presence", err)
	}
	return nil
}
