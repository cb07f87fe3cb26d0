package auth

import (
	"context"
	"strings"
	"time"

	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// Blacklist records revoked tokens until they expire
type Blacklist interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// RedisBlacklist stores revoked tokens as expiring Redis keys
type RedisBlacklist struct {
	rdb *redis.Client
}

func NewRedisBlacklist(rdb *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb}
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	exists, err := b.rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistPrefix+token, "revoked", ttl).Err()
}

// Authenticator validates bearer credentials for both REST and WebSocket handshakes
type Authenticator struct {
	jwt       *JWTManager
	blacklist Blacklist
}

// NewAuthenticator builds an Authenticator; a nil blacklist disables revocation checks
func NewAuthenticator(jwtManager *JWTManager, blacklist Blacklist) *Authenticator {
	return &Authenticator{jwt: jwtManager, blacklist: blacklist}
}

// Authenticate returns the token's claims, or an UNAUTHENTICATED error when the
// token is missing, malformed, expired or revoked
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.Unauthenticated("missing bearer token")
	}

	if a.blacklist != nil {
		revoked, err := a.blacklist.IsRevoked(ctx, token)
		if err != nil {
			return nil, apperror.Internal("auth server error", err)
		}
		if revoked {
			return nil, apperror.Unauthenticated("token has been revoked")
		}
	}

	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeUnauthenticated, "invalid or expired token", err)
	}
	return claims, nil
}

// Revoke blacklists a valid token for the rest of its lifetime
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		return apperror.Wrap(apperror.CodeUnauthenticated, "invalid or expired token", err)
	}
	if a.blacklist == nil || claims.ExpiresAt == nil {
		return nil
	}
	return a.blacklist.Revoke(ctx, token, time.Until(claims.ExpiresAt.Time))
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
