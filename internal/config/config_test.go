package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Development(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_EXPIRY", "24h")
	t.Setenv("HUB_RELAY", "redis")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
	t.Setenv("FIREBASE_CREDENTIALS_FILE", "")

	cfg := Load()
	assert.False(t, cfg.App.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, RelayRedis, cfg.Hub.Relay)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.Origins)
	assert.Empty(t, cfg.Firebase.CredentialsFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_EXPIRY", "not-a-duration")
	t.Setenv("HUB_RELAY", "LOCAL")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_TIMEZONE", "UTC")

	cfg := Load()
	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, RelayLocal, cfg.Hub.Relay)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.Origins)
	assert.Contains(t, cfg.DB.DSN(), "host=db")
	assert.Contains(t, cfg.DB.URL(), ":pw@db:")
}

func TestLoad_UnknownRelayFallsBackToRedis(t *testing.T) {
	t.Setenv("HUB_RELAY", "carrier-pigeon")
	assert.Equal(t, RelayRedis, Load().Hub.Relay)
}
