package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("PORT", "")
	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.BoardSize)
	assert.Equal(t, 3, cfg.TxRetries)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, time.Hour, cfg.ReminderInterval)
	assert.Equal(t, 30*time.Second, cfg.LeaderboardTTL)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.RequireAuth)
	assert.Empty(t, cfg.DBUrl)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BOARD_SIZE", "8")
	t.Setenv("REQUIRE_AUTH", "true")
	t.Setenv("NOTIFY_TIMEOUT", "2s")
	t.Setenv("ARCHIVE_BUCKET", "matches")
	cfg := LoadConfig()

	assert.Equal(t, 8, cfg.BoardSize)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, 2*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, "matches", cfg.ArchiveBucket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"auth off without secret", Config{}, false},
		{"auth on with secret", Config{RequireAuth: true, JWTSecret: "s3cret"}, false},
		{"auth on without secret", Config{RequireAuth: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
