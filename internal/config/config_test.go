package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_ADDR", "ROOM_TTL", "ROOM_CAPACITY", "DEBUG_ROUTES", "MUTATION_RETRIES"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 600*time.Second, cfg.RoomTTL)
	assert.Equal(t, 60*time.Second, cfg.PresenceWindow)
	assert.Equal(t, 0, cfg.RoomCapacity)
	assert.Equal(t, 5, cfg.MutationRetries)
	assert.False(t, cfg.DebugRoutes)
	assert.Equal(t, "chat.audit", cfg.AMQPExchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ROOM_TTL", "90s")
	t.Setenv("ROOM_CAPACITY", "2")
	t.Setenv("DEBUG_ROUTES", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.RoomTTL)
	assert.Equal(t, 2, cfg.RoomCapacity)
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"ROOM_TTL":         "ten minutes",
		"ROOM_CAPACITY":    "-1",
		"MUTATION_RETRIES": "0",
		"DEBUG_ROUTES":     "maybe",
		"REDIS_DB":         "x",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
