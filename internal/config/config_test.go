// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"MONGOOSE_LISTEN_ADDR", "MONGOOSE_API_ADDR", "LOG_LEVEL", "REDIS_ADDR", "DATABASE_URL",
		"MONGOOSE_CONNECT_TIMEOUT_SEC", "MONGOOSE_MAX_PLAYERS", "MONGOOSE_RETRACT_ILLEGAL", "HISTORIAN_QUEUE_NAME"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":1234", cfg.ListenAddr)
	assert.Empty(t, cfg.APIAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mongoose_actions", cfg.QueueName)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 6, cfg.Rules.MaxPlayers)
	assert.False(t, cfg.Rules.RetractIllegalPlacement)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGOOSE_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("MONGOOSE_CONNECT_TIMEOUT_SEC", "3")
	t.Setenv("MONGOOSE_MAX_PLAYERS", "not-a-number")
	t.Setenv("MONGOOSE_RETRACT_ILLEGAL", "true")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 6, cfg.Rules.MaxPlayers, "bad ints fall back to the default")
	assert.True(t, cfg.Rules.RetractIllegalPlacement)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}
