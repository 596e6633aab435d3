// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/sirupsen/logrus"
)

// Config collects every environment-driven setting for the relay and the
// terminal client. Flags on the command line override these.
type Config struct {
	ListenAddr     string
	APIAddr        string
	LogLevel       string
	RedisAddr      string
	RedisDB        int
	QueueName      string
	DatabaseURL    string
	ServerAddr     string
	PlayerName     string
	ConnectTimeout time.Duration
	Rules          game.HouseRules
}

// Load reads the environment:
//   - MONGOOSE_LISTEN_ADDR (default ":1234")
//   - MONGOOSE_API_ADDR (empty disables the HTTP API)
//   - LOG_LEVEL (default "info")
//   - REDIS_ADDR, REDIS_DB, HISTORIAN_QUEUE_NAME (action log; empty addr disables)
//   - DATABASE_URL (game records; empty disables)
//   - MONGOOSE_SERVER_ADDR, MONGOOSE_PLAYER_NAME (client)
//   - MONGOOSE_CONNECT_TIMEOUT_SEC (default 10)
//   - MONGOOSE_MAX_PLAYERS (default 6, 0 for no cap)
//   - MONGOOSE_RETRACT_ILLEGAL (default false)
func Load() Config {
	rules := game.DefaultHouseRules()
	rules.MaxPlayers = getEnvInt("MONGOOSE_MAX_PLAYERS", rules.MaxPlayers)
	rules.RetractIllegalPlacement = getEnvBool("MONGOOSE_RETRACT_ILLEGAL", false)

	return Config{
		ListenAddr:     getEnv("MONGOOSE_LISTEN_ADDR", ":1234"),
		APIAddr:        os.Getenv("MONGOOSE_API_ADDR"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		QueueName:      getEnv("HISTORIAN_QUEUE_NAME", "mongoose_actions"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerAddr:     getEnv("MONGOOSE_SERVER_ADDR", "127.0.0.1:1234"),
		PlayerName:     getEnv("MONGOOSE_PLAYER_NAME", "Player"),
		ConnectTimeout: time.Duration(getEnvInt("MONGOOSE_CONNECT_TIMEOUT_SEC", 10)) * time.Second,
		Rules:          rules,
	}
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
