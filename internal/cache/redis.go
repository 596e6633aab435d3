// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list relayed instructions are appended to.
const DefaultQueueName = "mongoose_actions"

// ActionRecord is one relayed instruction, in the order the relay handled it.
type ActionRecord struct {
	GameID      uuid.UUID `json:"game_id"`
	ActionIndex int       `json:"action_index"`
	ClientID    int       `json:"client_id"`
	Seat        int       `json:"seat"`
	ActionType  string    `json:"action_type"`
	Payload     string    `json:"payload"`
	Timestamp   int64     `json:"timestamp"`
}

// ActionLog pushes action records onto a Redis list for offline replay.
type ActionLog struct {
	rdb   *redis.Client
	queue string
}

// ConnectActionLog dials Redis and checks the connection with a ping.
func ConnectActionLog(ctx context.Context, addr string, db int, queue string) (*ActionLog, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &ActionLog{rdb: rdb, queue: queue}, nil
}

// PublishAction serializes the record to JSON and RPushes it onto the queue.
func (l *ActionLog) PublishAction(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Replay returns every record logged for a game, oldest first.
func (l *ActionLog) Replay(ctx context.Context, gameID uuid.UUID) ([]ActionRecord, error) {
	raw, err := l.rdb.LRange(ctx, l.queue, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to LRange Redis list '%s': %w", l.queue, err)
	}
	var out []ActionRecord
	for _, item := range raw {
		var rec ActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		if rec.GameID == gameID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *ActionLog) Queue() string { return l.queue }

func (l *ActionLog) Close() error {
	return l.rdb.Close()
}
