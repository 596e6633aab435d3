// internal/cache/redis_test.go
package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a reachable Redis; set REDIS_ADDR to run it.
func TestActionLogPublishAndReplay(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := "mongoose_test_" + uuid.NewString()
	log, err := ConnectActionLog(ctx, addr, 0, queue)
	require.NoError(t, err)
	defer log.Close()
	defer log.rdb.Del(context.Background(), queue)

	gameID := uuid.New()
	require.NoError(t, log.PublishAction(ctx, ActionRecord{GameID: gameID, ActionIndex: 1, ActionType: "pickup", Payload: "pickup:'0'"}))
	require.NoError(t, log.PublishAction(ctx, ActionRecord{GameID: uuid.New(), ActionIndex: 1, ActionType: "quit"}))
	require.NoError(t, log.PublishAction(ctx, ActionRecord{GameID: gameID, ActionIndex: 2, ActionType: "place", Payload: "place:'0':'4'"}))

	got, err := log.Replay(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pickup", got[0].ActionType)
	assert.Equal(t, "place:'0':'4'", got[1].Payload)
}

func TestConnectActionLogUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ConnectActionLog(ctx, "127.0.0.1:1", 0, "")
	assert.Error(t, err)
}
