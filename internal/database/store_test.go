package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckColumnRoundTrip(t *testing.T) {
	deck := game.NewFullDeck()

	raw, err := encodeDeck(deck)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"0-1"`)

	got, err := decodeDeck(raw)
	require.NoError(t, err)
	assert.Equal(t, deck, got)
}

func TestDecodeDeckRejectsBadCard(t *testing.T) {
	_, err := decodeDeck([]byte(`["0-1","9-9"]`))
	assert.Error(t, err)

	_, err = decodeDeck([]byte(`not json`))
	assert.Error(t, err)
}

func TestConnectBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope")
	assert.Error(t, err)
}

// Needs a reachable Postgres; set DATABASE_URL to run it.
func TestStoreRecordsGame(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Connect(ctx, url)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	gameID := uuid.New()
	seats := []protocol.Seat{{Name: "alice", ID: 0}, {Name: "bob", ID: 1}}
	deck := []models.Card{{Suit: models.Hearts, Value: 12}, {Suit: models.Spades, Value: 1}}
	require.NoError(t, store.RecordStart(ctx, gameID, seats, deck))

	gotDeck, err := store.Deck(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, deck, gotDeck)

	require.NoError(t, store.RecordPlacements(ctx, gameID, []game.Placement{{Seat: 1, Name: "bob", Rank: 1}}))
	require.NoError(t, store.RecordPlacements(ctx, gameID, []game.Placement{
		{Seat: 1, Name: "bob", Rank: 1},
		{Seat: 0, Name: "alice", Rank: 2},
	}))

	got, err := store.Placements(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].Name)
	assert.Equal(t, 2, got[1].Rank)

	_, err = store.Deck(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)
}
