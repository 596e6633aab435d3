// internal/database/store.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id           UUID PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ,
	player_count INT NOT NULL,
	deck         JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS game_seats (
	game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	seat    INT NOT NULL,
	name    TEXT NOT NULL,
	PRIMARY KEY (game_id, seat)
);

CREATE TABLE IF NOT EXISTS game_placements (
	game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	seat    INT NOT NULL,
	name    TEXT NOT NULL,
	rank    INT NOT NULL,
	PRIMARY KEY (game_id, seat)
);
`

// ErrGameNotFound is returned when no game row matches the id.
var ErrGameNotFound = errors.New("database: game not found")

// Store records game starts and results in Postgres. It satisfies
// relay.GameRecorder.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for url and pings it.
func Connect(ctx context.Context, url string) (*Store, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordStart stores the seating and the exact deck a game was dealt from.
func (s *Store) RecordStart(ctx context.Context, gameID uuid.UUID, seats []protocol.Seat, deck []models.Card) error {
	deckJSON, err := encodeDeck(deck)
	if err != nil {
		return err
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, player_count, deck)
			VALUES ($1, $2, $3)
		`
		if _, e := tx.Exec(ctx, q, gameID, len(seats), deckJSON); e != nil {
			return e
		}
		for _, seat := range seats {
			q := `INSERT INTO game_seats (game_id, seat, name) VALUES ($1, $2, $3)`
			if _, e := tx.Exec(ctx, q, gameID, seat.ID, seat.Name); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx record game start: %w", err)
	}
	return nil
}

// RecordPlacements upserts finishing positions and stamps the game finished
// once every seat has one.
func (s *Store) RecordPlacements(ctx context.Context, gameID uuid.UUID, placements []game.Placement) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, p := range placements {
			q := `
				INSERT INTO game_placements (game_id, seat, name, rank)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, seat)
				DO UPDATE SET name = $3, rank = $4
			`
			if _, e := tx.Exec(ctx, q, gameID, p.Seat, p.Name, p.Rank); e != nil {
				return e
			}
		}
		q := `
			UPDATE games SET finished_at = now()
			WHERE id = $1 AND finished_at IS NULL
			  AND player_count = (SELECT count(*) FROM game_placements WHERE game_id = $1)
		`
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
	if err != nil {
		return fmt.Errorf("tx record placements: %w", err)
	}
	return nil
}

// Placements returns the recorded positions for a game, best first.
func (s *Store) Placements(ctx context.Context, gameID uuid.UUID) ([]game.Placement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seat, name, rank FROM game_placements
		WHERE game_id = $1
		ORDER BY rank
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Placement, error) {
		var p game.Placement
		err := row.Scan(&p.Seat, &p.Name, &p.Rank)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan placements: %w", err)
	}
	return out, nil
}

// Deck returns the deck recorded for a game.
func (s *Store) Deck(ctx context.Context, gameID uuid.UUID) ([]models.Card, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT deck FROM games WHERE id = $1`, gameID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query deck: %w", err)
	}
	return decodeDeck(raw)
}

func (s *Store) Close() {
	s.pool.Close()
}

// encodeDeck stores cards in their wire form, top first.
func encodeDeck(deck []models.Card) ([]byte, error) {
	enc := make([]string, len(deck))
	for i, c := range deck {
		enc[i] = c.Encode()
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("encode deck: %w", err)
	}
	return b, nil
}

func decodeDeck(raw []byte) ([]models.Card, error) {
	var enc []string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	cards := make([]models.Card, len(enc))
	for i, s := range enc {
		c, err := models.ParseCard(s)
		if err != nil {
			return nil, fmt.Errorf("decode deck card %d: %w", i, err)
		}
		cards[i] = c
	}
	return cards, nil
}
