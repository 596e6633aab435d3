// internal/handlers/games.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/mongoose/internal/cache"
	"github.com/jason-s-yu/mongoose/internal/database"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
)

// GameHistory reads back what the relay recorded for a game.
type GameHistory interface {
	Deck(ctx context.Context, gameID uuid.UUID) ([]models.Card, error)
	Placements(ctx context.Context, gameID uuid.UUID) ([]game.Placement, error)
}

// ActionHistory reads back a game's relayed instructions.
type ActionHistory interface {
	Replay(ctx context.Context, gameID uuid.UUID) ([]cache.ActionRecord, error)
}

// WithHistory mounts GET /api/games/{id}.
func (s *APIServer) WithHistory(h GameHistory) *APIServer {
	s.history = h
	return s
}

// WithActions mounts GET /api/games/{id}/actions.
func (s *APIServer) WithActions(a ActionHistory) *APIServer {
	s.actions = a
	return s
}

type gameRecord struct {
	ID         uuid.UUID        `json:"id"`
	Deck       []string         `json:"deck"`
	Placements []game.Placement `json:"placements"`
}

func gameIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, apiError{Status: http.StatusBadRequest, Msg: "invalid game id"}
	}
	return id, nil
}

func (s *APIServer) handleGame(w http.ResponseWriter, r *http.Request) error {
	id, err := gameIDFromPath(r)
	if err != nil {
		return err
	}
	deck, err := s.history.Deck(r.Context(), id)
	if errors.Is(err, database.ErrGameNotFound) {
		return apiError{Status: http.StatusNotFound, Msg: "game not found"}
	}
	if err != nil {
		return err
	}
	placements, err := s.history.Placements(r.Context(), id)
	if err != nil {
		return err
	}

	rec := gameRecord{
		ID:         id,
		Deck:       make([]string, len(deck)),
		Placements: placements,
	}
	for i, c := range deck {
		rec.Deck[i] = c.Encode()
	}
	if rec.Placements == nil {
		rec.Placements = []game.Placement{}
	}
	return JSON(w, http.StatusOK, rec)
}

func (s *APIServer) handleGameActions(w http.ResponseWriter, r *http.Request) error {
	id, err := gameIDFromPath(r)
	if err != nil {
		return err
	}
	records, err := s.actions.Replay(r.Context(), id)
	if err != nil {
		return err
	}
	if records == nil {
		records = []cache.ActionRecord{}
	}
	return JSON(w, http.StatusOK, records)
}
