// internal/game/state.go
package game

import "github.com/jason-s-yu/mongoose/internal/models"

// State is a copy of the engine's view, safe to hand to a renderer.
type State struct {
	Players     []*models.Player `json:"players"`
	Centers     []*models.Pile   `json:"centers"`
	Turn        int              `json:"turn"`
	CurrentID   int              `json:"currentId"`
	ActiveID    int              `json:"activeId"`
	Held        *models.Card     `json:"held,omitempty"`
	MoveStarted bool             `json:"moveStarted"`
	Legal       []int            `json:"legal,omitempty"`
	Placements  []int            `json:"placements"`
	GameOver    bool             `json:"gameOver"`
	Feed        []string         `json:"feed"`
}

// State snapshots the engine.
func (e *Engine) State() State {
	t := e.Table.Clone()
	s := State{
		Players:     t.Players,
		Centers:     t.Centers,
		Turn:        e.Turn,
		CurrentID:   e.Current().ID,
		ActiveID:    e.ActiveID,
		MoveStarted: e.MoveStarted,
		Legal:       e.LegalDestinations(),
		Placements:  append([]int(nil), e.Placements...),
		GameOver:    e.GameOver,
		Feed:        append([]string(nil), e.Feed...),
	}
	if e.Held != nil {
		c := *e.Held
		s.Held = &c
	}
	return s
}
