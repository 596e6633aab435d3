// internal/relay/snapshot.go
package relay

import (
	"time"

	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
)

// ClientInfo describes one connected client.
type ClientInfo struct {
	ID     int    `json:"id"`
	Seat   int    `json:"seat"`
	Name   string `json:"name"`
	Remote string `json:"remote"`
}

// PileInfo is the public face of a pile: its size and top card.
type PileInfo struct {
	ID   int          `json:"id"`
	Size int          `json:"size"`
	Top  *models.Card `json:"top,omitempty"`
}

// Snapshot is a copy of the relay state for readers outside the main loop.
type Snapshot struct {
	Phase      string           `json:"phase"`
	GameID     string           `json:"gameId,omitempty"`
	Clients    []ClientInfo     `json:"clients"`
	Piles      []PileInfo       `json:"piles,omitempty"`
	Placements []game.Placement `json:"placements,omitempty"`
	GameOver   bool             `json:"gameOver"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Snapshot returns the latest published state.
func (s *Server) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// publishSnapshot rebuilds the snapshot. Called from the main loop only.
func (s *Server) publishSnapshot() {
	snap := Snapshot{
		Phase:      s.phase.String(),
		Clients:    make([]ClientInfo, 0, len(s.order)),
		Placements: append([]game.Placement(nil), s.placements...),
		GameOver:   s.gameOver,
		UpdatedAt:  time.Now(),
	}
	for _, id := range s.order {
		c := s.clients[id]
		snap.Clients = append(snap.Clients, ClientInfo{
			ID:     c.id,
			Seat:   c.seat,
			Name:   c.name,
			Remote: c.conn.RemoteAddr().String(),
		})
	}
	if s.table != nil {
		snap.GameID = s.gameID.String()
		faceDownEnd := 2 * s.table.NumPlayers()
		for id := 0; id < s.table.NumPiles(); id++ {
			p, _ := s.table.Pile(id)
			info := PileInfo{ID: id, Size: p.Len()}
			hidden := id < faceDownEnd && id%2 == 0
			if top, ok := p.Top(); ok && !hidden {
				info.Top = &top
			}
			snap.Piles = append(snap.Piles, info)
		}
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}
