// internal/game/table.go
package game

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/mongoose/internal/models"
)

var (
	ErrUnknownPile   = errors.New("game: unknown pile id")
	ErrUnknownPlayer = errors.New("game: unknown player id")
	ErrEmptyPile     = errors.New("game: pile is empty")
)

// Table holds every pile in play. Player i owns piles 2i (face down) and
// 2i+1 (face up); the center piles follow at 2n..2n+3.
type Table struct {
	Players []*models.Player
	Centers []*models.Pile
}

// NewTable seats one player per hand. local is the id of the player this
// process controls, or -1 when no seat is local (the relay's copy).
func NewTable(hands [][]models.Card, names []string, local int) *Table {
	n := len(hands)
	t := &Table{
		Players: make([]*models.Player, n),
		Centers: make([]*models.Pile, NumCenterPiles),
	}
	for i, hand := range hands {
		name := fmt.Sprintf("Player %d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		t.Players[i] = models.NewPlayer(i, name, hand, i == local)
	}
	for k := range t.Centers {
		t.Centers[k] = models.NewPile(models.CenterPileID(n, k))
	}
	return t
}

func (t *Table) NumPlayers() int { return len(t.Players) }

// NumPiles is the count of valid pile ids.
func (t *Table) NumPiles() int { return 2*len(t.Players) + len(t.Centers) }

// Pile resolves a pile id.
func (t *Table) Pile(id int) (*models.Pile, error) {
	n := len(t.Players)
	switch {
	case id < 0:
	case id < 2*n:
		p := t.Players[id/2]
		if id%2 == 0 {
			return p.FaceDown, nil
		}
		return p.FaceUp, nil
	case id < 2*n+len(t.Centers):
		return t.Centers[id-2*n], nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownPile, id)
}

// Player returns the seat with the given id.
func (t *Table) Player(id int) (*models.Player, error) {
	if id < 0 || id >= len(t.Players) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	return t.Players[id], nil
}

// Owner returns the player a pile belongs to, or nil for a center pile.
func (t *Table) Owner(pile *models.Pile) *models.Player {
	if pile.ID < 0 || pile.ID >= 2*len(t.Players) {
		return nil
	}
	return t.Players[pile.ID/2]
}

func (t *Table) IsCenter(pile *models.Pile) bool {
	for _, c := range t.Centers {
		if c == pile {
			return true
		}
	}
	return false
}

// Move takes the top card of src and puts it on top of dst. Only pile
// existence is checked.
func (t *Table) Move(src, dst int) (models.Card, error) {
	from, err := t.Pile(src)
	if err != nil {
		return models.Card{}, err
	}
	to, err := t.Pile(dst)
	if err != nil {
		return models.Card{}, err
	}
	c, ok := from.TakeTop()
	if !ok {
		return models.Card{}, fmt.Errorf("%w: %d", ErrEmptyPile, src)
	}
	to.AddTop(c)
	return c, nil
}

// SortCenters orders every center pile highest value first.
func (t *Table) SortCenters() {
	for _, c := range t.Centers {
		c.SortDescending()
	}
}

// Flip turns a player's face-up pile into their face-down pile.
func (t *Table) Flip(playerID int) error {
	p, err := t.Player(playerID)
	if err != nil {
		return err
	}
	p.FlipDeck()
	return nil
}

// PassPenalty makes every other player hand the bottom card of their
// face-down pile to the target, added to the bottom of the target's
// face-down pile. Players with nothing face down give nothing. It returns
// the number of cards moved.
func (t *Table) PassPenalty(target int) (int, error) {
	dst, err := t.Player(target)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, p := range t.Players {
		if p == dst {
			continue
		}
		if c, ok := p.FaceDown.TakeBottom(); ok {
			dst.FaceDown.AddBottom(c)
			moved++
		}
	}
	return moved, nil
}

// CardCount is the number of cards in all piles plus any flipped cards.
func (t *Table) CardCount() int {
	total := 0
	for _, p := range t.Players {
		total += p.FaceDown.Len() + p.FaceUp.Len()
		if p.Flipped != nil {
			total++
		}
	}
	for _, c := range t.Centers {
		total += c.Len()
	}
	return total
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	cp := &Table{
		Players: make([]*models.Player, len(t.Players)),
		Centers: make([]*models.Pile, len(t.Centers)),
	}
	for i, p := range t.Players {
		cp.Players[i] = p.Clone()
	}
	for i, c := range t.Centers {
		cp.Centers[i] = c.Clone()
	}
	return cp
}
