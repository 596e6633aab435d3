// internal/models/pile.go
package models

import "sort"

// Pile is an ordered run of cards with a stable identifier. Index 0 is the
// top of the pile. The ID is fixed at construction and survives flips.
type Pile struct {
	ID    int    `json:"id"`
	Cards []Card `json:"cards"`
}

// FaceDownPileID returns the pile id of a player's face-down pile.
func FaceDownPileID(playerID int) int { return 2 * playerID }

// FaceUpPileID returns the pile id of a player's face-up pile.
func FaceUpPileID(playerID int) int { return 2*playerID + 1 }

// CenterPileID returns the pile id of the k-th center pile in a game of n players.
func CenterPileID(numPlayers, k int) int { return 2*numPlayers + k }

func NewPile(id int, cards ...Card) *Pile {
	p := &Pile{ID: id, Cards: make([]Card, 0, len(cards))}
	p.Cards = append(p.Cards, cards...)
	return p
}

func (p *Pile) Len() int { return len(p.Cards) }

func (p *Pile) Empty() bool { return len(p.Cards) == 0 }

// Top returns the top card without removing it.
func (p *Pile) Top() (Card, bool) {
	if len(p.Cards) == 0 {
		return Card{}, false
	}
	return p.Cards[0], true
}

// Bottom returns the bottom card without removing it.
func (p *Pile) Bottom() (Card, bool) {
	if len(p.Cards) == 0 {
		return Card{}, false
	}
	return p.Cards[len(p.Cards)-1], true
}

func (p *Pile) TakeTop() (Card, bool) {
	c, ok := p.Top()
	if ok {
		p.Cards = p.Cards[1:]
	}
	return c, ok
}

func (p *Pile) TakeBottom() (Card, bool) {
	c, ok := p.Bottom()
	if ok {
		p.Cards = p.Cards[:len(p.Cards)-1]
	}
	return c, ok
}

func (p *Pile) AddTop(c Card) {
	p.Cards = append([]Card{c}, p.Cards...)
}

func (p *Pile) AddBottom(c Card) {
	p.Cards = append(p.Cards, c)
}

// Span returns the lowest and highest values on the pile.
func (p *Pile) Span() (lo, hi int, ok bool) {
	if len(p.Cards) == 0 {
		return 0, 0, false
	}
	lo, hi = p.Cards[0].Value, p.Cards[0].Value
	for _, c := range p.Cards[1:] {
		if c.Value < lo {
			lo = c.Value
		}
		if c.Value > hi {
			hi = c.Value
		}
	}
	return lo, hi, true
}

// SortDescending orders the pile highest value first.
func (p *Pile) SortDescending() {
	sort.SliceStable(p.Cards, func(i, j int) bool {
		return p.Cards[i].Value > p.Cards[j].Value
	})
}

// Clone returns a deep copy, used for snapshots handed to other goroutines.
func (p *Pile) Clone() *Pile {
	return NewPile(p.ID, p.Cards...)
}
