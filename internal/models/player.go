// internal/models/player.go
package models

// Player is one seat at the table. Each player owns a face-down pile that
// they draw from and a face-up pile that ends their turn when played onto.
type Player struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FaceDown *Pile  `json:"faceDown"`
	FaceUp   *Pile  `json:"faceUp"`

	// Local marks the player controlled by this process.
	Local bool `json:"local"`

	// Flipped holds a card a remote player picked up and has not placed yet.
	Flipped *Card `json:"flipped,omitempty"`
}

// NewPlayer seats a player with the cards dealt to them face down.
func NewPlayer(id int, name string, dealt []Card, local bool) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		FaceDown: NewPile(FaceDownPileID(id), dealt...),
		FaceUp:   NewPile(FaceUpPileID(id)),
		Local:    local,
	}
}

// Owns reports whether the pile belongs to this player.
func (p *Player) Owns(pile *Pile) bool {
	return pile == p.FaceDown || pile == p.FaceUp
}

// HasFinished is true once both piles are empty.
func (p *Player) HasFinished() bool {
	return p.FaceDown.Empty() && p.FaceUp.Empty()
}

// FlipDeck turns the face-up pile over to become the new face-down pile.
// Pile ids are kept.
func (p *Player) FlipDeck() {
	n := len(p.FaceUp.Cards)
	flipped := make([]Card, n)
	for i, c := range p.FaceUp.Cards {
		flipped[n-1-i] = c
	}
	p.FaceDown.Cards = flipped
	p.FaceUp.Cards = p.FaceUp.Cards[:0]
}

// FlipFrom moves the top card of one of the player's piles into the
// flipped slot. It is how a remote pickup is mirrored locally.
func (p *Player) FlipFrom(pile *Pile) (Card, bool) {
	c, ok := pile.TakeTop()
	if !ok {
		return Card{}, false
	}
	p.Flipped = &c
	return c, true
}

// PlaceFlipped puts the flipped card on top of dst and clears the slot.
func (p *Player) PlaceFlipped(dst *Pile) (Card, bool) {
	if p.Flipped == nil {
		return Card{}, false
	}
	c := *p.Flipped
	p.Flipped = nil
	dst.AddTop(c)
	return c, true
}

// Clone deep-copies the player for snapshots.
func (p *Player) Clone() *Player {
	cp := *p
	cp.FaceDown = p.FaceDown.Clone()
	cp.FaceUp = p.FaceUp.Clone()
	if p.Flipped != nil {
		c := *p.Flipped
		cp.Flipped = &c
	}
	return &cp
}
