// internal/models/card.go
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four French suits. The numeric value is also the
// digit used for the suit on the wire.
type Suit int

const (
	Spades Suit = iota
	Diamonds
	Clubs
	Hearts
)

// Suits lists every suit in deck order.
var Suits = []Suit{Spades, Diamonds, Clubs, Hearts}

const (
	MinValue = 1
	MaxValue = 13

	// StartValue is the only value an empty center pile accepts.
	StartValue = 7
)

var ErrBadCard = errors.New("models: malformed card")

func (s Suit) String() string {
	switch s {
	case Spades:
		return "Spades"
	case Diamonds:
		return "Diamonds"
	case Clubs:
		return "Clubs"
	case Hearts:
		return "Hearts"
	default:
		return "Unknown"
	}
}

// Symbol returns the unicode pip for the suit.
func (s Suit) Symbol() string {
	switch s {
	case Spades:
		return "♠"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Hearts:
		return "♥"
	default:
		return "?"
	}
}

// Red reports whether the suit is printed in red.
func (s Suit) Red() bool {
	return s == Diamonds || s == Hearts
}

// Card is an immutable playing card. Value runs from 1 (Ace) to 13 (King).
type Card struct {
	Suit  Suit `json:"suit"`
	Value int  `json:"value"`
}

// Rank returns the face label of the card, e.g. "A", "7" or "Q".
func (c Card) Rank() string {
	switch c.Value {
	case 1:
		return "A"
	case 11:
		return "J"
	case 12:
		return "Q"
	case 13:
		return "K"
	default:
		return strconv.Itoa(c.Value)
	}
}

func (c Card) String() string {
	return c.Rank() + c.Suit.Symbol()
}

// Encode renders the card in its wire form "<suit-digit>-<value>".
func (c Card) Encode() string {
	return fmt.Sprintf("%d-%d", int(c.Suit), c.Value)
}

// Valid reports whether both suit and value are in range.
func (c Card) Valid() bool {
	return c.Suit >= Spades && c.Suit <= Hearts && c.Value >= MinValue && c.Value <= MaxValue
}

// ParseCard decodes the wire form produced by Card.Encode.
func ParseCard(s string) (Card, error) {
	suitPart, valuePart, ok := strings.Cut(s, "-")
	if !ok {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCard, s)
	}
	suit, err := strconv.Atoi(suitPart)
	if err != nil {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCard, s)
	}
	value, err := strconv.Atoi(valuePart)
	if err != nil {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCard, s)
	}
	c := Card{Suit: Suit(suit), Value: value}
	if !c.Valid() {
		return Card{}, fmt.Errorf("%w: %q out of range", ErrBadCard, s)
	}
	return c, nil
}
