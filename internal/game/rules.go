// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/mongoose/internal/models"
)

// NumCenterPiles is the number of shared piles in the middle of the table.
const NumCenterPiles = 4

// HouseRules are table options that change how moves are applied.
type HouseRules struct {
	// RetractIllegalPlacement moves an auto-mongoosed card back onto the
	// mover's own face-up pile instead of leaving it on the center pile.
	RetractIllegalPlacement bool `json:"retractIllegalPlacement"`

	// MaxPlayers caps how many clients a relay accepts in its lobby (0 = no cap).
	MaxPlayers int `json:"maxPlayers"`
}

func DefaultHouseRules() HouseRules {
	return HouseRules{MaxPlayers: 6}
}

// Update applies the keys present in newRules and leaves the rest alone.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	if val, ok := newRules["retractIllegalPlacement"]; ok && val != nil {
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("invalid type for retractIllegalPlacement")
		}
		rules.RetractIllegalPlacement = b
	}
	if val, ok := newRules["maxPlayers"]; ok && val != nil {
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for maxPlayers")
		}
		if n < 0 {
			return fmt.Errorf("maxPlayers must be >= 0")
		}
		rules.MaxPlayers = n
	}
	return nil
}

// CanPlaceOnCenter is the legality rule for center piles. An empty pile
// only takes a 7; otherwise the card must extend the run by one at either
// end. Suits are not considered here.
func CanPlaceOnCenter(card models.Card, pile *models.Pile) bool {
	lo, hi, ok := pile.Span()
	if !ok {
		return card.Value == models.StartValue
	}
	return card.Value == hi+1 || card.Value == lo-1
}

// SuitMismatch reports whether pile holds any card of a different suit.
// Placing such a card on a center pile gets the mover auto-mongoosed.
func SuitMismatch(card models.Card, pile *models.Pile) bool {
	for _, c := range pile.Cards {
		if c.Suit != card.Suit {
			return true
		}
	}
	return false
}

// fitsCenter is the suit-aware version of the center rule used when
// judging whether a player missed a play.
func fitsCenter(card models.Card, pile *models.Pile) bool {
	top, ok := pile.Top()
	if !ok || top.Suit != card.Suit {
		return false
	}
	lo, hi, _ := pile.Span()
	return card.Value == hi+1 || card.Value == lo-1
}
