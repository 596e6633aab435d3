// internal/game/deck.go
package game

import (
	"math/rand"
	"time"

	"github.com/jason-s-yu/mongoose/internal/models"
)

// DeckSize is the number of cards in a full French deck.
const DeckSize = 52

// NewFullDeck returns the 52 cards in suit order (Spades, Diamonds, Clubs,
// Hearts), each suit running Ace to King.
func NewFullDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, s := range models.Suits {
		for v := models.MinValue; v <= models.MaxValue; v++ {
			deck = append(deck, models.Card{Suit: s, Value: v})
		}
	}
	return deck
}

// ShuffleDeck returns a uniformly shuffled copy of cards. A nil rng uses a
// time-seeded source.
func ShuffleDeck(cards []models.Card, rng *rand.Rand) []models.Card {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	out := make([]models.Card, len(cards))
	copy(out, cards)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Deal splits cards round-robin into n hands: card i goes to hand i%n and
// is added to the bottom, so each hand keeps deck order.
func Deal(cards []models.Card, n int) [][]models.Card {
	if n <= 0 {
		return nil
	}
	hands := make([][]models.Card, n)
	for i, c := range cards {
		hands[i%n] = append(hands[i%n], c)
	}
	return hands
}
