// internal/game/table_test.go
package game

import (
	"testing"

	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePileIDs(t *testing.T) {
	table := NewTable(Deal(NewFullDeck(), 3), []string{"ann", "bob", ""}, 1)

	require.Equal(t, 3, table.NumPlayers())
	assert.Equal(t, 10, table.NumPiles())
	assert.Equal(t, "Player 2", table.Players[2].Name)
	assert.True(t, table.Players[1].Local)

	for i, p := range table.Players {
		down, err := table.Pile(2 * i)
		require.NoError(t, err)
		assert.Same(t, p.FaceDown, down)

		up, err := table.Pile(2*i + 1)
		require.NoError(t, err)
		assert.Same(t, p.FaceUp, up)
		assert.Same(t, p, table.Owner(up))
	}
	for k := 0; k < NumCenterPiles; k++ {
		c, err := table.Pile(6 + k)
		require.NoError(t, err)
		assert.Same(t, table.Centers[k], c)
		assert.True(t, table.IsCenter(c))
		assert.Nil(t, table.Owner(c))
	}

	_, err := table.Pile(10)
	assert.ErrorIs(t, err, ErrUnknownPile)
	_, err = table.Pile(-1)
	assert.ErrorIs(t, err, ErrUnknownPile)
}

func TestTableMove(t *testing.T) {
	table := NewTable(Deal(NewFullDeck(), 2), nil, -1)
	top := table.Players[0].FaceDown.Cards[0]

	c, err := table.Move(0, 4)
	require.NoError(t, err)
	assert.Equal(t, top, c)
	got, _ := table.Centers[0].Top()
	assert.Equal(t, top, got)
	assert.Equal(t, 25, table.Players[0].FaceDown.Len())

	_, err = table.Move(1, 4)
	assert.ErrorIs(t, err, ErrEmptyPile)
	_, err = table.Move(0, 99)
	assert.ErrorIs(t, err, ErrUnknownPile)
	assert.Equal(t, DeckSize, table.CardCount())
}

func TestTablePassPenalty(t *testing.T) {
	table := NewTable([][]models.Card{
		{card(models.Spades, 1), card(models.Spades, 2)},
		{card(models.Hearts, 3), card(models.Hearts, 4)},
		{},
	}, nil, -1)

	moved, err := table.PassPenalty(0)
	require.NoError(t, err)
	assert.Equal(t, 1, moved, "empty face-down piles give nothing")
	assert.Equal(t, []models.Card{card(models.Spades, 1), card(models.Spades, 2), card(models.Hearts, 4)}, table.Players[0].FaceDown.Cards)
	assert.Equal(t, []models.Card{card(models.Hearts, 3)}, table.Players[1].FaceDown.Cards)

	_, err = table.PassPenalty(5)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestTableFlipKeepsIDs(t *testing.T) {
	table := NewTable([][]models.Card{{}, {}}, nil, -1)
	p := table.Players[1]
	p.FaceUp.AddTop(card(models.Clubs, 1))
	p.FaceUp.AddTop(card(models.Clubs, 2))
	p.FaceUp.AddTop(card(models.Clubs, 3))

	require.NoError(t, table.Flip(1))
	assert.Equal(t, 2, p.FaceDown.ID)
	assert.Equal(t, 3, p.FaceUp.ID)
	assert.True(t, p.FaceUp.Empty())
	top, _ := p.FaceDown.Top()
	assert.Equal(t, card(models.Clubs, 1), top, "the first card played comes back first")
}

func TestTableSortCenters(t *testing.T) {
	table := NewTable([][]models.Card{{}, {}}, nil, -1)
	table.Centers[0].Cards = []models.Card{card(models.Hearts, 6), card(models.Hearts, 8), card(models.Hearts, 7)}
	table.SortCenters()
	assert.Equal(t, []models.Card{card(models.Hearts, 8), card(models.Hearts, 7), card(models.Hearts, 6)}, table.Centers[0].Cards)
}
