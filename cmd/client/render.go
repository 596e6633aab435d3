// cmd/client/render.go
package main

import (
	"fmt"
	"strconv"

	"github.com/jason-s-yu/mongoose/internal/client"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/pterm/pterm"
)

func topString(p *models.Pile) string {
	top, ok := p.Top()
	if !ok {
		return "-"
	}
	return top.String()
}

// renderState draws the players, the center piles and the turn banner.
func renderState(c *client.Client) {
	st, ok := c.State()
	if !ok {
		pterm.Info.Printfln("Waiting in the lobby as %s (%s).", c.Name, c.Status)
		return
	}

	rows := pterm.TableData{{"Seat", "Player", "Face-down (pile)", "Face-up (pile)", "Top", "Holding"}}
	for _, p := range st.Players {
		name := p.Name
		if p.ID == st.ActiveID {
			name = pterm.LightGreen(name + " (you)")
		}
		if p.ID == st.CurrentID && !st.GameOver {
			name = "> " + name
		}
		holding := ""
		if p.Flipped != nil {
			holding = p.Flipped.String()
		}
		if p.ID == st.ActiveID && st.Held != nil {
			holding = st.Held.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			name,
			fmt.Sprintf("%d (%d)", p.FaceDown.Len(), p.FaceDown.ID),
			fmt.Sprintf("%d (%d)", p.FaceUp.Len(), p.FaceUp.ID),
			topString(p.FaceUp),
			holding,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	centers := pterm.TableData{{"Center pile", "Cards", "Top"}}
	for _, pile := range st.Centers {
		centers = append(centers, []string{strconv.Itoa(pile.ID), strconv.Itoa(pile.Len()), topString(pile)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(centers).Render()

	renderBanner(st)
}

func renderBanner(st game.State) {
	switch {
	case st.GameOver:
		pterm.Success.Println("Game finished!")
	case st.CurrentID == st.ActiveID && st.Held != nil:
		pterm.Info.Printfln("Holding %s. Legal destinations: %v", st.Held, st.Legal)
	case st.CurrentID == st.ActiveID:
		pterm.Info.Printfln("Your turn %d. Pick up from pile %d or %d.",
			st.Turn, models.FaceDownPileID(st.ActiveID), models.FaceUpPileID(st.ActiveID))
	default:
		pterm.Info.Printfln("Turn %d: waiting for player %d.", st.Turn, st.CurrentID)
	}
}

// feedPrinter prints chat and event lines the player has not seen yet.
type feedPrinter struct {
	lobbySeen int
	feedSeen  int
}

func (f *feedPrinter) print(c *client.Client) {
	for ; f.lobbySeen < len(c.Lobby); f.lobbySeen++ {
		pterm.Println(c.Lobby[f.lobbySeen])
	}
	if c.Engine == nil {
		return
	}
	fresh := c.Engine.FeedTotal - f.feedSeen
	if fresh <= 0 {
		return
	}
	feed := c.Engine.Feed
	if fresh > len(feed) {
		fresh = len(feed)
	}
	for _, line := range feed[len(feed)-fresh:] {
		pterm.Println(pterm.Cyan(line))
	}
	f.feedSeen = c.Engine.FeedTotal
}
