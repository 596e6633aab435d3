// cmd/client/intent.go
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jason-s-yu/mongoose/internal/client"
)

var errUsage = errors.New("usage")

const intentHelp = `Commands:
  pickup <pile>   pick up the top card of one of your piles
  place <pile>    put the held card on a pile
  mongoose        call mongoose on the last move
  flip            turn your face-up pile over when face-down is empty
  say <text>      chat with the table
  state           redraw the table
  quit            leave the game`

type intent struct {
	verb string
	pile int
	text string
}

// parseIntent turns one input line into an intent. Verbs are matched on
// their first letter as well, so "p 4" is a place.
func parseIntent(line string) (intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return intent{}, nil
	}
	verb := strings.ToLower(fields[0])
	switch verb {
	case "pickup", "u":
		verb = "pickup"
	case "place", "p":
		verb = "place"
	case "mongoose", "m":
		return intent{verb: "mongoose"}, nil
	case "flip", "f":
		return intent{verb: "flip"}, nil
	case "state", "s":
		return intent{verb: "state"}, nil
	case "quit", "q":
		return intent{verb: "quit"}, nil
	case "help", "h", "?":
		return intent{verb: "help"}, nil
	case "say", "chat":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if text == "" {
			return intent{}, fmt.Errorf("%w: say <text>", errUsage)
		}
		return intent{verb: "say", text: text}, nil
	default:
		return intent{}, fmt.Errorf("unknown command %q, type help", fields[0])
	}

	if len(fields) != 2 {
		return intent{}, fmt.Errorf("%w: %s <pile>", errUsage, verb)
	}
	pile, err := strconv.Atoi(fields[1])
	if err != nil || pile < 0 {
		return intent{}, fmt.Errorf("%w: %s <pile>, pile is a number", errUsage, verb)
	}
	return intent{verb: verb, pile: pile}, nil
}

// apply runs an intent against the client. It reports whether the player
// asked to leave.
func apply(c *client.Client, in intent) (quit bool, err error) {
	switch in.verb {
	case "":
	case "pickup":
		err = c.PickUp(in.pile)
	case "place":
		err = c.Place(in.pile)
	case "mongoose":
		err = c.CallMongoose()
	case "flip":
		err = c.FlipDeck()
	case "say":
		c.Say(in.text)
	case "state":
		renderState(c)
	case "help":
		fmt.Println(intentHelp)
	case "quit":
		c.Quit()
		return true, nil
	}
	return false, err
}
