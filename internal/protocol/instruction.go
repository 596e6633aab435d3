// internal/protocol/instruction.go
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jason-s-yu/mongoose/internal/models"
)

// Op is the tag that starts every instruction.
type Op string

const (
	OpSetProperty  Op = "set-property"
	OpStart        Op = "start"
	OpSendDeck     Op = "send-deck"
	OpPickup       Op = "pickup"
	OpPlace        Op = "place"
	OpMoveEnded    Op = "move-ended"
	OpCallMongoose Op = "call-mongoose"
	OpFlipDeck     Op = "flip-deck"
	OpChatMessage  Op = "chat-message"
	OpPlayerJoined Op = "player-joined"
	OpGameRunning  Op = "game-running"
	OpQuit         Op = "quit"
)

const (
	quote     = '\''
	separator = ':'

	// DeckSize is the number of cards a send-deck instruction carries.
	DeckSize = 52
)

var (
	ErrQuoteInOperand = errors.New("protocol: operand contains a quote character")
	ErrArity          = errors.New("protocol: wrong number of operands")
	ErrOperand        = errors.New("protocol: malformed operand")
)

// Raw is an instruction split into its tag and operand strings.
type Raw struct {
	Op       Op
	Operands []string
}

// Encode renders OP or OP:'a':'b'.
func (r Raw) Encode() ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(string(r.Op))
	for _, operand := range r.Operands {
		if strings.ContainsRune(operand, quote) {
			return nil, fmt.Errorf("%w: %s", ErrQuoteInOperand, r.Op)
		}
		sb.WriteByte(separator)
		sb.WriteByte(quote)
		sb.WriteString(operand)
		sb.WriteByte(quote)
	}
	return []byte(sb.String()), nil
}

// ParseRaw splits a payload into tag and operands. Colons inside quotes are
// part of the operand, an unquoted colon ends it. Characters outside quotes
// are dropped, so "name:bob" yields two empty operands.
func ParseRaw(payload []byte) Raw {
	text := string(payload)
	op, rest, found := strings.Cut(text, string(separator))
	r := Raw{Op: Op(op)}
	if !found {
		return r
	}
	var cur strings.Builder
	inString := false
	for _, ch := range rest {
		switch {
		case ch == quote:
			inString = !inString
		case ch == separator && !inString:
			r.Operands = append(r.Operands, cur.String())
			cur.Reset()
		case inString:
			cur.WriteRune(ch)
		}
	}
	r.Operands = append(r.Operands, cur.String())
	return r
}

// Instruction is one decoded protocol message.
type Instruction interface {
	Op() Op
	operands() []string
}

type SetProperty struct {
	Key   string
	Value string
}

// Seat is one entry of the start roster.
type Seat struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type Start struct {
	YourID int
	Seats  []Seat
}

type SendDeck struct {
	Cards []models.Card
}

type Pickup struct {
	PileID int
}

type Place struct {
	Src int
	Dst int
}

type MoveEnded struct{}

type CallMongoose struct {
	Target int
	Skip   bool
}

type FlipDeck struct {
	PlayerID int
}

type ChatMessage struct {
	Text string
}

type PlayerJoined struct {
	Name string
}

type GameRunning struct{}

type Quit struct{}

// Unknown carries an instruction with a tag this build does not know.
type Unknown struct {
	Raw Raw
}

func (SetProperty) Op() Op  { return OpSetProperty }
func (Start) Op() Op        { return OpStart }
func (SendDeck) Op() Op     { return OpSendDeck }
func (Pickup) Op() Op       { return OpPickup }
func (Place) Op() Op        { return OpPlace }
func (MoveEnded) Op() Op    { return OpMoveEnded }
func (CallMongoose) Op() Op { return OpCallMongoose }
func (FlipDeck) Op() Op     { return OpFlipDeck }
func (ChatMessage) Op() Op  { return OpChatMessage }
func (PlayerJoined) Op() Op { return OpPlayerJoined }
func (GameRunning) Op() Op  { return OpGameRunning }
func (Quit) Op() Op         { return OpQuit }
func (u Unknown) Op() Op    { return u.Raw.Op }

func (i SetProperty) operands() []string { return []string{i.Key, i.Value} }

func (i Start) operands() []string {
	out := make([]string, 0, 1+2*len(i.Seats))
	out = append(out, strconv.Itoa(i.YourID))
	for _, s := range i.Seats {
		out = append(out, s.Name, strconv.Itoa(s.ID))
	}
	return out
}

func (i SendDeck) operands() []string {
	out := make([]string, len(i.Cards))
	for n, c := range i.Cards {
		out[n] = c.Encode()
	}
	return out
}

func (i Pickup) operands() []string { return []string{strconv.Itoa(i.PileID)} }

func (i Place) operands() []string {
	return []string{strconv.Itoa(i.Src), strconv.Itoa(i.Dst)}
}

func (MoveEnded) operands() []string { return nil }

func (i CallMongoose) operands() []string {
	skip := "0"
	if i.Skip {
		skip = "1"
	}
	return []string{strconv.Itoa(i.Target), skip}
}

func (i FlipDeck) operands() []string     { return []string{strconv.Itoa(i.PlayerID)} }
func (i ChatMessage) operands() []string  { return []string{i.Text} }
func (i PlayerJoined) operands() []string { return []string{i.Name} }
func (GameRunning) operands() []string    { return nil }
func (Quit) operands() []string           { return nil }
func (u Unknown) operands() []string      { return u.Raw.Operands }

// Encode renders an instruction to its payload bytes.
func Encode(inst Instruction) ([]byte, error) {
	return Raw{Op: inst.Op(), Operands: inst.operands()}.Encode()
}

// MustEncode is Encode for instructions built from trusted values.
func MustEncode(inst Instruction) []byte {
	b, err := Encode(inst)
	if err != nil {
		panic(err)
	}
	return b
}

// SanitizeChat swaps ASCII apostrophes for a typographic one so free text
// always encodes.
func SanitizeChat(text string) string {
	return strings.ReplaceAll(text, string(quote), "’")
}

// Decode parses a payload into a typed instruction. Unrecognised tags come
// back as Unknown with a nil error. A known tag with the wrong operand count
// or unparsable operands is an error; the stream that produced it should be
// treated as desynchronised.
func Decode(payload []byte) (Instruction, error) {
	raw := ParseRaw(payload)
	args := raw.Operands

	switch raw.Op {
	case OpSetProperty:
		if err := arity(raw, 2); err != nil {
			return nil, err
		}
		return SetProperty{Key: args[0], Value: args[1]}, nil

	case OpStart:
		if len(args) == 0 || len(args)%2 == 0 {
			return nil, fmt.Errorf("%w: %s has %d operands", ErrArity, raw.Op, len(args))
		}
		yourID, err := atoi(raw.Op, args[0])
		if err != nil {
			return nil, err
		}
		seats := make([]Seat, 0, len(args)/2)
		for i := 1; i < len(args); i += 2 {
			id, err := atoi(raw.Op, args[i+1])
			if err != nil {
				return nil, err
			}
			seats = append(seats, Seat{Name: args[i], ID: id})
		}
		return Start{YourID: yourID, Seats: seats}, nil

	case OpSendDeck:
		if err := arity(raw, DeckSize); err != nil {
			return nil, err
		}
		cards := make([]models.Card, len(args))
		for i, a := range args {
			c, err := models.ParseCard(a)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOperand, err)
			}
			cards[i] = c
		}
		return SendDeck{Cards: cards}, nil

	case OpPickup:
		if err := arity(raw, 1); err != nil {
			return nil, err
		}
		id, err := atoi(raw.Op, args[0])
		if err != nil {
			return nil, err
		}
		return Pickup{PileID: id}, nil

	case OpPlace:
		if err := arity(raw, 2); err != nil {
			return nil, err
		}
		src, err := atoi(raw.Op, args[0])
		if err != nil {
			return nil, err
		}
		dst, err := atoi(raw.Op, args[1])
		if err != nil {
			return nil, err
		}
		return Place{Src: src, Dst: dst}, nil

	case OpMoveEnded:
		if err := arity(raw, 0); err != nil {
			return nil, err
		}
		return MoveEnded{}, nil

	case OpCallMongoose:
		if err := arity(raw, 2); err != nil {
			return nil, err
		}
		target, err := atoi(raw.Op, args[0])
		if err != nil {
			return nil, err
		}
		skip, err := atoi(raw.Op, args[1])
		if err != nil {
			return nil, err
		}
		return CallMongoose{Target: target, Skip: skip != 0}, nil

	case OpFlipDeck:
		if err := arity(raw, 1); err != nil {
			return nil, err
		}
		id, err := atoi(raw.Op, args[0])
		if err != nil {
			return nil, err
		}
		return FlipDeck{PlayerID: id}, nil

	case OpChatMessage:
		if err := arity(raw, 1); err != nil {
			return nil, err
		}
		return ChatMessage{Text: args[0]}, nil

	case OpPlayerJoined:
		if err := arity(raw, 1); err != nil {
			return nil, err
		}
		return PlayerJoined{Name: args[0]}, nil

	case OpGameRunning:
		if err := arity(raw, 0); err != nil {
			return nil, err
		}
		return GameRunning{}, nil

	case OpQuit:
		if err := arity(raw, 0); err != nil {
			return nil, err
		}
		return Quit{}, nil

	default:
		return Unknown{Raw: raw}, nil
	}
}

func arity(raw Raw, want int) error {
	if len(raw.Operands) != want {
		return fmt.Errorf("%w: %s wants %d, got %d", ErrArity, raw.Op, want, len(raw.Operands))
	}
	return nil
}

func atoi(op Op, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s operand %q is not an integer", ErrOperand, op, s)
	}
	return n, nil
}
