// internal/game/engine.go
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
	log "github.com/sirupsen/logrus"
)

var (
	ErrGameOver         = errors.New("game: game is over")
	ErrNotYourTurn      = errors.New("game: not your turn")
	ErrAlreadyHolding   = errors.New("game: already holding a card")
	ErrNotHolding       = errors.New("game: no card held")
	ErrNotYourPile      = errors.New("game: pile does not belong to you")
	ErrIllegalPlacement = errors.New("game: card cannot go on that pile")
	ErrCannotFlip       = errors.New("game: cannot flip while cards remain face down")
	ErrPenaltyPending   = errors.New("game: waiting for penalty to be applied")
	ErrBadRoster        = errors.New("game: invalid player roster")
)

// FeedLimit is how many chat/info lines the engine keeps.
const FeedLimit = 200

// Move is a pickup and, once the card is put down, its destination.
type Move struct {
	Card  models.Card
	Src   *models.Pile
	Dst   *models.Pile
	Mover int
}

// SendFunc delivers an instruction to the relay.
type SendFunc func(protocol.Instruction)

// Engine is one client's replica of the game. Local intents are validated,
// applied and then sent through SendFn; remote instructions are applied
// with Apply. Every client applies the same instruction stream, so the
// replicas stay in step without a referee.
//
// Engine is not safe for concurrent use; the client loop owns it.
type Engine struct {
	Table    *Table
	Rules    HouseRules
	ActiveID int

	Turn         int
	MoveStarted  bool
	LastMove     *Move
	FinishedMove *Move
	Held         *models.Card
	heldFrom     *models.Pile

	// awaitingPenalty blocks local pickups between sending a self-penalty
	// and seeing it echoed back.
	awaitingPenalty bool

	Placements []int
	GameOver   bool
	Feed       []string
	// FeedTotal counts every line ever added; Feed keeps only the last FeedLimit.
	FeedTotal int

	SendFn SendFunc
	log    *log.Entry
}

// NewEngine deals deck among the seats and returns an engine controlling
// the seat activeID. Seats are ordered by id and must be numbered 0..n-1.
func NewEngine(deck []models.Card, seats []protocol.Seat, activeID int, rules HouseRules) (*Engine, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no seats", ErrBadRoster)
	}
	ordered := make([]protocol.Seat, len(seats))
	copy(ordered, seats)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	names := make([]string, len(ordered))
	for i, s := range ordered {
		if s.ID != i {
			return nil, fmt.Errorf("%w: seat ids must run 0..%d, found %d", ErrBadRoster, len(ordered)-1, s.ID)
		}
		names[i] = s.Name
	}
	if activeID < 0 || activeID >= len(ordered) {
		return nil, fmt.Errorf("%w: active id %d out of range", ErrBadRoster, activeID)
	}

	e := &Engine{
		Table:    NewTable(Deal(deck, len(ordered)), names, activeID),
		Rules:    rules,
		ActiveID: activeID,
		log:      log.WithField("seat", activeID),
	}
	return e, nil
}

func (e *Engine) NumPlayers() int { return e.Table.NumPlayers() }

// Current is the player whose turn it is.
func (e *Engine) Current() *models.Player {
	return e.Table.Players[e.Turn%e.NumPlayers()]
}

// Previous is the seat before the current one.
func (e *Engine) Previous() *models.Player {
	n := e.NumPlayers()
	return e.Table.Players[((e.Turn-1)%n+n)%n]
}

// Active is the player this engine controls.
func (e *Engine) Active() *models.Player {
	return e.Table.Players[e.ActiveID]
}

func (e *Engine) IsMyTurn() bool {
	return !e.GameOver && e.Current() == e.Active()
}

// PickUp takes the top card of one of the local player's own piles.
func (e *Engine) PickUp(pileID int) error {
	switch {
	case e.GameOver:
		return ErrGameOver
	case !e.IsMyTurn():
		return ErrNotYourTurn
	case e.awaitingPenalty:
		return ErrPenaltyPending
	case e.Held != nil:
		return ErrAlreadyHolding
	}
	pile, err := e.Table.Pile(pileID)
	if err != nil {
		return err
	}
	me := e.Active()
	if !me.Owns(pile) {
		return ErrNotYourPile
	}
	c, ok := pile.TakeTop()
	if !ok {
		return fmt.Errorf("%w: %d", ErrEmptyPile, pileID)
	}
	e.Held = &c
	e.heldFrom = pile
	e.LastMove = &Move{Card: c, Src: pile, Mover: me.ID}
	e.MoveStarted = true
	e.send(protocol.Pickup{PileID: pileID})
	return nil
}

// canPlace applies the placement rule for the held card.
func (e *Engine) canPlace(card models.Card, pile *models.Pile) bool {
	if e.Table.IsCenter(pile) {
		return CanPlaceOnCenter(card, pile)
	}
	owner := e.Table.Owner(pile)
	if owner == nil || pile != owner.FaceUp {
		return false
	}
	return !pile.Empty() || owner == e.Current()
}

// LegalDestinations lists the pile ids the held card may be put on.
func (e *Engine) LegalDestinations() []int {
	if e.Held == nil {
		return nil
	}
	var out []int
	for id := 0; id < e.Table.NumPiles(); id++ {
		pile, _ := e.Table.Pile(id)
		if e.canPlace(*e.Held, pile) {
			out = append(out, id)
		}
	}
	return out
}

// Place puts the held card on a pile. Placing on your own face-up pile, or
// running out of cards, ends the turn.
func (e *Engine) Place(pileID int) error {
	switch {
	case e.GameOver:
		return ErrGameOver
	case e.Held == nil:
		return ErrNotHolding
	case !e.IsMyTurn():
		return ErrNotYourTurn
	}
	dst, err := e.Table.Pile(pileID)
	if err != nil {
		return err
	}
	card := *e.Held
	if !e.canPlace(card, dst) {
		return fmt.Errorf("%w: %s on pile %d", ErrIllegalPlacement, card, pileID)
	}
	if e.Table.IsCenter(dst) && SuitMismatch(card, dst) {
		e.autoMongoose(card, dst)
		return nil
	}

	me := e.Active()
	src := e.heldFrom
	dst.AddTop(card)
	e.dropHeld(dst)
	e.send(protocol.Place{Src: src.ID, Dst: dst.ID})
	e.Table.SortCenters()

	if (dst == me.FaceUp || me.HasFinished()) && e.Current() == me {
		e.send(protocol.MoveEnded{})
		e.nextTurn()
	}
	return nil
}

// autoMongoose handles a center placement that breaks suit. The mover is
// penalised at once and loses the rest of their turn.
func (e *Engine) autoMongoose(card models.Card, dst *models.Pile) {
	me := e.Active()
	src := e.heldFrom
	if e.Rules.RetractIllegalPlacement {
		dst = me.FaceUp
	}
	dst.AddTop(card)
	e.dropHeld(dst)
	e.send(protocol.Place{Src: src.ID, Dst: dst.ID})
	e.Table.SortCenters()

	e.log.Infof("%s placed %s on a mixed-suit pile", me.Name, card)
	e.SendChat(fmt.Sprintf("%s was auto-mongoosed!", me.Name))
	e.awaitingPenalty = true
	e.send(protocol.CallMongoose{Target: me.ID, Skip: true})
}

func (e *Engine) dropHeld(dst *models.Pile) {
	e.Held = nil
	e.heldFrom = nil
	if e.LastMove != nil {
		e.LastMove.Dst = dst
	}
}

// FlipDeck turns the local player's face-up pile over once their face-down
// pile is exhausted.
func (e *Engine) FlipDeck() error {
	switch {
	case e.GameOver:
		return ErrGameOver
	case !e.IsMyTurn():
		return ErrNotYourTurn
	case e.Held != nil:
		return ErrAlreadyHolding
	}
	me := e.Active()
	if !me.FaceDown.Empty() || me.FaceUp.Empty() {
		return ErrCannotFlip
	}
	me.FlipDeck()
	e.send(protocol.FlipDeck{PlayerID: me.ID})
	return nil
}

// CallMongoose judges the most recent move. If the move was correct the
// caller takes the penalty instead.
func (e *Engine) CallMongoose() error {
	if e.GameOver {
		return ErrGameOver
	}
	if e.Held != nil {
		return ErrAlreadyHolding
	}
	me := e.Active()

	var target *models.Player
	var move *Move
	switch {
	case e.MoveStarted:
		target, move = e.Current(), e.LastMove
	case e.FinishedMove != nil:
		target, move = e.Table.Players[e.FinishedMove.Mover], e.FinishedMove
	default:
		target = e.Previous()
	}

	if e.CheckMove(move, target) {
		e.SendChat(fmt.Sprintf("%s mongoosed themselves!!", me.Name))
		e.send(protocol.CallMongoose{Target: me.ID, Skip: false})
		return nil
	}
	e.SendChat(fmt.Sprintf("%s mongoosed %s!", me.Name, target.Name))
	e.send(protocol.CallMongoose{Target: target.ID, Skip: target == e.Current()})
	return nil
}

// CheckMove reports whether player's move was correct. A move is wrong if
// the player skipped a play they were obliged to make.
func (e *Engine) CheckMove(move *Move, player *models.Player) bool {
	if move == nil {
		return true
	}
	card := move.Card

	if move.Dst == nil {
		if move.Src == player.FaceUp {
			return e.hasPlayFor(card, player)
		}
		top, ok := player.FaceUp.Top()
		if !ok {
			return true
		}
		return !e.hasPlayFor(top, player)
	}

	if move.Src == player.FaceUp && e.Table.IsCenter(move.Dst) {
		return true
	}
	for _, c := range e.Table.Centers {
		if fitsCenter(card, c) {
			return false
		}
	}

	n := e.NumPlayers()
	for k := 1; k < n; k++ {
		p := e.Table.Players[(player.ID+k)%n]
		top, ok := p.FaceUp.Top()
		if !ok {
			continue
		}
		if p.FaceUp == move.Dst {
			break
		}
		if top.Value+1 == card.Value {
			return false
		}
	}

	if move.Src == player.FaceUp {
		if move.Src == move.Dst {
			return false
		}
		return stacksUp(move.Dst)
	}

	if top, ok := player.FaceUp.Top(); ok && e.hasPlayFor(top, player) {
		return false
	}
	if move.Dst != player.FaceUp && !stacksUp(move.Dst) {
		return false
	}
	return true
}

// hasPlayFor reports whether card could have gone somewhere other than
// player's own piles.
func (e *Engine) hasPlayFor(card models.Card, player *models.Player) bool {
	if card.Value == models.StartValue {
		return true
	}
	for _, c := range e.Table.Centers {
		if fitsCenter(card, c) {
			return true
		}
	}
	for _, p := range e.Table.Players {
		if p == player {
			continue
		}
		if top, ok := p.FaceUp.Top(); ok && top.Value+1 == card.Value {
			return true
		}
	}
	return false
}

// stacksUp is true when the top card is one higher than the card beneath
// it. Piles with fewer than two cards pass.
func stacksUp(p *models.Pile) bool {
	if p.Len() < 2 {
		return true
	}
	return p.Cards[0].Value == p.Cards[1].Value+1
}

// nextTurn passes play to the next seat that still has cards and records
// anybody who has finished. Only the client whose turn is ending
// announces results, so each line shows up once.
func (e *Engine) nextTurn() {
	if e.GameOver {
		return
	}
	announce := e.Current() == e.Active()
	if e.returnHeld() {
		// the interrupted pickup was undone, there is nothing left to judge
		e.LastMove = nil
	}
	e.FinishedMove = e.LastMove
	e.LastMove = nil

	n := e.NumPlayers()
	for i := 0; i < n; i++ {
		cur := e.Current()
		if cur.HasFinished() && e.Rank(cur.ID) == 0 {
			e.Placements = append(e.Placements, cur.ID)
			e.log.Infof("%s finished in position %d", cur.Name, len(e.Placements))
			if announce {
				e.SendChat(fmt.Sprintf("Player %s has finished in position %d!", cur.Name, len(e.Placements)))
			}
		}
		e.Turn++
		e.MoveStarted = false

		if len(e.Placements) >= n-1 {
			e.GameOver = true
			if announce {
				e.SendChat("Game finished!")
			}
			return
		}
		if !e.Current().HasFinished() {
			return
		}
	}
}

// returnHeld puts a card still in hand back on the pile it came from. It
// runs when a penalty skips the mover mid-move, for the local held card and
// for mirrored flipped slots alike.
func (e *Engine) returnHeld() bool {
	returned := false
	if e.Held != nil {
		e.heldFrom.AddTop(*e.Held)
		e.Held = nil
		e.heldFrom = nil
		returned = true
	}
	for _, p := range e.Table.Players {
		if p.Flipped == nil {
			continue
		}
		src := p.FaceDown
		if m := e.LastMove; m != nil && m.Mover == p.ID && m.Src != nil {
			src = m.Src
		}
		p.PlaceFlipped(src)
		returned = true
	}
	return returned
}

// Rank is a player's finishing position, or 0 if they are still playing.
func (e *Engine) Rank(playerID int) int {
	for i, id := range e.Placements {
		if id == playerID {
			return i + 1
		}
	}
	return 0
}

// Apply mirrors an instruction relayed from another client.
func (e *Engine) Apply(inst protocol.Instruction) error {
	switch in := inst.(type) {
	case protocol.Pickup:
		pile, err := e.Table.Pile(in.PileID)
		if err != nil {
			return err
		}
		owner := e.Table.Owner(pile)
		if owner == nil {
			return fmt.Errorf("%w: pickup from center pile %d", ErrNotYourPile, in.PileID)
		}
		c, ok := owner.FlipFrom(pile)
		if !ok {
			return fmt.Errorf("%w: %d", ErrEmptyPile, in.PileID)
		}
		e.LastMove = &Move{Card: c, Src: pile, Mover: owner.ID}
		e.MoveStarted = true

	case protocol.Place:
		src, err := e.Table.Pile(in.Src)
		if err != nil {
			return err
		}
		owner := e.Table.Owner(src)
		if owner == nil {
			return fmt.Errorf("%w: place from center pile %d", ErrUnknownPile, in.Src)
		}
		dst, err := e.Table.Pile(in.Dst)
		if err != nil {
			return err
		}
		if _, ok := owner.PlaceFlipped(dst); !ok {
			e.log.Warnf("place from %s without a flipped card, moving top of pile %d", owner.Name, in.Src)
			if _, err := e.Table.Move(in.Src, in.Dst); err != nil {
				return err
			}
		}
		if e.LastMove != nil {
			e.LastMove.Dst = dst
		}
		e.Table.SortCenters()

	case protocol.MoveEnded:
		e.nextTurn()

	case protocol.CallMongoose:
		moved, err := e.Table.PassPenalty(in.Target)
		if err != nil {
			return err
		}
		e.log.Debugf("penalty on seat %d moved %d card(s)", in.Target, moved)
		if in.Target == e.ActiveID {
			e.awaitingPenalty = false
		}
		if in.Skip {
			e.nextTurn()
		}

	case protocol.FlipDeck:
		if in.PlayerID == e.ActiveID {
			return nil
		}
		return e.Table.Flip(in.PlayerID)

	case protocol.ChatMessage:
		e.appendFeed(in.Text)

	case protocol.PlayerJoined:
		e.appendFeed(fmt.Sprintf("%s joined the game.", in.Name))

	default:
		e.log.Debugf("ignoring %s during play", inst.Op())
	}
	return nil
}

// SendChat sends a line to every client, the sender included.
func (e *Engine) SendChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.send(protocol.ChatMessage{Text: protocol.SanitizeChat(text)})
}

func (e *Engine) appendFeed(line string) {
	e.FeedTotal++
	e.Feed = append(e.Feed, line)
	if len(e.Feed) > FeedLimit {
		e.Feed = e.Feed[len(e.Feed)-FeedLimit:]
	}
}

func (e *Engine) send(inst protocol.Instruction) {
	if e.SendFn == nil {
		e.log.Warnf("SendFn is nil, dropping %s", inst.Op())
		return
	}
	e.SendFn(inst)
}
