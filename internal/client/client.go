// internal/client/client.go
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Status is where the client is in its lifecycle.
type Status int

const (
	StatusLobby Status = iota
	StatusPlaying
	StatusRejected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "waiting for the game to start"
	case StatusPlaying:
		return "playing"
	case StatusRejected:
		return "rejected: a game is already running"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	ErrNotPlaying    = errors.New("client: game has not started")
	ErrNoDeck        = errors.New("client: start received before the deck")
	ErrSendQueueFull = errors.New("client: outbound queue full")
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

type outFrame struct {
	data       []byte
	closeAfter bool
}

// Client is one player's connection to a relay. Its methods must be called
// from a single goroutine (the tick loop); socket I/O happens on helper
// goroutines and reaches the loop through Poll.
type Client struct {
	Name   string
	Rules  game.HouseRules
	Engine *game.Engine
	Status Status

	Connected bool
	LastError error
	Lobby     []string

	conn      net.Conn
	incoming  chan protocol.Instruction
	errc      chan error
	out       chan outFrame
	done      chan struct{}
	closeOnce sync.Once
	deck      []models.Card
	log       *logrus.Entry
}

// Dial connects to a relay, waiting at most timeout, and announces name.
// It is the only blocking step of a client's life.
func Dial(ctx context.Context, addr, name string, timeout time.Duration, rules game.HouseRules) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn, name, rules), nil
}

// New wraps an established connection.
func New(conn net.Conn, name string, rules game.HouseRules) *Client {
	c := &Client{
		Name:      name,
		Rules:     rules,
		Status:    StatusLobby,
		Connected: true,
		conn:      conn,
		incoming:  make(chan protocol.Instruction, queueSize),
		errc:      make(chan error, 1),
		out:       make(chan outFrame, queueSize),
		done:      make(chan struct{}),
		log:       logrus.WithField("player", name),
	}
	go c.readLoop()
	go c.writeLoop()
	c.send(protocol.SetProperty{Key: "name", Value: protocol.SanitizeChat(name)})
	return c
}

func (c *Client) readLoop() {
	fr := protocol.NewFrameReader(c.conn)
	for {
		payload, err := fr.Next()
		if err != nil {
			c.fail(err)
			return
		}
		inst, err := protocol.Decode(payload)
		if err != nil {
			c.fail(err)
			return
		}
		select {
		case c.incoming <- inst:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(f.data); err != nil {
				c.fail(err)
				return
			}
			if f.closeAfter {
				c.Close()
				return
			}
		}
	}
}

// fail hands the first fatal I/O error to the loop.
func (c *Client) fail(err error) {
	select {
	case c.errc <- err:
	default:
	}
}

// Poll applies everything received since the last call without blocking
// and returns how many instructions it handled.
func (c *Client) Poll() int {
	n := 0
	for {
		select {
		case inst := <-c.incoming:
			c.handle(inst)
			n++
		default:
			select {
			case err := <-c.errc:
				c.lost(err)
			default:
			}
			return n
		}
	}
}

func (c *Client) handle(inst protocol.Instruction) {
	switch in := inst.(type) {
	case protocol.GameRunning:
		c.log.Warn("Relay refused us: a game is already running")
		c.Status = StatusRejected
		c.lost(nil)

	case protocol.SendDeck:
		c.deck = in.Cards

	case protocol.Start:
		if c.deck == nil {
			c.LastError = ErrNoDeck
			c.log.WithError(ErrNoDeck).Error("Cannot start game")
			return
		}
		eng, err := game.NewEngine(c.deck, in.Seats, in.YourID, c.Rules)
		if err != nil {
			c.LastError = err
			c.log.WithError(err).Error("Cannot start game")
			return
		}
		eng.SendFn = c.send
		c.Engine = eng
		c.Status = StatusPlaying
		c.log.Infof("Game started, we are seat %d of %d", in.YourID, len(in.Seats))

	case protocol.PlayerJoined:
		c.toFeed(inst, fmt.Sprintf("%s joined the game.", in.Name))

	case protocol.ChatMessage:
		c.toFeed(inst, in.Text)

	default:
		if c.Engine == nil {
			c.log.Debugf("Ignoring %s before the game started", inst.Op())
			return
		}
		if err := c.Engine.Apply(inst); err != nil {
			c.LastError = err
			c.log.WithError(err).Warnf("Failed to apply %s", inst.Op())
		}
	}
}

// toFeed routes lobby lines to Lobby until the game starts.
func (c *Client) toFeed(inst protocol.Instruction, line string) {
	if c.Engine != nil {
		_ = c.Engine.Apply(inst)
		return
	}
	c.Lobby = append(c.Lobby, line)
}

func (c *Client) lost(err error) {
	if !c.Connected {
		return
	}
	c.Connected = false
	if c.Status != StatusRejected {
		c.Status = StatusDisconnected
	}
	if err != nil {
		c.LastError = err
		c.log.WithError(err).Warn("Lost connection to relay")
	}
	c.Close()
}

func (c *Client) send(inst protocol.Instruction) {
	c.enqueue(inst, false)
}

func (c *Client) enqueue(inst protocol.Instruction, closeAfter bool) {
	if !c.Connected {
		return
	}
	payload, err := protocol.Encode(inst)
	if err != nil {
		c.log.WithError(err).Errorf("Cannot encode %s", inst.Op())
		return
	}
	frame, err := protocol.EncodeFrame(payload)
	if err != nil {
		c.log.WithError(err).Errorf("Cannot frame %s", inst.Op())
		return
	}
	select {
	case c.out <- outFrame{data: frame, closeAfter: closeAfter}:
	default:
		c.lost(ErrSendQueueFull)
	}
}

// Close stops all I/O. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed once the connection has been shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Quit tells the relay we are leaving and closes once that is written.
func (c *Client) Quit() {
	c.enqueue(protocol.Quit{}, true)
	c.Connected = false
	c.Status = StatusDisconnected
}

// Say sends a chat line. It works in the lobby too.
func (c *Client) Say(text string) {
	if c.Engine != nil {
		c.Engine.SendChat(text)
		return
	}
	c.send(protocol.ChatMessage{Text: protocol.SanitizeChat(text)})
}

func (c *Client) PickUp(pileID int) error {
	if c.Engine == nil {
		return ErrNotPlaying
	}
	return c.Engine.PickUp(pileID)
}

func (c *Client) Place(pileID int) error {
	if c.Engine == nil {
		return ErrNotPlaying
	}
	return c.Engine.Place(pileID)
}

func (c *Client) CallMongoose() error {
	if c.Engine == nil {
		return ErrNotPlaying
	}
	return c.Engine.CallMongoose()
}

func (c *Client) FlipDeck() error {
	if c.Engine == nil {
		return ErrNotPlaying
	}
	return c.Engine.FlipDeck()
}

// State snapshots the game for rendering. ok is false before the start.
func (c *Client) State() (game.State, bool) {
	if c.Engine == nil {
		return game.State{}, false
	}
	return c.Engine.State(), true
}
