// internal/relay/server.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mongoose/internal/cache"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/metrics"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Phase is the relay's lifecycle state.
type Phase int

const (
	PhaseAccepting Phase = iota
	PhaseRunning
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseAccepting:
		return "accepting"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// ActionPublisher receives every relayed instruction, e.g. a Redis list.
type ActionPublisher interface {
	PublishAction(ctx context.Context, record cache.ActionRecord) error
}

// GameRecorder stores the start and result of each game.
type GameRecorder interface {
	RecordStart(ctx context.Context, gameID uuid.UUID, seats []protocol.Seat, deck []models.Card) error
	RecordPlacements(ctx context.Context, gameID uuid.UUID, placements []game.Placement) error
}

// FeedPublisher fans relayed payloads out to spectators.
type FeedPublisher interface {
	Publish(payload []byte)
}

// Options configures a Server. Every field is optional.
type Options struct {
	Rules     game.HouseRules
	Actions   ActionPublisher
	Recorder  GameRecorder
	Feed      FeedPublisher
	Metrics   *metrics.Relay
	Logger    *logrus.Logger
	Console   io.Writer
	Rand      *rand.Rand
	QueueSize int
}

// Server is the relay. A single goroutine running Serve owns all game and
// client state; the accept loop, the console and the per-connection readers
// and writers talk to it through the events channel.
type Server struct {
	opts Options
	log  *logrus.Logger

	events   chan event
	done     chan struct{}
	stopOnce sync.Once
	listener net.Listener

	phase      Phase
	clients    map[int]*client
	order      []int
	nextID     int
	table      *game.Table
	gameID     uuid.UUID
	placements []game.Placement
	gameOver   bool

	actionIndex int

	snapMu sync.RWMutex
	snap   Snapshot
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		events:  make(chan event, 64),
		done:    make(chan struct{}),
		clients: make(map[int]*client),
	}
	s.publishSnapshot()
	return s
}

// ListenAndServe listens on addr and serves until ctx is cancelled or the
// console asks for shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve runs the main loop on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.listener = l
	s.log.WithField("addr", l.Addr().String()).Info("Relay accepting players")
	go s.acceptLoop(l)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Relay context cancelled, shutting down")
			return nil
		case ev := <-s.events:
			s.handle(ev)
			s.publishSnapshot()
			if s.phase == PhaseShuttingDown {
				s.log.Info("Relay shutting down")
				return nil
			}
		}
	}
}

// Done is closed once the relay has shut down.
func (s *Server) Done() <-chan struct{} { return s.done }

// Command queues a console command for the main loop.
func (s *Server) Command(line string) {
	s.post(commandEvent{line: line})
}

func (s *Server) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithError(err).Warn("Accept failed")
			select {
			case <-s.done:
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		if !s.post(acceptEvent{conn: conn}) {
			conn.Close()
			return
		}
	}
}

func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		s.phase = PhaseShuttingDown
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		for _, id := range append([]int(nil), s.order...) {
			s.removeClient(id, "relay shutting down")
		}
		s.publishSnapshot()
	})
}

func (s *Server) handle(ev event) {
	switch e := ev.(type) {
	case acceptEvent:
		s.handleAccept(e.conn)
	case instructionEvent:
		c, ok := s.clients[e.clientID]
		if !ok {
			return
		}
		s.dispatch(c, e.inst, e.payload)
	case disconnectEvent:
		if _, ok := s.clients[e.clientID]; !ok {
			return
		}
		if e.desync {
			s.opts.Metrics.Desync()
			s.log.WithError(e.err).Warnf("Client %d sent a malformed instruction, dropping", e.clientID)
		}
		reason := "connection closed"
		if e.err != nil && !errors.Is(e.err, io.EOF) {
			reason = e.err.Error()
		}
		s.removeClient(e.clientID, reason)
	case commandEvent:
		s.handleCommand(e.line)
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	full := s.opts.Rules.MaxPlayers > 0 && len(s.clients) >= s.opts.Rules.MaxPlayers
	if s.phase != PhaseAccepting || full {
		s.log.WithField("remote", conn.RemoteAddr().String()).Infof("Rejecting connection (phase=%s, full=%v)", s.phase, full)
		s.opts.Metrics.Rejected()
		go reject(conn)
		return
	}

	c := newClient(s.nextID, conn, s.opts.QueueSize)
	s.nextID++
	s.clients[c.id] = c
	s.order = append(s.order, c.id)
	s.opts.Metrics.ClientConnected()
	s.log.WithField("remote", conn.RemoteAddr().String()).Infof("Client %d connected", c.id)

	go s.readLoop(c)
	go s.writeLoop(c)
}

// reject tells a connection a game is running and hangs up. It runs off the
// main loop so a stalled peer only holds up its own goroutine.
func reject(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(rejectTimeout))
	_ = protocol.WriteFrame(conn, protocol.MustEncode(protocol.GameRunning{}))
}

func (s *Server) removeClient(id int, reason string) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	for i, cid := range s.order {
		if cid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	c.conn.Close()
	close(c.out)
	s.opts.Metrics.ClientGone()
	s.log.Infof("Client %d (%s) removed: %s", c.id, c.displayName(), reason)
}

// enqueue frames a payload onto a client's queue. A client that cannot
// keep up is dropped rather than stalling the loop.
func (s *Server) enqueue(c *client, payload []byte) {
	frame, err := protocol.EncodeFrame(payload)
	if err != nil {
		s.log.WithError(err).Error("Failed to frame outbound payload")
		return
	}
	select {
	case c.out <- frame:
	default:
		s.opts.Metrics.SendOverflow()
		s.removeClient(c.id, "outbound queue full")
	}
}

// broadcast sends payload to every client except skip (-1 for none), in
// join order.
func (s *Server) broadcast(payload []byte, skip int) {
	for _, id := range append([]int(nil), s.order...) {
		if id == skip {
			continue
		}
		if c, ok := s.clients[id]; ok {
			s.enqueue(c, payload)
		}
	}
}

func (s *Server) dispatch(c *client, inst protocol.Instruction, payload []byte) {
	s.opts.Metrics.Instruction(string(inst.Op()))

	switch in := inst.(type) {
	case protocol.SetProperty:
		c.props[in.Key] = in.Value
		if in.Key != "name" {
			return
		}
		c.name = protocol.SanitizeChat(in.Value)
		s.log.Infof("Client %d is now known as %s", c.id, c.name)
		s.broadcast(protocol.MustEncode(protocol.PlayerJoined{Name: c.name}), c.id)
		return

	case protocol.Pickup, protocol.MoveEnded:
		s.broadcast(payload, c.id)

	case protocol.FlipDeck:
		if s.table != nil {
			if err := s.table.Flip(in.PlayerID); err != nil {
				s.log.WithError(err).Warnf("Client %d flipped an unknown seat", c.id)
			}
		}
		s.broadcast(payload, c.id)

	case protocol.Place:
		if s.table == nil {
			s.log.Warnf("Client %d sent place before the game started", c.id)
			return
		}
		if _, err := s.table.Move(in.Src, in.Dst); err != nil {
			s.log.WithError(err).Warnf("Client %d sent an invalid place %d -> %d", c.id, in.Src, in.Dst)
			return
		}
		s.table.SortCenters()
		s.broadcast(payload, c.id)
		s.checkFinished()

	case protocol.CallMongoose:
		if s.table != nil {
			if _, err := s.table.PassPenalty(in.Target); err != nil {
				s.log.WithError(err).Warnf("Client %d called mongoose on an unknown seat", c.id)
			}
		}
		s.broadcast(payload, -1)
		s.checkFinished()

	case protocol.ChatMessage:
		s.broadcast(payload, -1)

	case protocol.Quit:
		s.log.Infof("Player %s left the game", c.displayName())
		s.removeClient(c.id, "quit")
		return

	default:
		s.log.Debugf("Ignoring %s from client %d", inst.Op(), c.id)
		return
	}

	s.logAction(c, inst, payload)
	if s.opts.Feed != nil {
		s.opts.Feed.Publish(payload)
	}
}

// startGame deals a fresh deck to everyone connected and moves to RUNNING.
func (s *Server) startGame() {
	if s.phase != PhaseAccepting {
		fmt.Fprintln(s.opts.Console, "A game is already running.")
		return
	}
	n := len(s.order)
	if n == 0 {
		fmt.Fprintln(s.opts.Console, "No players connected.")
		return
	}

	seats := make([]protocol.Seat, n)
	names := make([]string, n)
	for i, id := range s.order {
		c := s.clients[id]
		c.seat = i
		if c.name == "" {
			c.name = fmt.Sprintf("Player %d", i)
		}
		seats[i] = protocol.Seat{Name: c.name, ID: i}
		names[i] = c.name
	}

	deck := game.ShuffleDeck(game.NewFullDeck(), s.opts.Rand)
	s.table = game.NewTable(game.Deal(deck, n), names, -1)
	s.gameID = uuid.New()
	s.placements = nil
	s.gameOver = false
	s.phase = PhaseRunning
	s.opts.Metrics.GameStarted()

	deckPayload := protocol.MustEncode(protocol.SendDeck{Cards: deck})
	for _, id := range append([]int(nil), s.order...) {
		c, ok := s.clients[id]
		if !ok {
			continue
		}
		s.enqueue(c, deckPayload)
		s.enqueue(c, protocol.MustEncode(protocol.Start{YourID: c.seat, Seats: seats}))
	}
	s.log.WithField("game", s.gameID).Infof("Game started with %d players", n)

	if s.opts.Recorder != nil {
		go func(gameID uuid.UUID) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.opts.Recorder.RecordStart(ctx, gameID, seats, deck); err != nil {
				s.log.WithError(err).Errorf("Failed to record start of game %s", gameID)
			}
		}(s.gameID)
	}
}

// checkFinished records players whose piles are empty and closes out the
// game when one player is left.
func (s *Server) checkFinished() {
	if s.table == nil || s.gameOver {
		return
	}
	for _, p := range s.table.Players {
		if !p.HasFinished() || s.hasPlaced(p.ID) {
			continue
		}
		s.placements = append(s.placements, game.Placement{Seat: p.ID, Name: p.Name, Rank: len(s.placements) + 1})
		s.log.Infof("Player %s finished in position %d", p.Name, len(s.placements))
	}
	n := s.table.NumPlayers()
	if len(s.placements) < n-1 {
		return
	}
	for _, p := range s.table.Players {
		if !s.hasPlaced(p.ID) {
			s.placements = append(s.placements, game.Placement{Seat: p.ID, Name: p.Name, Rank: len(s.placements) + 1})
		}
	}
	s.gameOver = true
	s.log.WithField("game", s.gameID).Info("Game finished")

	if s.opts.Recorder != nil {
		placements := append([]game.Placement(nil), s.placements...)
		go func(gameID uuid.UUID) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.opts.Recorder.RecordPlacements(ctx, gameID, placements); err != nil {
				s.log.WithError(err).Errorf("Failed to record result of game %s", gameID)
			}
		}(s.gameID)
	}
}

func (s *Server) hasPlaced(seat int) bool {
	for _, p := range s.placements {
		if p.Seat == seat {
			return true
		}
	}
	return false
}

// logAction pushes the relayed instruction to the action log without
// blocking the loop.
func (s *Server) logAction(c *client, inst protocol.Instruction, payload []byte) {
	if s.opts.Actions == nil {
		return
	}
	s.actionIndex++
	record := cache.ActionRecord{
		GameID:      s.gameID,
		ActionIndex: s.actionIndex,
		ClientID:    c.id,
		Seat:        c.seat,
		ActionType:  string(inst.Op()),
		Payload:     string(payload),
		Timestamp:   time.Now().UnixMilli(),
	}
	go func(rec cache.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.opts.Actions.PublishAction(ctx, rec); err != nil {
			s.log.WithError(err).Errorf("Error publishing action %d for game %s", rec.ActionIndex, rec.GameID)
		}
	}(record)
}

func (c *client) displayName() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("client-%d", c.id)
}
