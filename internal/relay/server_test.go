// internal/relay/server_test.go
package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mongoose/internal/cache"
	"github.com/jason-s-yu/mongoose/internal/game"
	"github.com/jason-s-yu/mongoose/internal/models"
	"github.com/jason-s-yu/mongoose/internal/protocol"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

// syncBuffer is a bytes.Buffer safe for the console writer and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// hooks records everything the relay hands to its collaborators.
type hooks struct {
	mu         sync.Mutex
	actions    []cache.ActionRecord
	starts     [][]protocol.Seat
	decks      [][]models.Card
	placements [][]game.Placement
	feed       []string
}

func (h *hooks) PublishAction(_ context.Context, rec cache.ActionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, rec)
	return nil
}

func (h *hooks) RecordStart(_ context.Context, _ uuid.UUID, seats []protocol.Seat, deck []models.Card) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, seats)
	h.decks = append(h.decks, deck)
	return nil
}

func (h *hooks) RecordPlacements(_ context.Context, _ uuid.UUID, placements []game.Placement) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.placements = append(h.placements, placements)
	return nil
}

func (h *hooks) Publish(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feed = append(h.feed, string(payload))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startTestServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	srv := NewServer(opts)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, l)
	t.Cleanup(func() {
		cancel()
		select {
		case <-srv.Done():
		case <-time.After(waitFor):
			t.Error("relay did not shut down")
		}
	})
	return srv, l.Addr().String()
}

type testPeer struct {
	t    *testing.T
	conn net.Conn
	fr   *protocol.FrameReader
}

func dialPeer(t *testing.T, addr string) *testPeer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, waitFor)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testPeer{t: t, conn: conn, fr: protocol.NewFrameReader(conn)}
}

func (p *testPeer) send(inst protocol.Instruction) {
	p.sendRaw(string(protocol.MustEncode(inst)))
}

func (p *testPeer) sendRaw(payload string) {
	require.NoError(p.t, protocol.WriteFrame(p.conn, []byte(payload)))
}

func (p *testPeer) expect() protocol.Instruction {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	payload, err := p.fr.Next()
	require.NoError(p.t, err)
	inst, err := protocol.Decode(payload)
	require.NoError(p.t, err)
	return inst
}

func (p *testPeer) expectClosed() {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := p.fr.Next()
	require.Error(p.t, err)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		p.t.Fatal("expected the relay to close the connection, got a timeout")
	}
}

func join(t *testing.T, srv *Server, addr, name string) *testPeer {
	t.Helper()
	p := dialPeer(t, addr)
	p.send(protocol.SetProperty{Key: "name", Value: name})
	require.Eventually(t, func() bool {
		for _, c := range srv.Snapshot().Clients {
			if c.Name == name {
				return true
			}
		}
		return false
	}, waitFor, 5*time.Millisecond)
	return p
}

// startTwo joins ann and bob and starts the game, consuming the setup traffic.
func startTwo(t *testing.T, srv *Server, addr string) (*testPeer, *testPeer, []models.Card) {
	t.Helper()
	ann := join(t, srv, addr, "ann")
	bob := join(t, srv, addr, "bob")
	require.Equal(t, protocol.PlayerJoined{Name: "bob"}, ann.expect())

	srv.Command("start")
	deck, ok := ann.expect().(protocol.SendDeck)
	require.True(t, ok)
	_, ok = ann.expect().(protocol.Start)
	require.True(t, ok)
	_, ok = bob.expect().(protocol.SendDeck)
	require.True(t, ok)
	_, ok = bob.expect().(protocol.Start)
	require.True(t, ok)
	return ann, bob, deck.Cards
}

func pileSize(srv *Server, id int) int {
	for _, p := range srv.Snapshot().Piles {
		if p.ID == id {
			return p.Size
		}
	}
	return -1
}

func TestJoinBroadcastsPlayerJoined(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")
	bob := join(t, srv, addr, "bob")

	assert.Equal(t, protocol.PlayerJoined{Name: "bob"}, ann.expect())

	bob.send(protocol.ChatMessage{Text: "hi"})
	assert.Equal(t, protocol.ChatMessage{Text: "hi"}, bob.expect(), "bob joined after ann and hears nothing about her")
	assert.Equal(t, protocol.ChatMessage{Text: "hi"}, ann.expect())

	snap := srv.Snapshot()
	assert.Equal(t, "accepting", snap.Phase)
	require.Len(t, snap.Clients, 2)
	assert.Equal(t, 0, snap.Clients[0].ID)
	assert.Equal(t, 1, snap.Clients[1].ID)
	assert.Equal(t, -1, snap.Clients[0].Seat)
}

func TestStartSendsDeckThenStart(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")
	bob := join(t, srv, addr, "bob")
	require.Equal(t, protocol.PlayerJoined{Name: "bob"}, ann.expect())

	srv.Command("start")
	seats := []protocol.Seat{{Name: "ann", ID: 0}, {Name: "bob", ID: 1}}

	deckA, ok := ann.expect().(protocol.SendDeck)
	require.True(t, ok, "deck comes first")
	assert.Equal(t, protocol.Start{YourID: 0, Seats: seats}, ann.expect())

	deckB, ok := bob.expect().(protocol.SendDeck)
	require.True(t, ok)
	assert.Equal(t, protocol.Start{YourID: 1, Seats: seats}, bob.expect())

	assert.Equal(t, deckA, deckB)
	assert.ElementsMatch(t, game.NewFullDeck(), deckA.Cards)

	require.Eventually(t, func() bool { return srv.Snapshot().Phase == "running" }, waitFor, 5*time.Millisecond)
	snap := srv.Snapshot()
	assert.NotEmpty(t, snap.GameID)
	require.Len(t, snap.Piles, 8)
	assert.Equal(t, 26, snap.Piles[0].Size)
	assert.Nil(t, snap.Piles[0].Top, "face-down tops stay hidden")
	assert.Equal(t, 0, snap.Piles[4].Size)
}

func TestRelayRouting(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann, bob, deck := startTwo(t, srv, addr)

	ann.send(protocol.Pickup{PileID: 0})
	assert.Equal(t, protocol.Pickup{PileID: 0}, bob.expect())

	ann.send(protocol.Place{Src: 0, Dst: 4})
	assert.Equal(t, protocol.Place{Src: 0, Dst: 4}, bob.expect())
	require.Eventually(t, func() bool { return pileSize(srv, 4) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 25, pileSize(srv, 0))
	assert.Equal(t, deck[0], *srv.Snapshot().Piles[4].Top, "ann's first dealt card was on top")

	ann.send(protocol.MoveEnded{})
	assert.Equal(t, protocol.MoveEnded{}, bob.expect())

	ann.send(protocol.ChatMessage{Text: "10:30 ready?"})
	assert.Equal(t, protocol.ChatMessage{Text: "10:30 ready?"}, ann.expect(), "nothing else was echoed to ann")
	assert.Equal(t, protocol.ChatMessage{Text: "10:30 ready?"}, bob.expect())

	bob.send(protocol.CallMongoose{Target: 0, Skip: false})
	assert.Equal(t, protocol.CallMongoose{Target: 0, Skip: false}, ann.expect())
	assert.Equal(t, protocol.CallMongoose{Target: 0, Skip: false}, bob.expect())
	require.Eventually(t, func() bool { return pileSize(srv, 0) == 26 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 25, pileSize(srv, 2))

	bob.send(protocol.FlipDeck{PlayerID: 1})
	assert.Equal(t, protocol.FlipDeck{PlayerID: 1}, ann.expect())
}

func TestPlaceWithUnknownPileIsDropped(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann, bob, _ := startTwo(t, srv, addr)

	ann.send(protocol.Place{Src: 0, Dst: 42})
	ann.send(protocol.ChatMessage{Text: "after"})
	assert.Equal(t, protocol.ChatMessage{Text: "after"}, bob.expect())
	assert.Equal(t, 26, pileSize(srv, 0))
}

func TestRejectWhileRunning(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	startTwo(t, srv, addr)

	carl := dialPeer(t, addr)
	assert.Equal(t, protocol.GameRunning{}, carl.expect())
	carl.expectClosed()
	assert.Len(t, srv.Snapshot().Clients, 2)
}

func TestRejectWhenTableFull(t *testing.T) {
	srv, addr := startTestServer(t, Options{Rules: game.HouseRules{MaxPlayers: 1}})
	join(t, srv, addr, "ann")

	bob := dialPeer(t, addr)
	assert.Equal(t, protocol.GameRunning{}, bob.expect())
	bob.expectClosed()
}

func TestRejectDoesNotWaitForPeer(t *testing.T) {
	srv := NewServer(Options{Logger: quietLogger(), Console: io.Discard})
	srv.phase = PhaseRunning

	local, remote := net.Pipe()
	defer remote.Close()

	// nobody reads the pipe yet, so a write on the loop would block
	start := time.Now()
	srv.handle(acceptEvent{conn: local})
	assert.Less(t, time.Since(start), rejectTimeout/2)
	assert.Empty(t, srv.clients)

	require.NoError(t, remote.SetReadDeadline(time.Now().Add(waitFor)))
	fr := protocol.NewFrameReader(remote)
	payload, err := fr.Next()
	require.NoError(t, err)
	inst, err := protocol.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.GameRunning{}, inst)

	_, err = fr.Next()
	assert.Error(t, err)
}

func TestDisconnectRemovesClient(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")
	bob := join(t, srv, addr, "bob")
	require.Equal(t, protocol.PlayerJoined{Name: "bob"}, ann.expect())

	require.NoError(t, bob.conn.Close())
	require.Eventually(t, func() bool { return len(srv.Snapshot().Clients) == 1 }, waitFor, 5*time.Millisecond)

	ann.send(protocol.ChatMessage{Text: "still here"})
	assert.Equal(t, protocol.ChatMessage{Text: "still here"}, ann.expect())
}

func TestMalformedInstructionDropsOnlyThatClient(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")
	bob := join(t, srv, addr, "bob")
	require.Equal(t, protocol.PlayerJoined{Name: "bob"}, ann.expect())

	bob.sendRaw("place:'1'")
	bob.expectClosed()
	require.Eventually(t, func() bool { return len(srv.Snapshot().Clients) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "ann", srv.Snapshot().Clients[0].Name)
}

func TestQuitRemovesClient(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")

	ann.send(protocol.Quit{})
	require.Eventually(t, func() bool { return len(srv.Snapshot().Clients) == 0 }, waitFor, 5*time.Millisecond)
}

func TestUnknownOpIsIgnored(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")

	ann.sendRaw("dance:'1'")
	ann.send(protocol.ChatMessage{Text: "ok"})
	assert.Equal(t, protocol.ChatMessage{Text: "ok"}, ann.expect())
}

func TestUnquotedNameTextIsDropped(t *testing.T) {
	srv, addr := startTestServer(t, Options{})
	ann := join(t, srv, addr, "ann")

	other := dialPeer(t, addr)
	other.send(protocol.ChatMessage{Text: "x"})
	other.sendRaw("set-property:'name':'o'neil'")
	assert.Equal(t, protocol.ChatMessage{Text: "x"}, ann.expect())
	assert.Equal(t, protocol.PlayerJoined{Name: "o"}, ann.expect())
}

func TestConsoleCommands(t *testing.T) {
	out := &syncBuffer{}
	srv, _ := startTestServer(t, Options{Console: out})

	srv.Command("help")
	srv.Command("start")
	srv.Command("bogus")
	srv.Command("status")
	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "Commands:") &&
			strings.Contains(s, "No players connected.") &&
			strings.Contains(s, `Unknown command "bogus"`) &&
			strings.Contains(s, "Phase: accepting, 0 client(s)")
	}, waitFor, 5*time.Millisecond)

	srv.Command("q")
	select {
	case <-srv.Done():
	case <-time.After(waitFor):
		t.Fatal("relay did not stop on q")
	}
	assert.Equal(t, "shutting_down", srv.Snapshot().Phase)
}

func TestRunConsole(t *testing.T) {
	out := &syncBuffer{}
	srv, _ := startTestServer(t, Options{Console: out})

	srv.RunConsole(bytes.NewBufferString("h\nshutdown\n"))
	select {
	case <-srv.Done():
	case <-time.After(waitFor):
		t.Fatal("relay did not stop")
	}
	assert.Contains(t, out.String(), "Commands:")
}

func TestHooksReceiveGameTraffic(t *testing.T) {
	h := &hooks{}
	srv, addr := startTestServer(t, Options{Actions: h, Recorder: h, Feed: h})
	ann, bob, deck := startTwo(t, srv, addr)

	ann.send(protocol.ChatMessage{Text: "gl"})
	bob.expect()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.starts) == 1 && len(h.actions) == 1 && len(h.feed) == 1
	}, waitFor, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.starts[0], 2)
	assert.Equal(t, deck, h.decks[0])
	assert.Equal(t, "chat-message", h.actions[0].ActionType)
	assert.Equal(t, "chat-message:'gl'", h.feed[0])
}

func TestCheckFinishedRecordsPlacements(t *testing.T) {
	h := &hooks{}
	srv := NewServer(Options{Recorder: h, Logger: quietLogger(), Console: io.Discard})
	c := models.Card{Suit: models.Clubs, Value: 4}
	srv.table = game.NewTable([][]models.Card{{}, {c}, {c}}, []string{"ann", "bob", "cat"}, -1)

	srv.checkFinished()
	require.Len(t, srv.placements, 1)
	assert.Equal(t, game.Placement{Seat: 0, Name: "ann", Rank: 1}, srv.placements[0])
	assert.False(t, srv.gameOver)

	srv.table.Players[2].FaceDown.Cards = nil
	srv.checkFinished()
	assert.True(t, srv.gameOver)
	assert.Equal(t, []game.Placement{
		{Seat: 0, Name: "ann", Rank: 1},
		{Seat: 2, Name: "cat", Rank: 2},
		{Seat: 1, Name: "bob", Rank: 3},
	}, srv.placements)

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.placements) == 1
	}, waitFor, 5*time.Millisecond)
}
