// internal/handlers/spectate.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/mongoose/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	spectateSubprotocol  = "mongoose"
	spectatorBuffer      = 64
	spectateWriteTimeout = 5 * time.Second
)

type subscriber struct {
	ch   chan []byte
	slow bool
}

// SpectatorHub fans relayed instruction payloads out to websocket
// spectators. It implements relay.FeedPublisher.
type SpectatorHub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewSpectatorHub() *SpectatorHub {
	return &SpectatorHub{subs: make(map[*subscriber]struct{})}
}

// Publish never blocks. A spectator whose buffer is full is cut off.
func (h *SpectatorHub) Publish(payload []byte) {
	msg := append([]byte(nil), payload...)
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			sub.slow = true
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// subscribe registers a new spectator. ok is false once the hub is closed.
func (h *SpectatorHub) subscribe() (sub *subscriber, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub = &subscriber{ch: make(chan []byte, spectatorBuffer)}
	h.subs[sub] = struct{}{}
	return sub, true
}

func (h *SpectatorHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Count returns the number of live spectators.
func (h *SpectatorHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every spectator and refuses new ones.
func (h *SpectatorHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// isSlow reports whether the hub dropped sub for falling behind.
func (h *SpectatorHub) isSlow(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sub.slow
}

// SpectateHandler upgrades to a read-only websocket that receives every
// instruction the relay forwards, one text message per instruction.
func SpectateHandler(logger *logrus.Logger, hub *SpectatorHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{spectateSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("spectator accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "spectator handler exited")

		if c.Subprotocol() != spectateSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the mongoose subprotocol")
			return
		}

		sub, ok := hub.subscribe()
		if !ok {
			c.Close(RelayShutdown, "server shutting down")
			return
		}
		defer hub.unsubscribe(sub)

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		err = streamFeed(c.CloseRead(r.Context()), c, sub)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)

		switch {
		case err == nil && hub.isSlow(sub):
			c.Close(SpectatorTooSlow, "spectator fell behind")
		case err == nil:
			c.Close(RelayShutdown, "server shutting down")
		case errors.Is(err, context.Canceled):
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// streamFeed writes feed messages until the subscription ends (nil error)
// or the connection fails.
func streamFeed(ctx context.Context, c *websocket.Conn, sub *subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.ch:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, spectateWriteTimeout)
			err := c.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
