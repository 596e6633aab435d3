// internal/relay/conn.go
package relay

import (
	"net"
	"time"

	"github.com/jason-s-yu/mongoose/internal/protocol"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
	rejectTimeout    = 2 * time.Second
)

// client is the relay's bookkeeping for one connection. Fields are owned
// by the main loop; the reader and writer goroutines only touch conn and out.
type client struct {
	id     int
	seat   int
	name   string
	props  map[string]string
	conn   net.Conn
	out    chan []byte
	joined time.Time
}

func newClient(id int, conn net.Conn, queueSize int) *client {
	return &client{
		id:     id,
		seat:   -1,
		props:  make(map[string]string),
		conn:   conn,
		out:    make(chan []byte, queueSize),
		joined: time.Now(),
	}
}

// readLoop decodes frames off the socket and hands them to the main loop.
// It exits on the first read or decode error.
func (s *Server) readLoop(c *client) {
	fr := protocol.NewFrameReader(c.conn)
	for {
		payload, err := fr.Next()
		if err != nil {
			s.post(disconnectEvent{clientID: c.id, err: err})
			return
		}
		inst, err := protocol.Decode(payload)
		if err != nil {
			s.post(disconnectEvent{clientID: c.id, err: err, desync: true})
			return
		}
		if !s.post(instructionEvent{clientID: c.id, inst: inst, payload: payload}) {
			return
		}
	}
}

// writeLoop drains the client's queue in FIFO order.
func (s *Server) writeLoop(c *client) {
	for frame := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.conn.Write(frame); err != nil {
			s.post(disconnectEvent{clientID: c.id, err: err})
			return
		}
	}
}
