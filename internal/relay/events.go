// internal/relay/events.go
package relay

import (
	"net"

	"github.com/jason-s-yu/mongoose/internal/protocol"
)

// event is anything handed to the main loop.
type event interface{}

type acceptEvent struct {
	conn net.Conn
}

type instructionEvent struct {
	clientID int
	inst     protocol.Instruction
	payload  []byte
}

type disconnectEvent struct {
	clientID int
	err      error
	desync   bool
}

type commandEvent struct {
	line string
}
