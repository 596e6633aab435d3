// internal/relay/console.go
package relay

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const consoleHelp = `Commands:
  start, s               deal and start the game with everyone connected
  status                 list connected clients
  quit, shutdown, q      stop the relay
  help, h                show this help`

// RunConsole feeds lines from r to the main loop until r is exhausted or
// the relay stops.
func (s *Server) RunConsole(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}
		s.Command(scanner.Text())
	}
}

func (s *Server) handleCommand(line string) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	out := s.opts.Console
	switch cmd {
	case "":
	case "start", "s":
		s.startGame()
	case "quit", "shutdown", "q":
		fmt.Fprintln(out, "Shutting down.")
		s.phase = PhaseShuttingDown
	case "help", "h":
		fmt.Fprintln(out, consoleHelp)
	case "status":
		fmt.Fprintf(out, "Phase: %s, %d client(s)\n", s.phase, len(s.order))
		for _, id := range s.order {
			c := s.clients[id]
			fmt.Fprintf(out, "  #%d seat=%d name=%q remote=%s\n", c.id, c.seat, c.name, c.conn.RemoteAddr())
		}
	default:
		fmt.Fprintf(out, "Unknown command %q. Type help for a list.\n", cmd)
	}
}
