// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the spectator feed.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client did not negotiate the "mongoose" subprotocol.
	SpectatorTooSlow    websocket.StatusCode = 3001 // Spectator could not keep up with the feed.
	RelayShutdown       websocket.StatusCode = 3002 // The API server is stopping.
)
