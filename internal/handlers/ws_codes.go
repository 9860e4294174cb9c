// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler.
const (
	BadSubprotocolError  = 3000 // Client connected with an unsupported subprotocol.
	SessionReplacedError = 3004 // The same player opened a newer connection to this game.
)
