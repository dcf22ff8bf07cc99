// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the coordinator's handlers. These
// provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Session cookie was invalid or expired and a new one could not be issued.
)
