// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the snapshot watch.
const (
	SnapshotUnavailableError websocket.StatusCode = 3000 // The snapshot could not be read; the client should reconnect.
)
