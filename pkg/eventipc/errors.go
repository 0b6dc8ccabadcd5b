package eventipc

import "errors"

// Sentinel errors for agent lifecycle.
var (
	// ErrNotConnected indicates an operation that needs open handles was
	// called before Connect or Serve succeeded.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Connect was called on a connected client.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed indicates the agent has been shut down. Agents are not
	// reusable after Shutdown.
	ErrClosed = errors.New("agent closed")
)
