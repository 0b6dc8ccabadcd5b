package eventipc

// State is the connection lifecycle of an agent.
//
//	Disconnected -> Connecting -> Connected -> ShuttingDown -> Closed
//	Connecting -> Disconnected (retries exhausted)
//
// A serving Server reports Connected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateShuttingDown
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
