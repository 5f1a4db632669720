// Package session owns the realtime connection to the PC peer.
package session

// State is the connection lifecycle state.
type State int

const (
	// Disconnected means no connection exists.
	Disconnected State = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means the transport is live.
	Connected
	// Error is published after a fault, immediately followed by Disconnected.
	Error
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}
