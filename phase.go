package chatgate

// Phase is a session's position in its connection lifecycle. Exactly one
// phase holds at any instant.
type Phase uint8

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseAwaitingLogin
	PhaseConnected
)

// String returns the wire representation of the phase used in status
// responses and logs.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingLogin:
		return "awaiting_login"
	case PhaseConnected:
		return "connected"
	default:
		return "unknown"
	}
}
