package link

// State is the link's view of the byte source.
type State int

const (
	StateDisconnected State = iota // no active source, will re-dial
	StateConnected                 // a source is active
	StateExhausted                 // the dialer can never produce another source
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
