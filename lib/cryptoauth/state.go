package cryptoauth

// State is the handshake progress of a session. States only move forward
// for the lifetime of a session, except for the timeout rewind to Init.
type State int

const (
	// StateInit is a fresh session with no handshake traffic.
	StateInit State = iota
	// StateHandshake1 means a hello has been sent.
	StateHandshake1
	// StateHandshake2 means the peer's hello has been received.
	StateHandshake2
	// StateHandshake3 means a key packet has been sent; the next inbound
	// packet confirms the session.
	StateHandshake3
	// StateEstablished means run packets flow in both directions.
	StateEstablished
)

// StateString names a state for log lines.
func StateString(s State) string {
	switch s {
	case StateInit:
		return "INIT"
	case StateHandshake1:
		return "HANDSHAKE1"
	case StateHandshake2:
		return "HANDSHAKE2"
	case StateHandshake3:
		return "HANDSHAKE3"
	case StateEstablished:
		return "ESTABLISHED"
	}
	return "INVALID"
}

func (s State) String() string { return StateString(s) }
