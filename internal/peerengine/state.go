package peerengine

// State is a peer's lifecycle stage (§4.3.1).
type State int

const (
	StateNew State = iota
	StateConnecting
	StateRun
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnecting:
		return "CONNECTING"
	case StateRun:
		return "RUN"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes which side of the association this peer plays,
// since CONN_REQ is only handled by a server-side NEW peer and
// CONN_RSP only by a client-side CONNECTING peer (§4.3.5).
type Role int

const (
	RoleServer Role = iota
	RoleClient
)
