package transport

// State is the lifecycle state of the single logical peer session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Peer is a device discovered on the local network.
type Peer struct {
	ID   string
	Name string
	Addr string
}

// Event is delivered on the transport's event stream. All events originate
// from transport goroutines; consumers serialize them on their own loop.
type Event interface{ event() }

// PeerDiscovered fires when browsing finds a peer with a matching token.
type PeerDiscovered struct {
	Peer Peer
}

// PeerLost fires when a previously discovered peer expires.
type PeerLost struct {
	Peer Peer
}

// StateChanged fires on every session state transition. Err is set when the
// transition was caused by a failure (session drop, dial error).
type StateChanged struct {
	State State
	Peer  *Peer
	Err   error
}

// DataReceived fires once per inbound payload, whether it arrived inline or
// as an assembled resource transfer.
type DataReceived struct {
	Data []byte
}

// ResourceStarted fires when an out-of-band transfer begins.
type ResourceStarted struct {
	Name    string
	Size    int64
	Inbound bool
}

// ResourceFinished fires when an out-of-band transfer ends, successfully
// or not.
type ResourceFinished struct {
	Name    string
	Err     error
	Inbound bool
}

func (PeerDiscovered) event()   {}
func (PeerLost) event()         {}
func (StateChanged) event()     {}
func (DataReceived) event()     {}
func (ResourceStarted) event()  {}
func (ResourceFinished) event() {}
