package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// Role selects the transport's behavior at construction time. Both roles
// share one implementation; only discovery direction and auto-accept differ.
type Role int

const (
	// RoleSource advertises and auto-accepts matching invitations.
	RoleSource Role = iota
	// RoleSink browses and auto-connects to the first discovered peer.
	RoleSink
)

func (r Role) String() string {
	if r == RoleSink {
		return "sink"
	}
	return "source"
}

// Config for a Transport instance.
type Config struct {
	Role       Role
	DeviceID   string
	DeviceName string

	// Port to listen on. Sources advertise this port; sinks always listen
	// on an ephemeral port for inbound resource channels.
	Port int

	// ConnectTimeout bounds one connection invitation. Defaults to 30s.
	ConnectTimeout time.Duration

	// TempDir holds in-flight resource payloads. Defaults to os.TempDir().
	TempDir string
}

// Transport owns local peer discovery and at most one encrypted logical
// session. All state mutation is guarded by mu; consumers observe via the
// event stream and serialize on their own loop.
type Transport struct {
	cfg Config

	mu      sync.Mutex
	state   State
	session *secureConn
	peer    *Peer
	peers   []Peer

	listener     net.Listener
	listenerPort int
	advertiser   *zeroconf.Server
	browseCancel context.CancelFunc

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func New(cfg Config) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Transport{
		cfg:    cfg,
		state:  StateDisconnected,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// Events is the transport's event stream. The owner must drain it.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// State returns the current session state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Peers returns all peers discovered so far.
func (t *Transport) Peers() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, len(t.peers))
	copy(out, t.peers)
	return out
}

// StartAdvertising begins listening and registers the service on mDNS.
// Source role only. Failures are returned for the caller to surface; they
// are retryable, not fatal.
func (t *Transport) StartAdvertising() error {
	if t.cfg.Role != RoleSource {
		return fmt.Errorf("transport: advertising requires source role")
	}
	if err := t.ensureListener(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advertiser != nil {
		return nil
	}

	server, err := advertise(t.cfg.DeviceID, t.cfg.DeviceName, t.listenerPort)
	if err != nil {
		return err
	}
	t.advertiser = server
	slog.Info("transport advertising", "service", ServiceName, "port", t.listenerPort)
	return nil
}

// StopAdvertising unregisters the mDNS service. The listener stays up so an
// established session survives.
func (t *Transport) StopAdvertising() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advertiser != nil {
		t.advertiser.Shutdown()
		t.advertiser = nil
		slog.Info("transport advertising stopped")
	}
}

// StartBrowsing begins mDNS browsing. Sink role only. The first peer
// discovered while disconnected is auto-connected; later peers are only
// tracked.
func (t *Transport) StartBrowsing(ctx context.Context) error {
	if t.cfg.Role != RoleSink {
		return fmt.Errorf("transport: browsing requires sink role")
	}
	if err := t.ensureListener(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.browseCancel != nil {
		t.mu.Unlock()
		return nil
	}
	browseCtx, cancel := context.WithCancel(ctx)
	t.browseCancel = cancel
	t.mu.Unlock()

	found := make(chan Peer, 8)
	if err := browse(browseCtx, t.cfg.DeviceID, found); err != nil {
		t.mu.Lock()
		t.browseCancel = nil
		t.mu.Unlock()
		cancel()
		return err
	}

	go t.consumePeers(browseCtx, found)
	slog.Info("transport browsing", "service", ServiceName)
	return nil
}

// StopBrowsing cancels mDNS browsing.
func (t *Transport) StopBrowsing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browseCancel != nil {
		t.browseCancel()
		t.browseCancel = nil
		slog.Info("transport browsing stopped")
	}
}

func (t *Transport) consumePeers(ctx context.Context, found <-chan Peer) {
	for {
		select {
		case <-ctx.Done():
			return
		case peer := <-found:
			t.mu.Lock()
			known := false
			for _, p := range t.peers {
				if p.ID == peer.ID {
					known = true
					break
				}
			}
			if !known {
				t.peers = append(t.peers, peer)
			}
			shouldConnect := !known && t.state == StateDisconnected
			t.mu.Unlock()

			if !known {
				t.emit(PeerDiscovered{Peer: peer})
			}
			if shouldConnect {
				go func(p Peer) {
					if err := t.Connect(ctx, p); err != nil {
						slog.Warn("transport auto-connect", "peer", p.Name, "error", err)
					}
				}(peer)
			}
		}
	}
}

// Connect dials peer and establishes the control session. Sink role only.
// The invitation is bounded by ConnectTimeout.
func (t *Transport) Connect(ctx context.Context, peer Peer) error {
	if t.cfg.Role != RoleSink {
		return fmt.Errorf("transport: connect requires sink role")
	}

	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return ErrBusy
	}
	t.state = StateConnecting
	t.mu.Unlock()
	t.emit(StateChanged{State: StateConnecting, Peer: &peer})

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	sc, err := dialSession(dialCtx, peer.Addr, t.localHello(channelControl))
	if err != nil {
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()
		t.emit(StateChanged{State: StateDisconnected, Peer: &peer, Err: err})
		return err
	}

	t.mu.Lock()
	t.session = sc
	t.peer = &peer
	t.state = StateConnected
	t.mu.Unlock()
	t.emit(StateChanged{State: StateConnected, Peer: &peer})

	slog.Info("transport connected", "peer", peer.Name, "addr", peer.Addr)
	go t.readLoop(sc)
	return nil
}

// Disconnect closes the active session, if any.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	sc := t.session
	peer := t.peer
	t.session = nil
	t.peer = nil
	changed := t.state != StateDisconnected
	t.state = StateDisconnected
	t.mu.Unlock()

	if sc != nil {
		sc.Close()
	}
	if changed {
		t.emit(StateChanged{State: StateDisconnected, Peer: peer})
	}
}

// Send transmits one inline payload over the control channel. Payloads over
// LargePayloadThreshold belong on SendLarge instead.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	sc := t.session
	t.mu.Unlock()
	if sc == nil {
		return ErrNotConnected
	}
	return sc.WriteFrame(data)
}

// Close tears everything down.
func (t *Transport) Close() {
	t.once.Do(func() {
		close(t.done)
	})
	t.StopAdvertising()
	t.StopBrowsing()
	t.Disconnect()

	t.mu.Lock()
	l := t.listener
	t.listener = nil
	t.mu.Unlock()
	if l != nil {
		l.Close()
	}
}

func (t *Transport) localHello(channel string) hello {
	return hello{
		Token:        ServiceToken,
		DeviceID:     t.cfg.DeviceID,
		DeviceName:   t.cfg.DeviceName,
		Channel:      channel,
		ResourcePort: t.listenerPort,
	}
}

func (t *Transport) ensureListener() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil
	}

	port := 0
	if t.cfg.Role == RoleSource {
		port = t.cfg.Port
	}
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	t.listener = l
	t.listenerPort = l.Addr().(*net.TCPAddr).Port

	go t.acceptLoop(l)
	return nil
}

func (t *Transport) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Warn("transport accept", "error", err)
			}
			return
		}
		go t.handleInbound(conn)
	}
}

// handleInbound auto-accepts any invitation with a matching service token.
// Trust model is the local network: token plus session encryption, nothing
// stronger.
func (t *Transport) handleInbound(conn net.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	sc, err := acceptSession(ctx, conn, t.localHello(channelControl))
	if err != nil {
		slog.Warn("transport inbound handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	switch sc.peer.Channel {
	case channelControl:
		t.acceptControl(conn, sc)
	case channelResource:
		t.receiveResource(sc)
	default:
		slog.Warn("transport inbound unknown channel", "channel", sc.peer.Channel)
		sc.Close()
	}
}

func (t *Transport) acceptControl(conn net.Conn, sc *secureConn) {
	if t.cfg.Role != RoleSource {
		sc.Close()
		return
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	peer := Peer{
		ID:   sc.peer.DeviceID,
		Name: sc.peer.DeviceName,
		Addr: net.JoinHostPort(host, strconv.Itoa(sc.peer.ResourcePort)),
	}

	t.mu.Lock()
	if t.session != nil {
		t.mu.Unlock()
		slog.Warn("transport refusing second session", "peer", peer.Name)
		sc.Close()
		return
	}
	t.session = sc
	t.peer = &peer
	// Source has no connecting state of its own: advertising straight to
	// connected on acceptance.
	t.state = StateConnected
	t.mu.Unlock()
	t.emit(StateChanged{State: StateConnected, Peer: &peer})

	slog.Info("transport accepted session", "peer", peer.Name, "addr", peer.Addr)
	go t.readLoop(sc)
}

func (t *Transport) readLoop(sc *secureConn) {
	for {
		payload, err := sc.ReadFrame()
		if err != nil {
			t.dropSession(sc, err)
			return
		}
		t.emit(DataReceived{Data: payload})
	}
}

// dropSession returns the connection to disconnected when the session dies
// underneath us.
func (t *Transport) dropSession(sc *secureConn, err error) {
	t.mu.Lock()
	if t.session != sc {
		t.mu.Unlock()
		return
	}
	peer := t.peer
	t.session = nil
	t.peer = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	sc.Close()
	t.emit(StateChanged{State: StateDisconnected, Peer: peer, Err: err})
	if peer != nil {
		slog.Warn("transport session dropped", "peer", peer.Name, "error", err)
		t.emit(PeerLost{Peer: *peer})
	}
}

func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}
