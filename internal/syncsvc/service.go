package syncsvc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/internal/syncmsg"
	"github.com/vitalsync/vitalsync/internal/transport"
)

const (
	// DefaultPingInterval is the sink's keep-alive cadence on an idle session.
	DefaultPingInterval = 60 * time.Second

	// DefaultGrantPeriod is how long the extended-execution grant lasts
	// before the idle protection is released out from under a sync.
	DefaultGrantPeriod = 8 * time.Minute
)

// PeerTransport is the slice of transport behavior the service owns.
// *transport.Transport satisfies it; tests substitute fakes.
type PeerTransport interface {
	Events() <-chan transport.Event
	StartAdvertising() error
	StopAdvertising()
	StartBrowsing(ctx context.Context) error
	StopBrowsing()
	Connect(ctx context.Context, peer transport.Peer) error
	Disconnect()
	Send(data []byte) error
	SendLarge(data []byte) error
	Peers() []transport.Peer
	Close()
}

// Config for a Service instance.
type Config struct {
	Role         transport.Role
	Encoding     syncmsg.Encoding
	IdleGuard    IdleGuard
	PingInterval time.Duration
	GrantPeriod  time.Duration
}

// MessageHandler fires once per fully-decoded inbound message. Handlers run
// on the service's event loop goroutine; long work must be spawned off it.
type MessageHandler func(msg *syncmsg.Message)

// StateHandler observes connection state transitions.
type StateHandler func(state transport.State)

// Service owns one PeerTransport session and maps protocol messages to
// application events. All of its mutable state is applied on the single
// run-loop goroutine; accessors take a read lock.
type Service struct {
	cfg Config
	tr  PeerTransport

	mu        sync.RWMutex
	state     transport.State
	isSyncing bool
	lastErr   error

	guardRelease func()
	grantTimer   *time.Timer

	onMessage MessageHandler
	onState   StateHandler

	stop   context.CancelFunc
	doneCh chan struct{}
}

func New(tr PeerTransport, cfg Config) *Service {
	if cfg.IdleGuard == nil {
		cfg.IdleGuard = LogIdleGuard{}
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.GrantPeriod <= 0 {
		cfg.GrantPeriod = DefaultGrantPeriod
	}
	return &Service{
		cfg:   cfg,
		tr:    tr,
		state: transport.StateDisconnected,
	}
}

// OnMessage registers the inbound message handler. Register before Start.
func (s *Service) OnMessage(h MessageHandler) {
	s.onMessage = h
}

// OnStateChange registers the state observer. Register before Start.
func (s *Service) OnStateChange(h StateHandler) {
	s.onState = h
}

// Start spawns the event loop. The service runs until ctx is cancelled or
// Stop is called.
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.doneCh = make(chan struct{})
	go s.run(runCtx)
}

// Stop shuts the event loop down and closes the transport.
func (s *Service) Stop() {
	if s.stop != nil {
		s.stop()
		<-s.doneCh
	}
	s.tr.Close()
}

// ConnectionState returns the observed session state.
func (s *Service) ConnectionState() transport.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsSyncing reports whether a sync is in flight.
func (s *Service) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// LastError returns the most recent non-fatal transport or decode error.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Peers returns the transport's discovered peer list.
func (s *Service) Peers() []transport.Peer {
	return s.tr.Peers()
}

// Connect establishes the session with peer (sink role).
func (s *Service) Connect(ctx context.Context, peer transport.Peer) error {
	err := s.tr.Connect(ctx, peer)
	if err != nil {
		s.recordError(err)
	}
	return err
}

// Disconnect tears the session down and clears isSyncing: disconnecting is
// the only way to abort an in-flight sync.
func (s *Service) Disconnect() {
	s.SetSyncing(false)
	s.tr.Disconnect()
}

// StartAdvertising begins serving invitations (source role). Failures are
// recorded as the last error and returned; the caller can retry.
func (s *Service) StartAdvertising() error {
	err := s.tr.StartAdvertising()
	if err != nil {
		s.recordError(err)
	}
	return err
}

// StopAdvertising stops serving invitations.
func (s *Service) StopAdvertising() {
	s.tr.StopAdvertising()
}

// StartBrowsing begins peer discovery (sink role). Failures are recorded as
// the last error and returned; the caller can retry.
func (s *Service) StartBrowsing(ctx context.Context) error {
	err := s.tr.StartBrowsing(ctx)
	if err != nil {
		s.recordError(err)
	}
	return err
}

// StopBrowsing stops peer discovery.
func (s *Service) StopBrowsing() {
	s.tr.StopBrowsing()
}

// Send encodes msg and routes it through the inline channel or, above the
// size threshold, the out-of-band resource transfer. Callers never choose
// the transfer mode themselves.
func (s *Service) Send(msg *syncmsg.Message) error {
	data, err := syncmsg.Marshal(msg, s.cfg.Encoding)
	if err != nil {
		return err
	}

	if len(data) > transport.LargePayloadThreshold {
		slog.Info("sync send large", "type", msg.Type, "size", len(data))
		return s.tr.SendLarge(data)
	}
	return s.tr.Send(data)
}

// SetSyncing flips the sync-in-flight flag. While true the idle guard is
// held; the grant expiring early is logged but does not cancel the sync.
func (s *Service) SetSyncing(syncing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSyncingLocked(syncing)
}

func (s *Service) setSyncingLocked(syncing bool) {
	if s.isSyncing == syncing {
		return
	}
	s.isSyncing = syncing

	if syncing {
		release, err := s.cfg.IdleGuard.Acquire("health data sync")
		if err != nil {
			slog.Warn("sync idle guard unavailable", "error", err)
			return
		}
		s.guardRelease = release
		s.grantTimer = time.AfterFunc(s.cfg.GrantPeriod, s.onGrantExpired)
		return
	}

	if s.grantTimer != nil {
		s.grantTimer.Stop()
		s.grantTimer = nil
	}
	if s.guardRelease != nil {
		s.guardRelease()
		s.guardRelease = nil
	}
}

// onGrantExpired releases the protection but leaves the sync running:
// background survival is simply no longer guaranteed.
func (s *Service) onGrantExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isSyncing {
		return
	}
	slog.Warn("sync execution grant expired while still syncing")
	if s.guardRelease != nil {
		s.guardRelease()
		s.guardRelease = nil
	}
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ping.C:
			if s.cfg.Role == transport.RoleSink && s.ConnectionState() == transport.StateConnected {
				if err := s.Send(syncmsg.NewPing()); err != nil {
					s.recordError(err)
				}
			}

		case ev, ok := <-s.tr.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Service) handleEvent(ev transport.Event) {
	switch e := ev.(type) {
	case transport.StateChanged:
		s.mu.Lock()
		s.state = e.State
		if e.Err != nil {
			s.lastErr = e.Err
		}
		// A session that drops mid-sync forces the flag off.
		if e.State == transport.StateDisconnected {
			s.setSyncingLocked(false)
		}
		s.mu.Unlock()
		slog.Info("sync state", "state", e.State)
		if s.onState != nil {
			s.onState(e.State)
		}

	case transport.DataReceived:
		msg, _, err := syncmsg.Unmarshal(e.Data)
		if err != nil {
			// Decode failures are local and recoverable: drop the message,
			// keep the session.
			slog.Warn("sync decode", "error", err)
			s.recordError(err)
			return
		}
		s.dispatch(msg)

	case transport.PeerDiscovered:
		slog.Info("sync peer discovered", "peer", e.Peer.Name, "addr", e.Peer.Addr)

	case transport.PeerLost:
		slog.Info("sync peer lost", "peer", e.Peer.Name)

	case transport.ResourceStarted:
		slog.Info("sync transfer started", "name", e.Name, "size", e.Size, "inbound", e.Inbound)

	case transport.ResourceFinished:
		if e.Err != nil {
			s.recordError(e.Err)
		}
		slog.Info("sync transfer finished", "name", e.Name, "inbound", e.Inbound, "error", e.Err)
	}
}

func (s *Service) dispatch(msg *syncmsg.Message) {
	// Keep-alive is answered here; everything else is the application's.
	if msg.Type == syncmsg.MsgPing {
		if err := s.Send(syncmsg.NewPong()); err != nil {
			s.recordError(err)
		}
		return
	}

	if s.onMessage != nil {
		s.onMessage(msg)
	}
}
