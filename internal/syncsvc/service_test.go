package syncsvc

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/syncmsg"
	"github.com/vitalsync/vitalsync/internal/transport"
)

type fakeTransport struct {
	events chan transport.Event

	mu        sync.Mutex
	sent      [][]byte
	sentLarge [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 64)}
}

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }
func (f *fakeTransport) StartAdvertising() error        { return nil }
func (f *fakeTransport) StopAdvertising()               {}
func (f *fakeTransport) StartBrowsing(context.Context) error {
	return nil
}
func (f *fakeTransport) StopBrowsing() {}
func (f *fakeTransport) Connect(context.Context, transport.Peer) error {
	f.events <- transport.StateChanged{State: transport.StateConnected}
	return nil
}
func (f *fakeTransport) Disconnect() {
	f.events <- transport.StateChanged{State: transport.StateDisconnected}
}
func (f *fakeTransport) Peers() []transport.Peer { return nil }
func (f *fakeTransport) Close()                  {}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, bytes.Clone(data))
	return nil
}

func (f *fakeTransport) SendLarge(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentLarge = append(f.sentLarge, bytes.Clone(data))
	return nil
}

func (f *fakeTransport) counts() (inline, large int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), len(f.sentLarge)
}

func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func startService(t *testing.T, cfg Config) (*Service, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	svc := New(tr, cfg)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, tr
}

// progressWithEncodedSize builds a message whose JSON-encoded envelope is
// exactly target bytes, by padding the progress message string.
func progressWithEncodedSize(t *testing.T, target int) *syncmsg.Message {
	t.Helper()
	msg := syncmsg.NewSyncProgress(syncmsg.SyncProgressInfo{Message: "x"})
	base, err := syncmsg.Marshal(msg, syncmsg.EncodingJSON)
	require.NoError(t, err)
	// Growing the one-byte message string by N grows the envelope by N.
	pad := target - len(base) + 1
	require.Positive(t, pad)

	msg = &syncmsg.Message{
		Id:   msg.Id,
		Type: syncmsg.MsgSyncProgress,
		Data: syncmsg.SyncProgress{Info: syncmsg.SyncProgressInfo{Message: strings.Repeat("a", pad)}},
	}
	data, err := syncmsg.Marshal(msg, syncmsg.EncodingJSON)
	require.NoError(t, err)
	require.Equal(t, target, len(data))
	return msg
}

func TestService_SendRoutesByThreshold(t *testing.T) {
	svc, tr := startService(t, Config{Role: transport.RoleSource, Encoding: syncmsg.EncodingJSON})

	below := progressWithEncodedSize(t, transport.LargePayloadThreshold-1)
	require.NoError(t, svc.Send(below))
	inline, large := tr.counts()
	assert.Equal(t, 1, inline)
	assert.Equal(t, 0, large)

	above := progressWithEncodedSize(t, transport.LargePayloadThreshold+1)
	require.NoError(t, svc.Send(above))
	inline, large = tr.counts()
	assert.Equal(t, 1, inline)
	assert.Equal(t, 1, large)
}

func TestService_SessionDropClearsSyncing(t *testing.T) {
	svc, tr := startService(t, Config{Role: transport.RoleSink, Encoding: syncmsg.EncodingJSON})

	tr.events <- transport.StateChanged{State: transport.StateConnected}
	require.Eventually(t, func() bool {
		return svc.ConnectionState() == transport.StateConnected
	}, time.Second, 5*time.Millisecond)

	svc.SetSyncing(true)
	require.True(t, svc.IsSyncing())

	tr.events <- transport.StateChanged{State: transport.StateDisconnected, Err: assert.AnError}
	require.Eventually(t, func() bool {
		return svc.ConnectionState() == transport.StateDisconnected && !svc.IsSyncing()
	}, time.Second, 5*time.Millisecond)
	assert.Error(t, svc.LastError())
}

func TestService_DecodeFailureIsRecoverable(t *testing.T) {
	var got []*syncmsg.Message
	var mu sync.Mutex

	svc, tr := startService(t, Config{Role: transport.RoleSink, Encoding: syncmsg.EncodingJSON})
	svc.OnMessage(func(msg *syncmsg.Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	tr.events <- transport.StateChanged{State: transport.StateConnected}
	tr.events <- transport.DataReceived{Data: []byte("not a valid envelope")}

	require.Eventually(t, func() bool {
		return svc.LastError() != nil
	}, time.Second, 5*time.Millisecond)
	// Session survives the bad frame.
	assert.Equal(t, transport.StateConnected, svc.ConnectionState())

	valid, err := syncmsg.Marshal(syncmsg.NewRequestAllData(), syncmsg.EncodingJSON)
	require.NoError(t, err)
	tr.events <- transport.DataReceived{Data: valid}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Type == syncmsg.MsgRequestAllData
	}, time.Second, 5*time.Millisecond)
}

func TestService_AnswersPingWithPong(t *testing.T) {
	svc, tr := startService(t, Config{Role: transport.RoleSource, Encoding: syncmsg.EncodingJSON})
	svc.OnMessage(func(msg *syncmsg.Message) {
		t.Errorf("ping must not reach the application handler, got %s", msg.Type)
	})

	ping, err := syncmsg.Marshal(syncmsg.NewPing(), syncmsg.EncodingJSON)
	require.NoError(t, err)
	tr.events <- transport.DataReceived{Data: ping}

	require.Eventually(t, func() bool {
		data := tr.lastSent()
		if data == nil {
			return false
		}
		msg, _, err := syncmsg.Unmarshal(data)
		return err == nil && msg.Type == syncmsg.MsgPong
	}, time.Second, 5*time.Millisecond)
}

type countingGuard struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (g *countingGuard) Acquire(string) (func(), error) {
	g.mu.Lock()
	g.acquired++
	g.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.released++
			g.mu.Unlock()
		})
	}, nil
}

func (g *countingGuard) snapshot() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.acquired, g.released
}

func TestService_GrantExpiryReleasesGuardButNotSync(t *testing.T) {
	guard := &countingGuard{}
	svc, _ := startService(t, Config{
		Role:        transport.RoleSink,
		Encoding:    syncmsg.EncodingJSON,
		IdleGuard:   guard,
		GrantPeriod: 20 * time.Millisecond,
	})

	svc.SetSyncing(true)
	require.Eventually(t, func() bool {
		_, released := guard.snapshot()
		return released == 1
	}, time.Second, 5*time.Millisecond)

	// Expiry does not cancel the sync itself.
	assert.True(t, svc.IsSyncing())

	svc.SetSyncing(false)
	acquired, released := guard.snapshot()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
}

func TestService_DisconnectClearsSyncing(t *testing.T) {
	svc, _ := startService(t, Config{Role: transport.RoleSink, Encoding: syncmsg.EncodingJSON})

	svc.SetSyncing(true)
	svc.Disconnect()
	assert.False(t, svc.IsSyncing())
	require.Eventually(t, func() bool {
		return svc.ConnectionState() == transport.StateDisconnected
	}, time.Second, 5*time.Millisecond)
}
