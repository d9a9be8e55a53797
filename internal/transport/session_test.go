package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeHandshake(t *testing.T, dialer, acceptor hello) (*secureConn, *secureConn, error, error) {
	t.Helper()

	client, server := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		sc  *secureConn
		err error
	}
	dialCh := make(chan result, 1)
	acceptCh := make(chan result, 1)

	go func() {
		sc, err := handshake(ctx, client, dialer, true)
		dialCh <- result{sc, err}
	}()
	go func() {
		sc, err := handshake(ctx, server, acceptor, false)
		acceptCh <- result{sc, err}
	}()

	d := <-dialCh
	a := <-acceptCh
	return d.sc, a.sc, d.err, a.err
}

func TestHandshake_DerivesMatchingSessions(t *testing.T) {
	dialer := hello{Token: ServiceToken, DeviceID: "phone", DeviceName: "Phone", Channel: channelControl}
	acceptor := hello{Token: ServiceToken, DeviceID: "desktop", DeviceName: "Desktop", Channel: channelControl}

	dsc, asc, derr, aerr := pipeHandshake(t, dialer, acceptor)
	require.NoError(t, derr)
	require.NoError(t, aerr)
	defer dsc.Close()
	defer asc.Close()

	assert.Equal(t, "desktop", dsc.peer.DeviceID)
	assert.Equal(t, "phone", asc.peer.DeviceID)

	// Frames sealed on one end must open on the other.
	done := make(chan []byte, 1)
	go func() {
		p, err := asc.ReadFrame()
		require.NoError(t, err)
		done <- p
	}()
	require.NoError(t, dsc.WriteFrame([]byte("sealed payload")))
	assert.Equal(t, []byte("sealed payload"), <-done)
}

func TestHandshake_TokenMismatch(t *testing.T) {
	dialer := hello{Token: "other-service", DeviceID: "phone", Channel: channelControl}
	acceptor := hello{Token: ServiceToken, DeviceID: "desktop", Channel: channelControl}

	_, _, derr, aerr := pipeHandshake(t, dialer, acceptor)
	require.ErrorIs(t, aerr, ErrTokenMismatch)
	require.Error(t, derr)
}

func TestHandshake_VersionMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// Forge a hello with a future version.
		raw := []byte(`{"ver":99,"tok":"` + ServiceToken + `","did":"x","pub":"","chn":"control"}`)
		_ = writeFrame(client, raw)
	}()

	_, err := handshake(ctx, server, hello{Token: ServiceToken, DeviceID: "desktop", Channel: channelControl}, false)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSecureConn_RejectsTamperedFrame(t *testing.T) {
	dialer := hello{Token: ServiceToken, DeviceID: "phone", Channel: channelControl}
	acceptor := hello{Token: ServiceToken, DeviceID: "desktop", Channel: channelControl}

	dsc, asc, derr, aerr := pipeHandshake(t, dialer, acceptor)
	require.NoError(t, derr)
	require.NoError(t, aerr)
	defer dsc.Close()
	defer asc.Close()

	// Write a raw frame that was never sealed; Open must fail.
	errCh := make(chan error, 1)
	go func() {
		_, err := asc.ReadFrame()
		errCh <- err
	}()
	require.NoError(t, writeFrame(dsc.conn, make([]byte, 40)))
	require.Error(t, <-errCh)
}
