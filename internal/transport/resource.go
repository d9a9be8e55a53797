package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	// LargePayloadThreshold is the encoded size above which payloads must
	// travel out-of-band as a named resource instead of inline.
	LargePayloadThreshold = 100_000

	resourceChunkSize = 32 * 1024
	resourceAckWait   = 30 * time.Second
)

// SendLarge transfers data out-of-band as a discrete named resource so it
// doesn't block or fragment the inline message channel. The payload is
// staged in a temporary file that is removed on completion, success or
// failure.
func (t *Transport) SendLarge(data []byte) error {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()
	if peer == nil {
		return ErrNotConnected
	}

	name := uuid.NewString()
	size := int64(len(data))

	tmpDir := t.cfg.TempDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	tmp, err := os.CreateTemp(tmpDir, "vitalsync-xfer-*")
	if err != nil {
		return fmt.Errorf("stage resource: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("stage resource: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage resource: %w", err)
	}

	t.emit(ResourceStarted{Name: name, Size: size})
	slog.Info("transport resource send", "name", name, "size", humanize.Bytes(uint64(size)), "peer", peer.Name)

	err = t.streamResource(peer.Addr, name, size, tmpPath)
	t.emit(ResourceFinished{Name: name, Err: err})
	if err != nil {
		return fmt.Errorf("send resource %s: %w", name, err)
	}
	return nil
}

func (t *Transport) streamResource(addr, name string, size int64, path string) error {
	local := t.localHello(channelResource)
	local.ResourceName = name
	local.ResourceSize = size

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	sc, err := dialSession(ctx, addr, local)
	if err != nil {
		return err
	}
	defer sc.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staged resource: %w", err)
	}
	defer f.Close()

	buf := make([]byte, resourceChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := sc.WriteFrame(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read staged resource: %w", err)
		}
	}

	// Empty frame terminates the stream; the receiver acks the assembled
	// payload before we report success.
	if err := sc.WriteFrame(nil); err != nil {
		return err
	}

	_ = sc.SetReadDeadline(time.Now().Add(resourceAckWait))
	ack, err := sc.ReadFrame()
	if err != nil {
		return fmt.Errorf("await resource ack: %w", err)
	}
	if string(ack) != "ok" {
		return fmt.Errorf("resource rejected: %s", ack)
	}
	return nil
}

// receiveResource assembles an inbound out-of-band transfer and hands the
// payload to the owner through the same DataReceived path as inline sends.
func (t *Transport) receiveResource(sc *secureConn) {
	defer sc.Close()

	name := sc.peer.ResourceName
	size := sc.peer.ResourceSize
	t.emit(ResourceStarted{Name: name, Size: size, Inbound: true})
	slog.Info("transport resource recv", "name", name, "size", humanize.Bytes(uint64(size)), "peer", sc.peer.DeviceName)

	var buf bytes.Buffer
	var err error
	for {
		var chunk []byte
		chunk, err = sc.ReadFrame()
		if err != nil {
			break
		}
		if len(chunk) == 0 {
			break
		}
		buf.Write(chunk)
		if int64(buf.Len()) > size {
			err = fmt.Errorf("resource overflow: got %d want %d", buf.Len(), size)
			break
		}
	}
	if err == nil && int64(buf.Len()) != size {
		err = fmt.Errorf("resource truncated: got %d want %d", buf.Len(), size)
	}

	t.emit(ResourceFinished{Name: name, Err: err, Inbound: true})
	if err != nil {
		slog.Warn("transport resource recv failed", "name", name, "error", err)
		return
	}

	if werr := sc.WriteFrame([]byte("ok")); werr != nil {
		slog.Warn("transport resource ack", "name", name, "error", werr)
	}
	t.emit(DataReceived{Data: buf.Bytes()})
}
