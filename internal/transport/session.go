package transport

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// ProtocolVersion is the current session protocol version.
	ProtocolVersion = 1

	// DefaultConnectTimeout bounds dial plus handshake for one invitation.
	DefaultConnectTimeout = 30 * time.Second

	channelControl  = "control"
	channelResource = "resource"

	sessionKeySize = 32
)

var (
	// ErrTokenMismatch indicates the peer advertised a different service token.
	ErrTokenMismatch = errors.New("transport: service token mismatch")
	// ErrUnsupportedVersion indicates a session protocol version mismatch.
	ErrUnsupportedVersion = errors.New("transport: unsupported protocol version")
	// ErrNotConnected indicates no active peer session.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrBusy indicates a second control session was refused.
	ErrBusy = errors.New("transport: session already active")
)

// hello is the plaintext handshake frame exchanged before the session key
// is derived. The token gates auto-accept; the ephemeral public key feeds
// the key agreement.
type hello struct {
	Version      int    `json:"ver"`
	Token        string `json:"tok"`
	DeviceID     string `json:"did"`
	DeviceName   string `json:"dev"`
	PublicKey    []byte `json:"pub"`
	Channel      string `json:"chn"`
	ResourcePort int    `json:"rpt,omitempty"`
	ResourceName string `json:"rnm,omitempty"`
	ResourceSize int64  `json:"rsz,omitempty"`
}

// secureConn is one encrypted logical channel. Every frame after the
// handshake is sealed with the HKDF-derived AES-256-GCM session key.
type secureConn struct {
	conn net.Conn
	aead cipher.AEAD

	writeMu sync.Mutex
	peer    hello
}

func deriveSessionKey(priv *ecdh.PrivateKey, peerPublic []byte, token string) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("parse peer public key: %w", err)
	}

	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}

	kdf := hkdf.New(sha256.New, shared, nil, []byte("vitalsync-session-v1:"+token))
	key := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func newSecureConn(conn net.Conn, key []byte, peer hello) (*secureConn, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &secureConn{conn: conn, aead: aead, peer: peer}, nil
}

// WriteFrame seals payload and writes it as one frame (nonce || ciphertext).
func (s *secureConn) WriteFrame(payload []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, payload, nil)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.conn, sealed)
}

// ReadFrame reads one frame and opens it.
func (s *secureConn) ReadFrame() ([]byte, error) {
	sealed, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("transport: sealed frame too short")
	}

	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	return plaintext, nil
}

func (s *secureConn) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *secureConn) Close() error {
	return s.conn.Close()
}

// dialSession dials addr and performs the handshake as the initiating side.
func dialSession(ctx context.Context, addr string, local hello) (*secureConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sc, err := handshake(ctx, conn, local, true)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sc, nil
}

// acceptSession performs the handshake as the accepting side.
func acceptSession(ctx context.Context, conn net.Conn, local hello) (*secureConn, error) {
	sc, err := handshake(ctx, conn, local, false)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sc, nil
}

func handshake(ctx context.Context, conn net.Conn, local hello, initiator bool) (*secureConn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(DefaultConnectTimeout))
	}
	defer conn.SetDeadline(time.Time{})

	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate session key pair: %w", err)
	}
	local.Version = ProtocolVersion
	local.PublicKey = priv.PublicKey().Bytes()

	send := func() error {
		raw, err := json.Marshal(local)
		if err != nil {
			return fmt.Errorf("marshal hello: %w", err)
		}
		return writeFrame(conn, raw)
	}
	recv := func() (hello, error) {
		raw, err := readFrame(conn)
		if err != nil {
			return hello{}, fmt.Errorf("read hello: %w", err)
		}
		var h hello
		if err := json.Unmarshal(raw, &h); err != nil {
			return hello{}, fmt.Errorf("unmarshal hello: %w", err)
		}
		return h, nil
	}

	var peer hello
	if initiator {
		if err := send(); err != nil {
			return nil, err
		}
		if peer, err = recv(); err != nil {
			return nil, err
		}
	} else {
		if peer, err = recv(); err != nil {
			return nil, err
		}
		if err := validateHello(peer, local.Token); err != nil {
			return nil, err
		}
		if err := send(); err != nil {
			return nil, err
		}
	}
	if err := validateHello(peer, local.Token); err != nil {
		return nil, err
	}

	key, err := deriveSessionKey(priv, peer.PublicKey, local.Token)
	if err != nil {
		return nil, err
	}

	return newSecureConn(conn, key, peer)
}

func validateHello(h hello, token string) error {
	if h.Version != ProtocolVersion {
		return ErrUnsupportedVersion
	}
	if h.Token != token {
		return ErrTokenMismatch
	}
	return nil
}
