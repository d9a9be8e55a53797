package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 64*1024),
	}
	for _, p := range payloads {
		require.NoError(t, writeFrame(&buf, p))
	}
	for _, want := range payloads {
		got, err := readFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := writeFrame(&buf, make([]byte, MaxFrameSize+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)

	// A forged oversized header must be rejected on read too.
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err = readFrame(bytes.NewReader(header))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrame_ShortRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("truncate me")))

	truncated := buf.Bytes()[:6]
	_, err := readFrame(bytes.NewReader(truncated))
	require.Error(t, err)
}
