package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames are a 4-byte big-endian length prefix followed by the envelope body.
// The same framing is used on the TCP stream and inside WebSocket binary messages.
const lengthPrefixSize = 4

// DefaultMaxFrameBytes bounds a declared frame length when the caller supplies no limit.
const DefaultMaxFrameBytes = 1 << 20

var (
	// ErrMalformedFrame indicates a frame whose body could not be parsed into an envelope.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrFrameTooLarge indicates a declared frame length above the configured maximum.
	// The connection must be closed after this error.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// ReadFrame reads one length-prefixed frame from r. A declared length of zero or above
// maxBytes fails with ErrFrameTooLarge wrapped details; io errors pass through so the
// caller can distinguish a clean disconnect (io.EOF) from a protocol violation.
func ReadFrame(r io.Reader, maxBytes uint32) ([]byte, error) {
	if maxBytes == 0 {
		maxBytes = DefaultMaxFrameBytes
	}

	prefix := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix)
	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length frame", ErrMalformedFrame)
	}
	if length > maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, length, maxBytes)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes b as one length-prefixed frame to w.
func WriteFrame(w io.Writer, b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("%w: refusing to write empty frame", ErrMalformedFrame)
	}

	prefix := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint32(prefix, uint32(len(b)))

	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
