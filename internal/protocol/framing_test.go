package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"command":{"id":1,"type":"Ping"}}`)

	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadFrameMultiple(t *testing.T) {
	var buf bytes.Buffer
	first := []byte(`{"a":1}`)
	second := []byte(`{"b":2}`)

	require.NoError(t, WriteFrame(&buf, first))
	require.NoError(t, WriteFrame(&buf, second))

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = ReadFrame(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, 1<<30)
	buf.Write(prefix)

	_, err := ReadFrame(&buf, 1024)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 4))

	_, err := ReadFrame(&buf, 1024)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, 100)
	buf.Write(prefix)
	buf.Write([]byte("short"))

	_, err := ReadFrame(&buf, 1024)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFrameEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFrame(&buf, nil), ErrMalformedFrame)
}
