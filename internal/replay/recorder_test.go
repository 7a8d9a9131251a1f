package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memorySink struct {
	mu     sync.Mutex
	chunks [][]byte
	seqs   []uint64
	fail   bool
}

func (m *memorySink) AppendReplayChunk(_ context.Context, _ string, firstSeq uint64, chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sink unavailable")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	m.chunks = append(m.chunks, buf)
	m.seqs = append(m.seqs, firstSeq)
	return nil
}

func TestAppendAssignsGaplessSequence(t *testing.T) {
	r := NewRecorder("game-1", nil, zaptest.NewLogger(t))
	defer r.Close()

	for i := 0; i < 10; i++ {
		ev, err := r.Append("GameSay", "alice", map[string]string{"message": "hi"})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, uint64(10), r.LastSeq())
	assert.Equal(t, 10, r.Len())
}

func TestReplayCursorOrderAndRestart(t *testing.T) {
	r := NewRecorder("game-1", nil, zaptest.NewLogger(t))
	defer r.Close()

	types := []string{"MoveCard", "DrawCards", "RollDie"}
	for _, typ := range types {
		_, err := r.Append(typ, "alice", nil)
		require.NoError(t, err)
	}

	cursor := r.Replay()
	var seen []string
	var lastSeq uint64
	for {
		ev, ok := cursor.Next()
		if !ok {
			break
		}
		assert.Equal(t, lastSeq+1, ev.Seq)
		lastSeq = ev.Seq
		seen = append(seen, ev.Type)
	}
	assert.Equal(t, types, seen)

	// Restartable from the beginning.
	cursor.Reset()
	ev, ok := cursor.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.Seq)

	// Independent cursors do not interfere.
	other := r.Replay()
	ev, ok = other.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestCursorSeesLaterAppends(t *testing.T) {
	r := NewRecorder("game-1", nil, zaptest.NewLogger(t))
	defer r.Close()

	cursor := r.Replay()
	_, ok := cursor.Next()
	assert.False(t, ok)

	_, err := r.Append("GameSay", "bob", nil)
	require.NoError(t, err)

	ev, ok := cursor.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestDurableFlush(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder("game-1", sink, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		_, err := r.Append("MoveCard", "alice", map[string]int{"i": i})
		require.NoError(t, err)
	}
	r.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.chunks)
	assert.Equal(t, uint64(1), sink.seqs[0])
}

func TestSinkFailureDoesNotAbort(t *testing.T) {
	sink := &memorySink{fail: true}
	r := NewRecorder("game-1", sink, zaptest.NewLogger(t))

	// Appends keep succeeding while the sink is down.
	for i := 0; i < 3; i++ {
		_, err := r.Append("RollDie", "bob", nil)
		require.NoError(t, err)
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, r.Len())
	r.Close()
}

func TestAppendAfterCloseFails(t *testing.T) {
	r := NewRecorder("game-1", nil, zaptest.NewLogger(t))
	r.Close()

	_, err := r.Append("GameSay", "alice", nil)
	assert.Error(t, err)

	// Log remains readable.
	_, ok := r.Replay().Next()
	assert.False(t, ok)
}
