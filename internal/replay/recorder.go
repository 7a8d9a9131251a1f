// Package replay records the canonical, unfiltered event log of one game.
// Sequence numbers are strictly increasing and gapless per game; the log is
// kept in memory for live catch-up and flushed in chunks to a durable sink
// on a best-effort basis.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one canonical replay entry.
type Event struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Sink persists serialized replay chunks. Implementations may be slow or
// fail; the recorder never lets that stall or abort live play.
type Sink interface {
	AppendReplayChunk(ctx context.Context, gameID string, firstSeq uint64, chunk []byte) error
}

const flushTimeout = 5 * time.Second

// Recorder owns the ordered log for a single game.
type Recorder struct {
	gameID string
	logger *zap.Logger
	sink   Sink

	mu        sync.Mutex
	events    []Event
	nextSeq   uint64
	unflushed int

	flushCh chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewRecorder creates a recorder for gameID. A nil sink disables durable
// persistence; the in-memory log still works.
func NewRecorder(gameID string, sink Sink, logger *zap.Logger) *Recorder {
	r := &Recorder{
		gameID:  gameID,
		logger:  logger,
		sink:    sink,
		nextSeq: 1,
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if sink != nil {
		r.wg.Add(1)
		go r.flushLoop()
	}
	return r
}

// Append assigns the next sequence number and stores the event. The returned
// event carries the assigned sequence.
func (r *Recorder) Append(evType, playerID string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("replay: encode %s event: %w", evType, err)
		}
		raw = b
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Event{}, fmt.Errorf("replay: recorder for game %s is closed", r.gameID)
	}
	ev := Event{
		Seq:       r.nextSeq,
		Timestamp: time.Now().UTC(),
		Type:      evType,
		PlayerID:  playerID,
		Payload:   raw,
	}
	r.nextSeq++
	r.events = append(r.events, ev)
	r.mu.Unlock()

	select {
	case r.flushCh <- struct{}{}:
	default:
	}
	return ev, nil
}

// LastSeq returns the most recently assigned sequence number, zero if none.
func (r *Recorder) LastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextSeq - 1
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Replay returns a cursor positioned at the beginning of the log. Cursors
// are independent and restartable; events appended after the cursor was
// created are visible to it.
func (r *Recorder) Replay() *Cursor {
	return &Cursor{r: r}
}

// Cursor iterates the log in sequence order.
type Cursor struct {
	r   *Recorder
	idx int
}

// Next returns the next event, or false when the cursor has drained the log.
func (c *Cursor) Next() (Event, bool) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if c.idx >= len(c.r.events) {
		return Event{}, false
	}
	ev := c.r.events[c.idx]
	c.idx++
	return ev, true
}

// Reset rewinds the cursor to the beginning of the log.
func (c *Cursor) Reset() {
	c.idx = 0
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			r.flushOnce()
			return
		case <-r.flushCh:
			r.flushOnce()
		case <-ticker.C:
			r.flushOnce()
		}
	}
}

// flushOnce writes all unflushed events as one newline-delimited JSON chunk.
// A sink failure is logged and the events are considered flushed anyway:
// durability is best-effort and must never compromise live play.
func (r *Recorder) flushOnce() {
	r.mu.Lock()
	if r.unflushed >= len(r.events) {
		r.mu.Unlock()
		return
	}
	batch := make([]Event, len(r.events)-r.unflushed)
	copy(batch, r.events[r.unflushed:])
	firstSeq := batch[0].Seq
	r.unflushed = len(r.events)
	r.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range batch {
		if err := enc.Encode(ev); err != nil {
			r.logger.Warn("failed to encode replay chunk",
				zap.String("game_id", r.gameID),
				zap.Uint64("first_seq", firstSeq),
				zap.Error(err),
			)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := r.sink.AppendReplayChunk(ctx, r.gameID, firstSeq, buf.Bytes()); err != nil {
		r.logger.Warn("failed to persist replay chunk",
			zap.String("game_id", r.gameID),
			zap.Uint64("first_seq", firstSeq),
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
	}
}

// Close flushes any pending events and stops the flush goroutine. The
// in-memory log remains readable after Close; Append fails.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}
