package trace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/session"
)

// Transport wraps a protocol.Transport and records every line crossing it.
// Each Open starts a new connection id.
type Transport struct {
	inner    protocol.Transport
	recorder Recorder
	address  string

	mu           sync.Mutex
	connectionID string
	line         []byte
}

// Wrap returns a traced view of inner
func Wrap(inner protocol.Transport, address string, recorder Recorder) *Transport {
	return &Transport{
		inner:    inner,
		recorder: recorder,
		address:  address,
	}
}

// ConnectionID returns the id of the current connection
func (t *Transport) ConnectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectionID
}

// Open opens the wrapped transport
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	t.connectionID = uuid.NewString()
	t.line = t.line[:0]
	t.mu.Unlock()

	return t.inner.Open(ctx)
}

// Close closes the wrapped transport
func (t *Transport) Close() error {
	return t.inner.Close()
}

// IsOpen reports whether the wrapped transport is open
func (t *Transport) IsOpen() bool {
	return t.inner.IsOpen()
}

// Write records the outgoing line and forwards it. A reply fragment left
// by a timed out read is recorded first.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	partial := t.takeLine()
	t.mu.Unlock()
	if partial != "" {
		t.emit(DirectionIn, partial, nil)
	}

	err := t.inner.Write(ctx, data)
	t.emit(DirectionOut, strings.TrimRight(string(data), "\r\n"), err)
	return err
}

// ReadByte forwards the read and records a line once LF arrives or the
// line reaches session.MaxLineLength, where the session cuts it too
func (t *Transport) ReadByte(ctx context.Context) (byte, error) {
	b, err := t.inner.ReadByte(ctx)
	if err != nil {
		return b, err
	}

	t.mu.Lock()
	if b != '\n' {
		t.line = append(t.line, b)
		if len(t.line) < session.MaxLineLength {
			t.mu.Unlock()
			return b, nil
		}
	}
	line := t.takeLine()
	t.mu.Unlock()

	t.emit(DirectionIn, line, nil)
	return b, nil
}

// takeLine empties the line buffer. Callers hold mu.
func (t *Transport) takeLine() string {
	line := strings.TrimRight(string(t.line), "\r")
	t.line = t.line[:0]
	return line
}

// GetProtocolType returns the wrapped protocol type
func (t *Transport) GetProtocolType() model.ConnectionType {
	return t.inner.GetProtocolType()
}

// Stats forwards traffic counters when the wrapped transport keeps them
func (t *Transport) Stats() protocol.ProtocolStats {
	if sp, ok := t.inner.(protocol.StatsProvider); ok {
		return sp.Stats()
	}
	return protocol.ProtocolStats{
		IsConnected:    t.inner.IsOpen(),
		ConnectionType: string(t.inner.GetProtocolType()),
	}
}

func (t *Transport) emit(dir Direction, line string, err error) {
	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: t.ConnectionID(),
		Address:      t.address,
		Direction:    dir,
		Line:         line,
	}
	if err != nil {
		event.Error = err.Error()
	}
	t.recorder.Record(event)
}
