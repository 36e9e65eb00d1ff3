package trace

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/session"
	"rn2903-service/internal/simulator"
)

type memoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (m *memoryRecorder) Record(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func TestTransportRecordsLines(t *testing.T) {
	rec := &memoryRecorder{}
	traced := Wrap(simulator.NewTransport(simulator.NewDevice(), nil), "sim://trace", rec)

	s := session.New(traced)
	require.NoError(t, s.Open(context.Background()))
	result, err := s.Execute(context.Background(), "radio get sf")
	require.NoError(t, err)
	require.True(t, result.OK())

	require.Len(t, rec.events, 4)
	assert.Equal(t, DirectionOut, rec.events[0].Direction)
	assert.Equal(t, "sys get ver", rec.events[0].Line)
	assert.Equal(t, DirectionIn, rec.events[1].Direction)
	assert.Equal(t, simulator.DefaultBanner, rec.events[1].Line)
	assert.Equal(t, "radio get sf", rec.events[2].Line)
	assert.Equal(t, "sf12", rec.events[3].Line)

	id := traced.ConnectionID()
	assert.NotEmpty(t, id)
	for _, e := range rec.events {
		assert.Equal(t, id, e.ConnectionID)
		assert.Equal(t, "sim://trace", e.Address)
	}
}

// cannedTransport serves a fixed byte stream and times out once it runs dry
type cannedTransport struct {
	open bool
	data []byte
}

func (c *cannedTransport) Open(ctx context.Context) error { c.open = true; return nil }

func (c *cannedTransport) Close() error { c.open = false; return nil }

func (c *cannedTransport) IsOpen() bool { return c.open }

func (c *cannedTransport) Write(ctx context.Context, data []byte) error { return nil }

func (c *cannedTransport) ReadByte(ctx context.Context) (byte, error) {
	if len(c.data) == 0 {
		return 0, protocol.ErrReadTimeout
	}
	b := c.data[0]
	c.data = c.data[1:]
	return b, nil
}

func (c *cannedTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

func inbound(events []Event) []string {
	var lines []string
	for _, e := range events {
		if e.Direction == DirectionIn {
			lines = append(lines, e.Line)
		}
	}
	return lines
}

func TestTransportSplitsOverlongReply(t *testing.T) {
	rec := &memoryRecorder{}
	long := strings.Repeat("A", session.MaxLineLength)
	inner := &cannedTransport{data: []byte(long + "ok\r\n")}
	traced := Wrap(inner, "/dev/ttyUSB0", rec)
	require.NoError(t, traced.Open(context.Background()))
	s := session.New(traced)

	result, err := s.Execute(context.Background(), "sys get hweui")
	require.NoError(t, err)
	assert.Equal(t, long, result.Payload)

	result, err = s.Execute(context.Background(), "radio get sf")
	require.NoError(t, err)
	require.True(t, result.OK())

	assert.Equal(t, []string{long, "ok"}, inbound(rec.events))
	require.Len(t, rec.events, 4)
	assert.Equal(t, "radio get sf", rec.events[2].Line)
}

func TestTransportRecordsFragmentBeforeNextCommand(t *testing.T) {
	rec := &memoryRecorder{}
	inner := &cannedTransport{data: []byte("sf1")}
	traced := Wrap(inner, "/dev/ttyUSB0", rec)
	require.NoError(t, traced.Open(context.Background()))
	s := session.New(traced)

	result, err := s.Execute(context.Background(), "radio get sf")
	require.NoError(t, err)
	assert.ErrorIs(t, result.AsError(), protocol.ErrReadTimeout)

	inner.data = []byte("sf12\r\n")
	result, err = s.Execute(context.Background(), "radio get sf")
	require.NoError(t, err)
	assert.Equal(t, "sf12", result.Payload)

	assert.Equal(t, []string{"sf1", "sf12"}, inbound(rec.events))
	require.Len(t, rec.events, 4)
	assert.Equal(t, DirectionOut, rec.events[2].Direction)
}

func TestTransportRecordsWriteErrors(t *testing.T) {
	rec := &memoryRecorder{}
	traced := Wrap(simulator.NewTransport(simulator.NewDevice(), nil), "sim://closed", rec)

	err := traced.Write(context.Background(), []byte("sys get ver\r\n"))
	assert.ErrorIs(t, err, protocol.ErrNotOpen)
	require.Len(t, rec.events, 1)
	assert.Equal(t, protocol.ErrNotOpen.Error(), rec.events[0].Error)
}

func TestFileRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.cbor")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	traced := Wrap(simulator.NewTransport(simulator.NewDevice(), nil), "sim://file", rec)
	s := session.New(traced)
	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, rec.Close())

	// ignored after close
	rec.Record(Event{Line: "late"})

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sys get ver", events[0].Line)
	assert.Equal(t, DirectionOut, events[0].Direction)
	assert.Equal(t, simulator.DefaultBanner, events[1].Line)
	assert.False(t, events[1].Timestamp.IsZero())
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "out", DirectionOut.String())
	assert.Equal(t, "in", DirectionIn.String())
	assert.Equal(t, "unknown", Direction(0).String())
}
