// internal/simulator/transport.go
package simulator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
)

// Transport connects a protocol session to a simulated Device.
// Written lines are interpreted on CRLF and replies are queued for ReadByte.
type Transport struct {
	device *Device
	logger *zap.Logger

	mu       sync.Mutex
	isOpen   bool
	pending  bytes.Buffer
	outgoing bytes.Buffer

	// test hooks
	OpenErr  error
	WriteErr error
	ReadErr  error
}

// NewTransport creates a transport bound to device
func NewTransport(device *Device, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		device: device,
		logger: logger.With(zap.String("protocol", "simulator")),
	}
}

// Device returns the simulated radio behind the transport
func (t *Transport) Device() *Device {
	return t.device
}

// Open opens the transport
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.OpenErr != nil {
		return t.OpenErr
	}
	t.isOpen = true
	t.logger.Debug("Simulator transport opened")
	return nil
}

// Close closes the transport
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isOpen = false
	return nil
}

// IsOpen returns whether the transport is open
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isOpen
}

// Write feeds bytes to the simulated radio
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isOpen {
		return protocol.ErrNotOpen
	}
	if t.WriteErr != nil {
		return t.WriteErr
	}

	t.pending.Write(data)
	for {
		line, err := t.pending.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			rest := []byte(line)
			t.pending.Reset()
			t.pending.Write(rest)
			break
		}
		command := strings.TrimRight(line, "\r\n")
		for _, reply := range t.device.Handle(command) {
			t.outgoing.WriteString(reply)
			t.outgoing.WriteString("\r\n")
		}
	}
	return nil
}

// pollInterval is how long ReadByte waits for a reply before reporting a read timeout
const pollInterval = 10 * time.Millisecond

// ReadByte returns the next reply byte, or a read timeout when none is queued
// within one poll interval
func (t *Transport) ReadByte(ctx context.Context) (byte, error) {
	if b, ok, err := t.nextByte(ctx); ok || err != nil {
		return b, err
	}

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	b, ok, err := t.nextByte(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, protocol.ErrReadTimeout
	}
	return b, nil
}

func (t *Transport) nextByte(ctx context.Context) (byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isOpen {
		return 0, false, protocol.ErrNotOpen
	}
	if t.ReadErr != nil {
		return 0, false, t.ReadErr
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	b, err := t.outgoing.ReadByte()
	if err != nil {
		return 0, false, nil
	}
	return b, true, nil
}

// GetProtocolType returns the protocol type
func (t *Transport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSimulator
}

var (
	devicesMu sync.Mutex
	devices   = map[string]*Device{}
)

// Lookup returns the shared simulated radio for a sim:// address, creating it on first use
func Lookup(address string) *Device {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	name := strings.TrimPrefix(address, "sim://")
	if d, ok := devices[name]; ok {
		return d
	}
	d := NewDevice()
	devices[name] = d
	return d
}

// Register installs the simulator as the sim:// transport of registry
func Register(registry *protocol.Registry) {
	registry.Register(model.ConnectionTypeSimulator, func(address string, opts protocol.Options, logger *zap.Logger) (protocol.Transport, error) {
		return NewTransport(Lookup(address), logger), nil
	})
}
