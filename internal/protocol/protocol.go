// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"

	"rn2903-service/internal/model"
)

// ErrReadTimeout is returned by ReadByte when no byte arrived within the read timeout
var ErrReadTimeout = errors.New("read timeout")

// ErrNotOpen is returned by I/O on a closed transport
var ErrNotOpen = errors.New("transport not open")

// Transport is a character-oriented byte stream to a radio
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Write sends data as one write
	Write(ctx context.Context, data []byte) error
	// ReadByte blocks for at most the configured read timeout or the ctx deadline
	ReadByte(ctx context.Context) (byte, error)

	GetProtocolType() model.ConnectionType
}

// StatsProvider is implemented by transports that keep traffic counters
type StatsProvider interface {
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64     `json:"bytes_written"`
	BytesRead      int64     `json:"bytes_read"`
	WriteCount     int64     `json:"write_count"`
	ErrorCount     int64     `json:"error_count"`
	LastActivity   time.Time `json:"last_activity"`
	IsConnected    bool      `json:"is_connected"`
	ConnectionType string    `json:"connection_type"`
}

// ioDeadline returns the earlier of now+timeout and the ctx deadline.
// The zero time means no limit.
func ioDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}
