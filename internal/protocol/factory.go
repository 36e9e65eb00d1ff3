// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rn2903-service/internal/model"
)

// Options carries the line settings shared by every transport kind
type Options struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration
}

// Factory creates a transport for one address
type Factory func(address string, opts Options, logger *zap.Logger) (Transport, error)

// Registry maps connection types to transport factories
type Registry struct {
	factories map[model.ConnectionType]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a registry with the serial and TCP transports registered
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[model.ConnectionType]Factory)}
	r.Register(model.ConnectionTypeSerial, createSerialTransport)
	r.Register(model.ConnectionTypeTCP, createTCPTransport)
	return r
}

// Register installs or replaces the factory for a connection type
func (r *Registry) Register(connectionType model.ConnectionType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[connectionType] = factory
}

// IsSupported reports whether a factory exists for the connection type
func (r *Registry) IsSupported(connectionType model.ConnectionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[connectionType]
	return ok
}

// CreateTransport creates a transport for a device address.
// Addresses are serial device paths, tcp://host:port or sim://<name>.
func (r *Registry) CreateTransport(address string, opts Options, logger *zap.Logger) (Transport, error) {
	if address == "" {
		return nil, fmt.Errorf("device address is required")
	}

	connectionType := model.ConnectionTypeForAddress(address)

	r.mu.RLock()
	factory, ok := r.factories[connectionType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported connection type %s for %s", connectionType, address)
	}

	return factory(address, opts, logger)
}

// DefaultRegistry is used by CreateTransport
var DefaultRegistry = NewRegistry()

// CreateTransport creates a transport through DefaultRegistry
func CreateTransport(address string, opts Options, logger *zap.Logger) (Transport, error) {
	return DefaultRegistry.CreateTransport(address, opts, logger)
}

func createSerialTransport(address string, opts Options, logger *zap.Logger) (Transport, error) {
	serialConfig := DefaultSerialConfig(address)

	if opts.BaudRate > 0 {
		serialConfig.BaudRate = opts.BaudRate
	}
	if opts.DataBits > 0 {
		serialConfig.DataBits = opts.DataBits
	}
	if opts.StopBits > 0 {
		serialConfig.StopBits = opts.StopBits
	}
	if opts.Parity != "" {
		serialConfig.Parity = opts.Parity
	}
	if opts.ReadTimeout > 0 {
		serialConfig.Timeout = opts.ReadTimeout
	}

	if err := ValidateSerialConfig(serialConfig); err != nil {
		return nil, err
	}

	logger.Info("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger), nil
}

func createTCPTransport(address string, opts Options, logger *zap.Logger) (Transport, error) {
	hostPort := strings.TrimPrefix(address, "tcp://")
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, fmt.Errorf("invalid tcp address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port number: %s", portStr)
	}

	tcpConfig := &TCPConfig{
		Host:         host,
		Port:         port,
		KeepAlive:    true,
		Timeout:      10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	if opts.ReadTimeout > 0 {
		tcpConfig.ReadTimeout = opts.ReadTimeout
	}

	logger.Info("Creating TCP transport",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)

	return NewTCPConnection(tcpConfig, logger), nil
}

// ValidateSerialConfig rejects line settings the radio cannot use
func ValidateSerialConfig(config *SerialConfig) error {
	if config.Port == "" {
		return fmt.Errorf("serial port is required")
	}

	validRates := []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}
	valid := false
	for _, rate := range validRates {
		if config.BaudRate == rate {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid baud rate: %d", config.BaudRate)
	}

	if config.DataBits < 5 || config.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d", config.DataBits)
	}
	if config.StopBits != 1 && config.StopBits != 2 {
		return fmt.Errorf("invalid stop bits: %d", config.StopBits)
	}

	switch config.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("invalid parity: %s", config.Parity)
	}

	return nil
}
