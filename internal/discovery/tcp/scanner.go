// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"rn2903-service/internal/discovery"
	"rn2903-service/internal/model"
)

// Scanner checks configured serial-over-TCP endpoints (ser2net and similar)
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for TCP scanner
type Config struct {
	// Endpoints are host:port or tcp://host:port
	Endpoints   []string      `json:"endpoints"`
	ConnTimeout time.Duration `json:"connection_timeout"`
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any endpoint is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Endpoints) > 0
}

// Scan dials every endpoint and reports the reachable ones
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	var devices []*discovery.DiscoveredDevice
	dialer := &net.Dialer{Timeout: s.config.ConnTimeout}

	for _, endpoint := range s.config.Endpoints {
		hostPort := strings.TrimPrefix(endpoint, "tcp://")
		conn, err := dialer.DialContext(ctx, "tcp", hostPort)
		if err != nil {
			s.logger.Debug("Endpoint unreachable", zap.String("endpoint", endpoint), zap.Error(err))
			if ctx.Err() != nil {
				return devices, ctx.Err()
			}
			continue
		}
		conn.Close()

		devices = append(devices, &discovery.DiscoveredDevice{
			ConnectionType: model.ConnectionTypeTCP,
			Address:        "tcp://" + hostPort,
			Scanner:        s.GetScannerType(),
			Description:    "serial-over-TCP endpoint",
			Confidence:     0.5,
		})
	}
	return devices, nil
}
