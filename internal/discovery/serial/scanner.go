// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"rn2903-service/internal/discovery"
	"rn2903-service/internal/model"
)

const microchipVID = "04D8"

// PortLister returns the serial ports present on the host
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner reports serial ports that may have an RN2903 attached
type Scanner struct {
	logger *zap.Logger
	list   PortLister
	// IncludeNonUSB reports plain UART ports such as /dev/ttyS0 at low confidence
	IncludeNonUSB bool
}

// NewScanner creates a serial port scanner backed by the OS enumerator
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWithLister(logger, enumerator.GetDetailedPortsList)
}

// NewScannerWithLister creates a scanner with a custom port source
func NewScannerWithLister(logger *zap.Logger, list PortLister) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		list:   list,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable always reports true; an empty port list is a valid result
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var devices []*discovery.DiscoveredDevice
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if !port.IsUSB && !s.IncludeNonUSB {
			continue
		}
		devices = append(devices, s.describe(port))
	}

	s.logger.Debug("Serial scan completed", zap.Int("ports", len(ports)), zap.Int("candidates", len(devices)))
	return devices, nil
}

func (s *Scanner) describe(port *enumerator.PortDetails) *discovery.DiscoveredDevice {
	d := &discovery.DiscoveredDevice{
		ConnectionType: model.ConnectionTypeSerial,
		Address:        port.Name,
		Scanner:        s.GetScannerType(),
		Description:    port.Product,
		VendorID:       strings.ToUpper(port.VID),
		ProductID:      strings.ToUpper(port.PID),
		SerialNumber:   port.SerialNumber,
		Confidence:     0.1,
	}

	switch {
	case d.VendorID == microchipVID:
		d.Confidence = 0.8
	case port.IsUSB:
		d.Confidence = 0.3
	}
	if d.Description == "" {
		d.Description = port.Name
	}
	return d
}
