// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"rn2903-service/internal/discovery"
	"rn2903-service/internal/model"
)

// Scanner lists USB devices whose IDs match known RN2903 boards or bridges.
// USB findings carry no transport address; the serial scanner reports the tty.
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	config       *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
	EnableDebug bool          `json:"enable_debug"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{ScanTimeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewDeviceDatabase(),
		config:       config,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable reports whether libusb can be initialised
func (s *Scanner) IsAvailable() bool {
	available := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Debug("libusb unavailable", zap.Any("reason", r))
				available = false
			}
		}()
		usbCtx := gousb.NewContext()
		usbCtx.Close()
	}()
	return available
}

// Scan performs USB device discovery
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	startTime := time.Now()

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()
	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	var found []*discovery.DiscoveredDevice
	// The filter sees every descriptor; returning false keeps devices closed.
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if scanCtx.Err() != nil {
			return false
		}
		if d := s.describe(desc); d != nil {
			found = append(found, d)
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err := scanCtx.Err(); err != nil {
		return found, err
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_found", len(found)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return found, nil
}

func (s *Scanner) describe(desc *gousb.DeviceDesc) *discovery.DiscoveredDevice {
	description, confidence, ok := s.knownDevices.Identify(desc.Vendor, desc.Product)
	if !ok {
		return nil
	}

	s.logger.Debug("Found candidate USB device",
		zap.String("vendor_id", formatID(desc.Vendor)),
		zap.String("product_id", formatID(desc.Product)),
	)
	return &discovery.DiscoveredDevice{
		ConnectionType: model.ConnectionTypeSerial,
		Scanner:        s.GetScannerType(),
		Description:    description,
		VendorID:       formatID(desc.Vendor),
		ProductID:      formatID(desc.Product),
		Location:       locationString(desc),
		Confidence:     confidence,
	}
}

func formatID(id gousb.ID) string {
	return strings.ToUpper(fmt.Sprintf("%04x", uint16(id)))
}

func locationString(desc *gousb.DeviceDesc) string {
	return fmt.Sprintf("USB-Bus%d-Port%d", desc.Bus, desc.Address)
}
