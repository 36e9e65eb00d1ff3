// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"rn2903-service/internal/model"
)

// DeviceScanner finds candidate radios of one kind
type DeviceScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredDevice, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredDevice is a candidate radio
type DiscoveredDevice struct {
	ConnectionType model.ConnectionType `json:"connection_type"`
	// Address can be passed to the transport registry; empty for USB-only findings
	Address      string  `json:"address,omitempty"`
	Scanner      string  `json:"scanner"`
	Description  string  `json:"description,omitempty"`
	VendorID     string  `json:"vendor_id,omitempty"`
	ProductID    string  `json:"product_id,omitempty"`
	SerialNumber string  `json:"serial_number,omitempty"`
	Location     string  `json:"location,omitempty"`
	Confidence   float64 `json:"confidence"` // 0.0-1.0

	// Filled in by probing
	Firmware   string `json:"firmware,omitempty"`
	ProbeError string `json:"probe_error,omitempty"`
}

// ScannerManager runs the registered scanners and optionally probes what they find
type ScannerManager struct {
	mu       sync.RWMutex
	scanners map[string]DeviceScanner
	prober   Prober
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a device scanner
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Debug("Scanner registered", zap.String("type", scannerType))
}

// SetProber enables firmware probing of every candidate with an address
func (sm *ScannerManager) SetProber(prober Prober) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.prober = prober
}

// ScanAll runs every available scanner. A failing scanner is logged and skipped.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredDevice, error) {
	sm.mu.RLock()
	scanners := make([]DeviceScanner, 0, len(sm.scanners))
	for _, s := range sm.scanners {
		scanners = append(scanners, s)
	}
	sm.mu.RUnlock()

	var allDevices []*DiscoveredDevice
	for _, scanner := range scanners {
		scannerType := scanner.GetScannerType()
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		devices, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allDevices = append(allDevices, devices...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("devices_found", len(devices)),
		)
	}

	sm.probe(ctx, allDevices)
	sortDevices(allDevices)
	return allDevices, nil
}

// ScanByType runs one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredDevice, error) {
	sm.mu.RLock()
	scanner, exists := sm.scanners[scannerType]
	sm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	devices, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	sm.probe(ctx, devices)
	sortDevices(devices)
	return devices, nil
}

// GetAvailableScanners returns the available scanner types, sorted
func (sm *ScannerManager) GetAvailableScanners() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	sort.Strings(available)
	return available
}

func (sm *ScannerManager) probe(ctx context.Context, devices []*DiscoveredDevice) {
	sm.mu.RLock()
	prober := sm.prober
	sm.mu.RUnlock()
	if prober == nil {
		return
	}

	for _, d := range devices {
		if d.Address == "" {
			continue
		}
		banner, err := prober(ctx, d.Address)
		if err != nil {
			d.ProbeError = err.Error()
			sm.logger.Debug("Probe failed", zap.String("address", d.Address), zap.Error(err))
			continue
		}
		d.Firmware = banner
		d.Confidence = 1.0
	}
}

// sortDevices orders by confidence, then address
func sortDevices(devices []*DiscoveredDevice) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Confidence != devices[j].Confidence {
			return devices[i].Confidence > devices[j].Confidence
		}
		return devices[i].Address < devices[j].Address
	})
}
