// internal/service/discovery_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rn2903-service/internal/config"
	"rn2903-service/internal/discovery"
	"rn2903-service/internal/discovery/serial"
	"rn2903-service/internal/discovery/tcp"
	"rn2903-service/internal/discovery/usb"
	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/utils"
)

// ScanRequest selects which scanners run
type ScanRequest struct {
	ScanType string `json:"scan_type" binding:"omitempty,oneof=all serial usb tcp"`
	// Probe overrides the configured probing behaviour when set
	Probe *bool `json:"probe,omitempty"`
}

// ScanResult is the outcome of one scan
type ScanResult struct {
	ScanType string                        `json:"scan_type"`
	Devices  []*discovery.DiscoveredDevice `json:"devices"`
	Duration time.Duration                 `json:"duration"`
	Scanners []string                      `json:"scanners"`
}

// DiscoveryService looks for radios attached to the host
type DiscoveryService struct {
	scanners *discovery.ScannerManager
	prober   discovery.Prober
	probe    bool
	bus      *EventBus
	logger   *utils.ServiceLogger
}

// NewDiscoveryService creates a discovery service with the serial, USB and TCP scanners.
// activeAddress is never probed since the radio service holds it open.
func NewDiscoveryService(cfg *config.Config, registry *protocol.Registry, activeAddress string, bus *EventBus, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = protocol.DefaultRegistry
	}

	ds := &DiscoveryService{
		scanners: discovery.NewScannerManager(logger),
		probe:    cfg.Discovery.Probe,
		bus:      bus,
		logger:   utils.NewServiceLogger(logger, "discovery-service"),
	}

	opts := OptionsFromConfig(cfg).Transport
	inner := discovery.SessionProber(registry, opts, cfg.Session.FirmwareName, logger)
	ds.prober = func(ctx context.Context, address string) (string, error) {
		if address == activeAddress {
			return "", fmt.Errorf("%s is in use by the radio service", address)
		}
		return inner(ctx, address)
	}

	ds.scanners.RegisterScanner(serial.NewScanner(logger))
	if cfg.Discovery.USB {
		ds.scanners.RegisterScanner(usb.NewScanner(logger, &usb.Config{ScanTimeout: cfg.Discovery.ScanTimeout}))
	}
	ds.scanners.RegisterScanner(tcp.NewScanner(logger, &tcp.Config{Endpoints: cfg.Discovery.TCPEndpoints}))

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scanners.GetAvailableScanners()),
	)
	return ds
}

// Scanners returns the available scanner types
func (ds *DiscoveryService) Scanners() []string {
	return ds.scanners.GetAvailableScanners()
}

// ScanDevices runs the requested scanners
func (ds *DiscoveryService) ScanDevices(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	scanType := req.ScanType
	if scanType == "" {
		scanType = "all"
	}
	probe := ds.probe
	if req.Probe != nil {
		probe = *req.Probe
	}
	if probe {
		ds.scanners.SetProber(ds.prober)
	} else {
		ds.scanners.SetProber(nil)
	}

	start := time.Now()
	var devices []*discovery.DiscoveredDevice
	var err error

	switch scanType {
	case "all":
		devices, err = ds.scanners.ScanAll(ctx)
	case "serial", "usb", "tcp":
		devices, err = ds.scanners.ScanByType(ctx, scanType)
	default:
		return nil, fmt.Errorf("unsupported scan type: %s", scanType)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if devices == nil {
		devices = []*discovery.DiscoveredDevice{}
	}

	result := &ScanResult{
		ScanType: scanType,
		Devices:  devices,
		Duration: time.Since(start),
		Scanners: ds.scanners.GetAvailableScanners(),
	}

	ds.logger.Info("Device scan completed",
		zap.String("scan_type", scanType),
		zap.Int("devices_found", len(devices)),
		zap.Bool("probe", probe),
		zap.Duration("duration", result.Duration),
	)
	if ds.bus != nil {
		ds.bus.Publish(model.NewServiceEvent(model.EventDiscoveryDone, "INFO", map[string]interface{}{
			"scan_type":     scanType,
			"devices_found": len(devices),
		}))
	}
	return result, nil
}
