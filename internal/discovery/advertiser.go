package discovery

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"go.uber.org/zap"
)

const (
	// ServiceType is the DNS-SD type the HTTP API is announced under
	ServiceType = "_rn2903._tcp"
	Domain      = "local."
)

// AdvertiseInfo describes the running service
type AdvertiseInfo struct {
	Instance string
	Port     int
	Address  string
	Firmware string
	Version  string
}

// TXTRecords builds the DNS-SD TXT strings for info
func TXTRecords(info AdvertiseInfo) []string {
	txt := []string{"api=/api/v1"}
	if info.Address != "" {
		txt = append(txt, "dev="+info.Address)
	}
	if info.Firmware != "" {
		txt = append(txt, "fw="+info.Firmware)
	}
	if info.Version != "" {
		txt = append(txt, "ver="+info.Version)
	}
	return txt
}

// Advertiser announces the HTTP API over mDNS
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
	logger *zap.Logger
}

// NewAdvertiser creates an idle advertiser
func NewAdvertiser(logger *zap.Logger) *Advertiser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advertiser{logger: logger.With(zap.String("component", "mdns"))}
}

// Start registers the service, replacing any earlier registration
func (a *Advertiser) Start(info AdvertiseInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(info.Instance, ServiceType, Domain, info.Port, TXTRecords(info), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server

	a.logger.Info("mDNS advertisement started",
		zap.String("instance", info.Instance),
		zap.String("service", ServiceType),
		zap.String("port", strconv.Itoa(info.Port)),
	)
	return nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("mDNS advertisement stopped")
	}
}
