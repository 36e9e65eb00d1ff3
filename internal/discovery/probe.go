package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rn2903-service/internal/protocol"
	"rn2903-service/internal/session"
)

// Prober reads the firmware banner of the radio at address
type Prober func(ctx context.Context, address string) (string, error)

// SessionProber opens a short-lived session and asks for sys get ver.
// The banner must name the expected firmware.
func SessionProber(registry *protocol.Registry, opts protocol.Options, firmwareName string, logger *zap.Logger) Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, address string) (string, error) {
		transport, err := registry.CreateTransport(address, opts, logger)
		if err != nil {
			return "", err
		}
		if err := transport.Open(ctx); err != nil {
			return "", fmt.Errorf("open %s: %w", address, err)
		}
		defer transport.Close()

		s := session.New(transport,
			session.WithFirmware(firmwareName, ""),
			session.WithLogger(logger),
		)
		result, err := s.Execute(ctx, "sys get ver")
		if err != nil {
			return "", err
		}
		if !result.OK() {
			return "", result.AsError()
		}
		return result.Payload, nil
	}
}
