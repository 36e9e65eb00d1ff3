// internal/session/options.go
package session

import (
	"go.uber.org/zap"

	"rn2903-service/internal/model"
)

// StateListener is called after every state transition
type StateListener func(from, to model.DeviceState)

// Config holds the session configuration
type Config struct {
	// Firmware is the name and version the radio must report on Open
	Firmware model.Firmware

	// SafeMode blocks sys eraseFW and sys factoryRESET locally
	SafeMode bool

	Logger        *zap.Logger
	StateListener StateListener
}

func defaultConfig() Config {
	return Config{
		Firmware: model.Firmware{Name: "RN2903", Version: "1.0.5"},
		SafeMode: true,
		Logger:   zap.NewNop(),
	}
}

// Option is a functional option for configuring the Session
type Option func(*Config)

// WithFirmware sets the expected firmware identity.
// Empty values keep the default.
func WithFirmware(name, version string) Option {
	return func(c *Config) {
		if name != "" {
			c.Firmware.Name = name
		}
		if version != "" {
			c.Firmware.Version = version
		}
	}
}

// WithSafeMode sets the initial safety flag
func WithSafeMode(enabled bool) Option {
	return func(c *Config) {
		c.SafeMode = enabled
	}
}

// WithLogger sets the logger for command tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithStateListener registers a callback for state transitions
func WithStateListener(listener StateListener) Option {
	return func(c *Config) {
		c.StateListener = listener
	}
}
