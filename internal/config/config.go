// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Device      DeviceConfig      `mapstructure:"device"`
	Session     SessionConfig     `mapstructure:"session"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Trace       TraceConfig       `mapstructure:"trace"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DeviceConfig describes how to reach the radio
type DeviceConfig struct {
	// Address is a serial port path, tcp://host:port or sim://name
	Address     string        `mapstructure:"address"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// SessionConfig controls the radio session
type SessionConfig struct {
	FirmwareName         string        `mapstructure:"firmware_name"`
	FirmwareVersion      string        `mapstructure:"firmware_version"`
	SafeMode             bool          `mapstructure:"safe_mode"`
	CommandTimeout       time.Duration `mapstructure:"command_timeout"`
	EventTimeout         time.Duration `mapstructure:"event_timeout"`
	ResumeOnPauseFailure bool          `mapstructure:"resume_on_pause_failure"`
	PushOnStart          bool          `mapstructure:"push_on_start"`
}

// PersistenceConfig selects where configuration snapshots are kept
type PersistenceConfig struct {
	// Driver is "file" or "postgres"
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	// SnapshotRetention is the number of snapshots kept per radio; 0 keeps all
	SnapshotRetention int `mapstructure:"snapshot_retention"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// TraceConfig controls the CBOR wire capture
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DiscoveryConfig controls port scanning and mDNS advertisement
type DiscoveryConfig struct {
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
	USB         bool          `mapstructure:"usb"`
	// Probe opens each candidate port and asks for the firmware banner
	Probe        bool     `mapstructure:"probe"`
	TCPEndpoints []string `mapstructure:"tcp_endpoints"`

	Advertise   bool   `mapstructure:"advertise"`
	ServiceName string `mapstructure:"service_name"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables.
// An explicit path must exist; without one a missing config.yaml falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rn2903")
	}

	// Environment variable support
	v.SetEnvPrefix("RN2903")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Device defaults
	v.SetDefault("device.address", "/dev/ttyACM0")
	v.SetDefault("device.baud_rate", 57600)
	v.SetDefault("device.data_bits", 8)
	v.SetDefault("device.stop_bits", 1)
	v.SetDefault("device.parity", "none")
	v.SetDefault("device.read_timeout", "5s")

	// Session defaults
	v.SetDefault("session.firmware_name", "RN2903")
	v.SetDefault("session.firmware_version", "1.0.5")
	v.SetDefault("session.safe_mode", true)
	v.SetDefault("session.command_timeout", "5s")
	v.SetDefault("session.event_timeout", "30s")
	v.SetDefault("session.resume_on_pause_failure", false)
	v.SetDefault("session.push_on_start", true)

	// Persistence defaults
	v.SetDefault("persistence.driver", "file")
	v.SetDefault("persistence.path", "rn2903_config.json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "rn2903")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.snapshot_retention", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Trace defaults
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.path", "rn2903_trace.cbor")

	// Discovery defaults
	v.SetDefault("discovery.scan_timeout", "10s")
	v.SetDefault("discovery.usb", true)
	v.SetDefault("discovery.probe", false)
	v.SetDefault("discovery.tcp_endpoints", []string{})
	v.SetDefault("discovery.advertise", false)
	v.SetDefault("discovery.service_name", "rn2903-service")

	// App defaults
	v.SetDefault("app.name", "rn2903-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Device.Address == "" {
		return fmt.Errorf("device.address is required")
	}
	if config.Device.BaudRate <= 0 {
		return fmt.Errorf("device.baud_rate must be positive")
	}
	if config.Device.DataBits < 5 || config.Device.DataBits > 8 {
		return fmt.Errorf("device.data_bits must be between 5 and 8")
	}
	if config.Device.StopBits != 1 && config.Device.StopBits != 2 {
		return fmt.Errorf("device.stop_bits must be 1 or 2")
	}
	if config.Session.FirmwareName == "" || config.Session.FirmwareVersion == "" {
		return fmt.Errorf("session.firmware_name and session.firmware_version are required")
	}

	validParities := []string{"none", "odd", "even", "mark", "space"}
	if !slices.Contains(validParities, config.Device.Parity) {
		return fmt.Errorf("device.parity must be one of: %v", validParities)
	}

	validDrivers := []string{"file", "postgres"}
	if !slices.Contains(validDrivers, config.Persistence.Driver) {
		return fmt.Errorf("persistence.driver must be one of: %v", validDrivers)
	}
	if config.Persistence.Driver == "file" && config.Persistence.Path == "" {
		return fmt.Errorf("persistence.path is required for the file driver")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
