// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"rn2903-service/internal/config"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := ParseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, lm.getLoggerOptions()...), nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		// File output with rotation
		output := lm.config.Output
		if output == "" {
			output = "./logs/rn2903-service.log"
		}

		logDir := filepath.Dir(output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumber := &lumberjack.Logger{
			Filename:   output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// ParseLevel maps a configured level name to a zap level
func ParseLevel(name string) (zapcore.Level, error) {
	switch name {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", name)
	}
}

func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
}

// DeviceLogger wraps zap.Logger with radio-specific fields
type DeviceLogger struct {
	*zap.Logger
	address  string
	firmware string
}

// NewDeviceLogger creates a logger bound to one radio
func NewDeviceLogger(baseLogger *zap.Logger, address, firmware string) *DeviceLogger {
	logger := baseLogger.With(
		zap.String("device_address", address),
		zap.String("firmware", firmware),
		zap.String("component", "radio"),
	)

	return &DeviceLogger{
		Logger:   logger,
		address:  address,
		firmware: firmware,
	}
}

// LogCommand logs one command exchange
func (dl *DeviceLogger) LogCommand(command, status, payload string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("command", command),
		zap.String("status", status),
		zap.String("payload", payload),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		dl.Warn("Radio command failed", fields...)
	} else {
		dl.Info("Radio command completed", fields...)
	}
}

// LogConnection logs connection events
func (dl *DeviceLogger) LogConnection(action string, success bool, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Bool("success", success),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		dl.Error("Radio connection event", fields...)
	} else {
		dl.Info("Radio connection event", fields...)
	}
}

// LogStateChange logs a tracked state transition
func (dl *DeviceLogger) LogStateChange(from, to string) {
	dl.Debug("Radio state changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// OperationLogger provides structured logging for multi-command operations
type OperationLogger struct {
	logger      *zap.Logger
	operationID string
	startTime   time.Time
}

// NewOperationLogger creates an operation-specific logger
func NewOperationLogger(baseLogger *zap.Logger, operationType, operationID string) *OperationLogger {
	logger := baseLogger.With(
		zap.String("operation_type", operationType),
		zap.String("operation_id", operationID),
		zap.String("component", "operation"),
	)

	return &OperationLogger{
		logger:      logger,
		operationID: operationID,
		startTime:   time.Now(),
	}
}

// ID returns the operation id
func (ol *OperationLogger) ID() string {
	return ol.operationID
}

// Start logs operation start
func (ol *OperationLogger) Start(fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Time("start_time", ol.startTime),
	}, fields...)

	ol.logger.Info("Operation started", allFields...)
}

// Success logs successful operation completion
func (ol *OperationLogger) Success(fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Duration("duration", time.Since(ol.startTime)),
		zap.Bool("success", true),
	}, fields...)

	ol.logger.Info("Operation completed successfully", allFields...)
}

// Error logs operation failure
func (ol *OperationLogger) Error(err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Duration("duration", time.Since(ol.startTime)),
		zap.Bool("success", false),
		zap.Error(err),
	}, fields...)

	ol.logger.Error("Operation failed", allFields...)
}

// Progress logs operation progress
func (ol *OperationLogger) Progress(message string, progress float64, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Float64("progress", progress),
		zap.Duration("elapsed", time.Since(ol.startTime)),
	}, fields...)

	ol.logger.Debug(message, allFields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// APIRequest describes one completed HTTP request
type APIRequest struct {
	Method    string
	Route     string
	Path      string
	ClientIP  string
	UserAgent string
	RequestID string
	Status    int
	Duration  time.Duration
	// ErrorCode is the code of the error envelope, a radio reply code such as busy included
	ErrorCode string
	Errors    []string
	Websocket bool
}

// LogAPIRequest logs a completed request. Client errors log at warn, server errors at error.
func (sl *ServiceLogger) LogAPIRequest(req APIRequest) {
	level := zapcore.InfoLevel
	if req.Status >= 400 {
		level = zapcore.WarnLevel
	}
	if req.Status >= 500 {
		level = zapcore.ErrorLevel
	}

	ce := sl.Check(level, "API request")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("route", req.Route),
		zap.String("path", req.Path),
		zap.String("client_ip", req.ClientIP),
		zap.String("user_agent", req.UserAgent),
		zap.String("request_id", req.RequestID),
		zap.Int("status_code", req.Status),
		zap.Duration("duration", req.Duration),
	}
	if req.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", req.ErrorCode))
	}
	if len(req.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", req.Errors))
	}
	if req.Websocket {
		fields = append(fields, zap.Bool("websocket", true))
	}
	ce.Write(fields...)
}

// LogDatabaseQuery logs snapshot repository queries
func (sl *ServiceLogger) LogDatabaseQuery(query string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("query", query),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		sl.Error("Database query failed", fields...)
	} else {
		sl.Debug("Database query executed", fields...)
	}
}

// AuditLogger records operator actions that change the radio
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit-specific logger
func NewAuditLogger(baseLogger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: baseLogger.With(zap.String("component", "audit")),
	}
}

// LogDestructiveCommand logs an attempt to run sys eraseFW or sys factoryRESET
func (al *AuditLogger) LogDestructiveCommand(address, command string, safeMode, allowed bool) {
	level := zapcore.InfoLevel
	if !allowed {
		level = zapcore.WarnLevel
	}

	if ce := al.logger.Check(level, "Destructive command"); ce != nil {
		ce.Write(
			zap.String("device_address", address),
			zap.String("command", command),
			zap.Bool("safe_mode", safeMode),
			zap.Bool("allowed", allowed),
			zap.String("action", "destructive_command"),
		)
	}
}

// LogSafeModeChange logs the safety flag being toggled
func (al *AuditLogger) LogSafeModeChange(address string, enabled bool) {
	al.logger.Warn("Safe mode changed",
		zap.String("device_address", address),
		zap.Bool("enabled", enabled),
		zap.String("action", "safe_mode_change"),
	)
}

// LogConfigPush logs a radio configuration push
func (al *AuditLogger) LogConfigPush(address, operationID string, applied []string, ok bool) {
	al.logger.Info("Radio configuration pushed",
		zap.String("device_address", address),
		zap.String("operation_id", operationID),
		zap.Strings("applied", applied),
		zap.Bool("ok", ok),
		zap.String("action", "configure_radio"),
	)
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// LogError is a helper function for consistent error logging
func LogError(logger *zap.Logger, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Error(err)}, fields...)
	logger.Error(message, allFields...)
}

// CloseLogger flushes buffered entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
