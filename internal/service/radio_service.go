// internal/service/radio_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rn2903-service/internal/command"
	"rn2903-service/internal/config"
	"rn2903-service/internal/configsync"
	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/repository"
	"rn2903-service/internal/session"
	"rn2903-service/internal/trace"
	"rn2903-service/internal/utils"
)

var (
	// ErrNotStarted is returned by radio operations before Start succeeded
	ErrNotStarted = errors.New("radio service not started")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("radio service already started")

	// ErrHistoryUnavailable is returned by History when snapshots are kept in a file
	ErrHistoryUnavailable = errors.New("snapshot history requires the postgres persistence driver")
)

// Options configures a RadioService
type Options struct {
	Address              string
	Transport            protocol.Options
	FirmwareName         string
	FirmwareVersion      string
	SafeMode             bool
	CommandTimeout       time.Duration
	EventTimeout         time.Duration
	ResumeOnPauseFailure bool
	PushOnStart          bool

	// Recorder receives a wire trace when set
	Recorder trace.Recorder
}

// OptionsFromConfig maps the application configuration to service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Address: cfg.Device.Address,
		Transport: protocol.Options{
			BaudRate:    cfg.Device.BaudRate,
			DataBits:    cfg.Device.DataBits,
			StopBits:    cfg.Device.StopBits,
			Parity:      cfg.Device.Parity,
			ReadTimeout: cfg.Device.ReadTimeout,
		},
		FirmwareName:         cfg.Session.FirmwareName,
		FirmwareVersion:      cfg.Session.FirmwareVersion,
		SafeMode:             cfg.Session.SafeMode,
		CommandTimeout:       cfg.Session.CommandTimeout,
		EventTimeout:         cfg.Session.EventTimeout,
		ResumeOnPauseFailure: cfg.Session.ResumeOnPauseFailure,
		PushOnStart:          cfg.Session.PushOnStart,
	}
}

// StartReport describes what Start did
type StartReport struct {
	Firmware     model.Firmware           `json:"firmware"`
	PullFailures []configsync.StepFailure `json:"pull_failures,omitempty"`
	Restored     bool                     `json:"restored"`
	Push         *configsync.PushResult   `json:"push,omitempty"`
	SavedDefault bool                     `json:"saved_default"`
}

// StatusReport is a point-in-time view of the radio
type StatusReport struct {
	Address        string                  `json:"address"`
	ConnectionType model.ConnectionType    `json:"connection_type"`
	Started        bool                    `json:"started"`
	State          model.DeviceState       `json:"state,omitempty"`
	Firmware       model.Firmware          `json:"firmware"`
	SafeMode       bool                    `json:"safe_mode"`
	EventPending   bool                    `json:"event_pending"`
	Summary        model.RadioSummary      `json:"summary"`
	Transport      *protocol.ProtocolStats `json:"transport,omitempty"`
	LastPull       *time.Time              `json:"last_pull,omitempty"`
}

// RadioService owns the single session to one radio and serializes every caller onto it
type RadioService struct {
	mu sync.Mutex

	registry *protocol.Registry
	opts     Options
	repo     repository.SnapshotRepository
	bus      *EventBus

	baseLogger *zap.Logger
	logger     *utils.ServiceLogger
	audit      *utils.AuditLogger
	deviceLog  *utils.DeviceLogger

	transport protocol.Transport
	session   *session.Session
	sync      *configsync.Synchronizer
	safeMode  bool
	config    *model.DeviceConfig
	lastPull  time.Time
}

// NewRadioService creates a service for the radio at opts.Address
func NewRadioService(
	registry *protocol.Registry,
	opts Options,
	repo repository.SnapshotRepository,
	bus *EventBus,
	logger *zap.Logger,
) *RadioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = protocol.DefaultRegistry
	}
	if bus == nil {
		bus = NewEventBus(logger)
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = 30 * time.Second
	}

	return &RadioService{
		registry:   registry,
		opts:       opts,
		repo:       repo,
		bus:        bus,
		baseLogger: logger,
		logger:     utils.NewServiceLogger(logger, "radio-service"),
		audit:      utils.NewAuditLogger(logger),
		deviceLog:  utils.NewDeviceLogger(logger, opts.Address, opts.FirmwareName),
		safeMode:   opts.SafeMode,
	}
}

// Address returns the configured device address
func (rs *RadioService) Address() string {
	return rs.opts.Address
}

// Events returns the bus the service publishes on
func (rs *RadioService) Events() *EventBus {
	return rs.bus
}

// Start opens the session, reads the live configuration and reconciles it with the persisted snapshot.
// A persisted snapshot is pushed to the radio; without one the live configuration is saved as the default.
func (rs *RadioService) Start(ctx context.Context) (*StartReport, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session != nil {
		return nil, ErrAlreadyStarted
	}

	transport, err := rs.registry.CreateTransport(rs.opts.Address, rs.opts.Transport, rs.baseLogger)
	if err != nil {
		rs.deviceLog.LogConnection("create_transport", false, err)
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	if rs.opts.Recorder != nil {
		transport = trace.Wrap(transport, rs.opts.Address, rs.opts.Recorder)
	}

	sess := session.New(transport,
		session.WithFirmware(rs.opts.FirmwareName, rs.opts.FirmwareVersion),
		session.WithSafeMode(rs.safeMode),
		session.WithLogger(rs.baseLogger),
		session.WithStateListener(rs.onStateChange),
	)

	openCtx, cancel := context.WithTimeout(ctx, rs.opts.CommandTimeout)
	err = sess.Open(openCtx)
	cancel()
	if err != nil {
		rs.deviceLog.LogConnection("open", false, err)
		transport.Close()
		return nil, fmt.Errorf("failed to open radio session: %w", err)
	}

	rs.transport = transport
	rs.session = sess
	rs.deviceLog = utils.NewDeviceLogger(rs.baseLogger, rs.opts.Address, sess.Firmware().Banner)
	rs.sync = configsync.NewSynchronizer(&timedDispatcher{session: sess, timeout: rs.opts.CommandTimeout}, rs.baseLogger)
	rs.sync.ResumeOnPauseFailure = rs.opts.ResumeOnPauseFailure

	rs.deviceLog.LogConnection("open", true, nil)
	rs.publish(model.EventSessionOpened, "INFO", map[string]interface{}{
		"address":  rs.opts.Address,
		"firmware": sess.Firmware(),
	})

	report := &StartReport{Firmware: sess.Firmware()}

	live, failures, err := rs.pullLocked(ctx)
	if err != nil {
		return report, fmt.Errorf("initial configuration read failed: %w", err)
	}
	report.PullFailures = failures

	if rs.repo == nil {
		return report, nil
	}

	doc, err := rs.repo.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load persisted configuration: %w", err)
	}

	switch {
	case doc == nil || doc.DeviceConfig == nil:
		if err := rs.repo.Save(ctx, &model.PersistedConfig{Dev: rs.opts.Address, DeviceConfig: live.Clone()}); err != nil {
			return report, fmt.Errorf("failed to save default configuration: %w", err)
		}
		report.SavedDefault = true
	case rs.opts.PushOnStart:
		result, err := rs.pushLocked(ctx, doc.DeviceConfig)
		report.Restored = true
		report.Push = &result
		if err != nil {
			return report, fmt.Errorf("failed to restore persisted configuration: %w", err)
		}
	}

	return report, nil
}

// Stop closes the session
func (rs *RadioService) Stop() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session == nil {
		return nil
	}

	err := rs.session.Close()
	rs.deviceLog.LogConnection("close", err == nil, err)
	rs.publish(model.EventSessionClosed, "INFO", map[string]interface{}{"address": rs.opts.Address})

	rs.session = nil
	rs.transport = nil
	rs.sync = nil
	return err
}

// IsStarted reports whether a session is open
func (rs *RadioService) IsStarted() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.session != nil
}

// State returns the session state, or an empty state before Start
func (rs *RadioService) State() model.DeviceState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.session == nil {
		return ""
	}
	return rs.session.State()
}

// Validate checks a raw command line against the grammar without touching the radio
func (rs *RadioService) Validate(raw string) (command.Canonical, error) {
	return command.Validate(raw)
}

// Execute validates and runs one command. A validation failure is returned as the error
// and never reaches the radio; radio and transport failures are reported in the Result.
func (rs *RadioService) Execute(ctx context.Context, raw string) (session.Result, error) {
	c, err := command.Validate(raw)
	if err != nil {
		return session.Result{}, err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session == nil {
		return session.Result{}, ErrNotStarted
	}

	if session.IsDestructive(c) {
		rs.audit.LogDestructiveCommand(rs.opts.Address, c.String(), rs.safeMode, !rs.safeMode)
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout(c, rs.opts.CommandTimeout))
	defer cancel()

	start := time.Now()
	result := rs.session.Dispatch(cctx, c)
	rs.deviceLog.LogCommand(result.Command, string(result.Status), result.Payload, time.Since(start), result.AsError())

	if result.OK() && c.HasPrefix("radio", "set") && rs.config != nil {
		tokens := c.Tokens()
		rs.config.SetRadio(tokens[2], tokens[3])
	}

	severity := "INFO"
	if !result.OK() {
		severity = "WARNING"
	}
	rs.publish(model.EventCommandExecuted, severity, map[string]interface{}{
		"command": result.Command,
		"status":  result.Status,
		"code":    result.Code,
		"payload": result.Payload,
	})

	return result, nil
}

// commandTimeout extends the base timeout by the requested duration of sys sleep
func commandTimeout(c command.Canonical, base time.Duration) time.Duration {
	if !c.HasPrefix("sys", "sleep") {
		return base
	}
	ms, err := strconv.ParseInt(c.Tokens()[2], 10, 64)
	if err != nil {
		return base
	}
	return base + time.Duration(ms)*time.Millisecond
}

// NextEvent waits for the outcome of the last radio rx or radio tx
func (rs *RadioService) NextEvent(ctx context.Context) (model.RadioEvent, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session == nil {
		return model.RadioEvent{}, ErrNotStarted
	}

	ectx, cancel := context.WithTimeout(ctx, rs.opts.EventTimeout)
	defer cancel()

	event, err := rs.session.ReadEvent(ectx)
	if err != nil {
		if !errors.Is(err, session.ErrNoPendingEvent) {
			rs.publish(model.EventRadioError, "ERROR", map[string]interface{}{"error": err.Error()})
		}
		return event, err
	}

	switch event.Kind {
	case model.RadioEventRx:
		rs.publish(model.EventRadioRx, "INFO", map[string]interface{}{"data": event.Data})
	case model.RadioEventTxOK:
		rs.publish(model.EventRadioTxOK, "INFO", nil)
	default:
		rs.publish(model.EventRadioError, "WARNING", map[string]interface{}{"raw": event.Raw})
	}
	return event, nil
}

// Pull reads the full configuration from the radio
func (rs *RadioService) Pull(ctx context.Context) (*model.DeviceConfig, []configsync.StepFailure, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session == nil {
		return nil, nil, ErrNotStarted
	}
	cfg, failures, err := rs.pullLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Clone(), failures, nil
}

func (rs *RadioService) pullLocked(ctx context.Context) (*model.DeviceConfig, []configsync.StepFailure, error) {
	op := utils.NewOperationLogger(rs.baseLogger, "pull", uuid.NewString())
	op.Start(zap.Int("steps", configsync.TotalPullSteps()))

	rs.sync.Progress = func(done, total int) {
		if done%32 == 0 || done == total {
			op.Progress("Pull progress", float64(done)/float64(total), zap.Int("done", done))
		}
	}
	defer func() { rs.sync.Progress = nil }()

	cfg, failures, err := rs.sync.Pull(ctx)
	if err != nil {
		op.Error(err)
		rs.publish(model.EventConfigPulled, "ERROR", map[string]interface{}{
			"operation_id": op.ID(),
			"error":        err.Error(),
		})
		return nil, nil, err
	}

	rs.config = cfg
	rs.lastPull = time.Now()
	op.Success(zap.Int("failures", len(failures)))

	rs.publish(model.EventConfigPulled, severityFor(len(failures) == 0), map[string]interface{}{
		"operation_id": op.ID(),
		"failures":     len(failures),
	})

	if history, ok := rs.repo.(repository.SnapshotHistory); ok {
		if err := history.Record(ctx, &repository.Snapshot{
			Dev:          rs.opts.Address,
			Firmware:     rs.session.Firmware().Banner,
			Source:       repository.SourcePull,
			DeviceConfig: cfg.Clone(),
		}); err != nil {
			utils.LogError(rs.logger.Logger, "Failed to record pull snapshot", err)
		}
	}

	return cfg, failures, nil
}

// Push writes cfg's radio settings and persists the resulting configuration when it fully succeeded
func (rs *RadioService) Push(ctx context.Context, cfg *model.DeviceConfig) (configsync.PushResult, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.session == nil {
		return configsync.PushResult{}, ErrNotStarted
	}
	return rs.pushLocked(ctx, cfg)
}

func (rs *RadioService) pushLocked(ctx context.Context, cfg *model.DeviceConfig) (configsync.PushResult, error) {
	op := utils.NewOperationLogger(rs.baseLogger, "push", uuid.NewString())
	op.Start()

	result, err := rs.sync.Push(ctx, cfg)
	rs.audit.LogConfigPush(rs.opts.Address, op.ID(), result.Applied, result.OK)

	if rs.config == nil {
		rs.config = model.NewDeviceConfig()
	}
	if cfg != nil {
		for _, key := range result.Applied {
			rs.config.SetRadio(key, cfg.Radio[key])
		}
	}

	if err != nil {
		op.Error(err)
		rs.publish(model.EventConfigPushed, "ERROR", map[string]interface{}{
			"operation_id": op.ID(),
			"error":        err.Error(),
		})
		return result, err
	}

	rs.publish(model.EventConfigPushed, severityFor(result.OK), map[string]interface{}{
		"operation_id": op.ID(),
		"ok":           result.OK,
		"applied":      result.Applied,
	})

	if !result.OK {
		op.Error(result.FirstFailure(), zap.Strings("applied", result.Applied))
		return result, nil
	}
	op.Success(zap.Strings("applied", result.Applied))

	if err := rs.persistLocked(ctx); err != nil {
		utils.LogError(rs.logger.Logger, "Failed to persist pushed configuration", err)
		return result, fmt.Errorf("configuration applied but not persisted: %w", err)
	}
	return result, nil
}

func (rs *RadioService) persistLocked(ctx context.Context) error {
	if rs.repo == nil {
		return nil
	}
	snapshot := rs.config.Clone()

	if history, ok := rs.repo.(repository.SnapshotHistory); ok {
		return history.Record(ctx, &repository.Snapshot{
			Dev:          rs.opts.Address,
			Firmware:     rs.session.Firmware().Banner,
			Source:       repository.SourcePush,
			DeviceConfig: snapshot,
		})
	}
	return rs.repo.Save(ctx, &model.PersistedConfig{Dev: rs.opts.Address, DeviceConfig: snapshot})
}

// Config returns the last known configuration
func (rs *RadioService) Config() (*model.DeviceConfig, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.config == nil {
		return nil, ErrNotStarted
	}
	return rs.config.Clone(), nil
}

// SafeMode returns the safety flag
func (rs *RadioService) SafeMode() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.safeMode
}

// SetSafeMode toggles blocking of destructive commands
func (rs *RadioService) SetSafeMode(enabled bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.safeMode == enabled {
		return
	}
	rs.safeMode = enabled
	if rs.session != nil {
		rs.session.SetSafeMode(enabled)
	}
	rs.audit.LogSafeModeChange(rs.opts.Address, enabled)
	rs.publish(model.EventSafeModeChange, "WARNING", map[string]interface{}{"enabled": enabled})
}

// Status reports the session state and a unit-converted summary of the radio settings.
// The supply voltage is read live unless a radio exchange is pending.
func (rs *RadioService) Status(ctx context.Context) StatusReport {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	report := StatusReport{
		Address:        rs.opts.Address,
		ConnectionType: model.ConnectionTypeForAddress(rs.opts.Address),
		Started:        rs.session != nil,
		SafeMode:       rs.safeMode,
	}
	if !rs.lastPull.IsZero() {
		lastPull := rs.lastPull
		report.LastPull = &lastPull
	}
	if rs.session == nil {
		report.Summary = model.Summarize(rs.config, "")
		return report
	}

	report.State = rs.session.State()
	report.Firmware = rs.session.Firmware()
	report.EventPending = rs.session.EventPending()

	vdd := ""
	if !report.EventPending && report.State != model.StateError {
		cctx, cancel := context.WithTimeout(ctx, rs.opts.CommandTimeout)
		result := rs.session.Dispatch(cctx, cmdVdd)
		cancel()
		if result.OK() {
			vdd = result.Payload
		}
	}
	report.Summary = model.Summarize(rs.config, vdd)

	if sp, ok := rs.transport.(protocol.StatsProvider); ok {
		stats := sp.Stats()
		report.Transport = &stats
	}
	return report
}

var cmdVdd = command.MustValidate("sys get vdd")

// History lists persisted snapshots, newest first
func (rs *RadioService) History(ctx context.Context, limit int) ([]*repository.Snapshot, error) {
	history, ok := rs.repo.(repository.SnapshotHistory)
	if !ok {
		return nil, ErrHistoryUnavailable
	}
	return history.List(ctx, rs.opts.Address, limit)
}

// onStateChange runs inside session calls, so rs.mu is already held
func (rs *RadioService) onStateChange(from, to model.DeviceState) {
	rs.deviceLog.LogStateChange(string(from), string(to))
	severity := "INFO"
	if to == model.StateError {
		severity = "ERROR"
	}
	rs.publish(model.EventStateChange, severity, map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

func (rs *RadioService) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	rs.bus.Publish(model.NewServiceEvent(eventType, severity, data))
}

func severityFor(ok bool) string {
	if ok {
		return "INFO"
	}
	return "WARNING"
}

// timedDispatcher bounds every command of a synchronizer sequence with its own timeout
type timedDispatcher struct {
	session *session.Session
	timeout time.Duration
}

func (d *timedDispatcher) Dispatch(ctx context.Context, c command.Canonical) session.Result {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.session.Dispatch(cctx, c)
}

func (d *timedDispatcher) State() model.DeviceState {
	return d.session.State()
}
