// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rn2903-service/internal/command"
	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
)

const (
	// MaxLineLength caps a single reply; longer replies are truncated
	MaxLineLength = 256

	lineTerminator = "\r\n"

	awaitingFirmware = "awaiting firmware"
)

// FirmwareMismatchError is returned by Open when the radio reports an unexpected firmware
type FirmwareMismatchError struct {
	Expected model.Firmware
	Reported string
}

func (e *FirmwareMismatchError) Error() string {
	return fmt.Sprintf("firmware mismatch: expected %s %s, radio reported %q",
		e.Expected.Name, e.Expected.Version, e.Reported)
}

// Session is the conversation with one radio over one transport.
// It is not safe for concurrent use; callers serialize access.
type Session struct {
	transport protocol.Transport
	config    Config
	logger    *zap.Logger

	state    model.DeviceState
	safeMode bool
	firmware model.Firmware

	// two-phase exchange awaiting ReadEvent
	pending    model.DeviceState
	pendingAck bool
}

// New creates a session over transport. The transport is opened by Open.
func New(transport protocol.Transport, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		transport: transport,
		config:    cfg,
		logger:    cfg.Logger.With(zap.String("component", "session")),
		state:     model.StateIdle,
		safeMode:  cfg.SafeMode,
	}
}

// Open opens the transport and checks the running firmware.
// Any failure leaves the session in the error state for good.
func (s *Session) Open(ctx context.Context) error {
	if s.state == model.StateError {
		return ErrStateError
	}

	if err := s.transport.Open(ctx); err != nil {
		s.setState(model.StateError)
		s.logger.Error("Failed to open transport", zap.Error(err))
		return &TransportError{Command: "open", Err: err}
	}

	result := s.Dispatch(ctx, command.MustValidate("sys get ver"))
	if !result.OK() {
		s.setState(model.StateError)
		s.logger.Error("Failed to read firmware version", zap.Error(result.AsError()))
		return result.AsError()
	}

	fw, ok := model.ParseBanner(result.Payload)
	if !ok || fw.Name != s.config.Firmware.Name || fw.Version != s.config.Firmware.Version {
		s.setState(model.StateError)
		err := &FirmwareMismatchError{Expected: s.config.Firmware, Reported: result.Payload}
		s.logger.Error("Firmware check failed", zap.Error(err))
		return err
	}

	s.firmware = fw
	s.setState(model.StateIdle)
	s.logger.Info("Session opened",
		zap.String("firmware", fw.Name),
		zap.String("version", fw.Version),
	)
	return nil
}

// Close closes the transport
func (s *Session) Close() error {
	return s.transport.Close()
}

// State returns the tracked device state
func (s *Session) State() model.DeviceState {
	return s.state
}

// Firmware returns the firmware reported during Open
func (s *Session) Firmware() model.Firmware {
	return s.firmware
}

// SafeMode returns the safety flag
func (s *Session) SafeMode() bool {
	return s.safeMode
}

// SetSafeMode enables or disables the safety flag
func (s *Session) SetSafeMode(enabled bool) {
	if s.safeMode != enabled {
		s.logger.Warn("Safe mode changed", zap.Bool("enabled", enabled))
	}
	s.safeMode = enabled
}

// EventPending reports whether a radio rx or tx outcome is still to be read
func (s *Session) EventPending() bool {
	return s.pending != ""
}

// Execute validates raw and dispatches it. A validation error never reaches the transport.
func (s *Session) Execute(ctx context.Context, raw string) (Result, error) {
	c, err := command.Validate(raw)
	if err != nil {
		return Result{}, err
	}
	return s.Dispatch(ctx, c), nil
}

// Dispatch sends a validated command and interprets the reply according to its policy
func (s *Session) Dispatch(ctx context.Context, c command.Canonical) Result {
	cmd := c.String()

	if s.state == model.StateError {
		return stateError(cmd)
	}
	if c.IsZero() {
		return deviceError(cmd, model.CodeInvalidCommand, "")
	}

	entry := lookupPolicy(c)
	if entry.destructive && s.safeMode {
		s.logger.Warn("Destructive command blocked", zap.String("command", cmd))
		return deviceError(cmd, model.CodeSafetyBlocked, "")
	}

	// only radio rxstop may interrupt an exchange whose outcome is unread
	if s.pending != "" {
		if entry.policy != policyRxStop || s.pending != model.StateRadioRx {
			s.logger.Warn("Command rejected while radio exchange pending",
				zap.String("command", cmd),
				zap.String("pending", string(s.pending)),
			)
			return deviceError(cmd, model.CodeEventPending, "")
		}
		if s.pendingAck {
			ack, err := s.awaitLine(ctx)
			if err != nil {
				return s.readFailure(cmd, err)
			}
			s.pendingAck = false
			if ack != string(model.CodeOK) {
				s.pending = ""
				s.setState(model.StateMacPaused)
			}
		}
	}

	start := time.Now()
	if err := s.transport.Write(ctx, []byte(cmd+lineTerminator)); err != nil {
		s.logger.Error("Command write failed", zap.String("command", cmd), zap.Error(err))
		return transportError(cmd, err)
	}

	var result Result
	switch entry.policy {
	case policySleep:
		result = s.handleSleep(ctx, c)
	case policyBanner:
		result = s.handleBanner(ctx, cmd)
	case policyWriteOnly:
		s.setState(model.StateWaitingFirmware)
		result = okResult(cmd, awaitingFirmware)
	case policyTwoPhase:
		result = s.handleTwoPhase(c)
	case policyRxStop:
		result = s.handleRxStop(ctx, c)
	default:
		result = s.handleGeneric(ctx, c)
	}

	s.logger.Debug("Command dispatched",
		zap.String("command", cmd),
		zap.String("policy", entry.policy.String()),
		zap.String("status", string(result.Status)),
		zap.String("code", string(result.Code)),
		zap.String("payload", result.Payload),
		zap.Duration("duration", time.Since(start)),
	)
	return result
}

func (s *Session) handleSleep(ctx context.Context, c command.Canonical) Result {
	cmd := c.String()
	previous := s.state
	s.setState(model.StateSleep)

	line, err := s.awaitLine(ctx)
	if err != nil {
		s.setState(previous)
		return s.readFailure(cmd, err)
	}
	if line != string(model.CodeOK) {
		s.setState(previous)
		return deviceError(cmd, codeFor(line), line)
	}

	s.setState(model.StateIdle)
	return okResult(cmd, c.Tokens()[2])
}

func (s *Session) handleBanner(ctx context.Context, cmd string) Result {
	previous := s.state
	s.setState(model.StateBooting)

	line, err := s.readLine(ctx)
	if err != nil {
		s.setState(previous)
		return s.readFailure(cmd, err)
	}

	fw, ok := model.ParseBanner(line)
	if !ok || fw.Name != s.config.Firmware.Name {
		s.setState(previous)
		if model.IsDeviceErrorCode(line) {
			return deviceError(cmd, model.ErrorCode(line), line)
		}
		return deviceError(cmd, model.CodeInvalidBanner, line)
	}

	s.setState(model.StateIdle)
	return okResult(cmd, line)
}

func (s *Session) handleTwoPhase(c command.Canonical) Result {
	target := model.StateRadioRx
	if c.HasPrefix("radio", "tx") {
		target = model.StateRadioTx
	}
	s.pending = target
	s.pendingAck = true
	s.setState(target)
	return okResult(c.String(), "")
}

func (s *Session) handleGeneric(ctx context.Context, c command.Canonical) Result {
	line, err := s.readLine(ctx)
	return s.genericReply(c, line, err)
}

// handleRxStop ends a continuous receive. A frame that was already on the
// wire when the stop arrived is logged and dropped.
func (s *Session) handleRxStop(ctx context.Context, c command.Canonical) Result {
	stopping := s.pending != ""
	s.pending = ""

	line, err := s.readLine(ctx)
	if err == nil && stopping {
		if event, perr := parseRadioEvent(c.String(), line); perr == nil {
			s.logger.Warn("Radio event dropped by rxstop",
				zap.String("kind", string(event.Kind)),
				zap.String("data", event.Data),
			)
			line, err = s.readLine(ctx)
		}
	}
	return s.genericReply(c, line, err)
}

func (s *Session) genericReply(c command.Canonical, line string, err error) Result {
	cmd := c.String()
	if err != nil {
		return s.readFailure(cmd, err)
	}

	if model.IsDeviceErrorCode(line) {
		return deviceError(cmd, model.ErrorCode(line), line)
	}

	s.applySideEffects(c)

	if line == string(model.CodeOK) {
		return okResult(cmd, "")
	}
	return okResult(cmd, line)
}

// applySideEffects advances the state after a successful generic command
func (s *Session) applySideEffects(c command.Canonical) {
	switch {
	case c.HasPrefix("mac", "pause"), c.HasPrefix("radio", "rxstop"):
		s.setState(model.StateMacPaused)
	case c.HasPrefix("mac", "resume"):
		s.setState(model.StateMacActive)
	case c.HasPrefix("mac", "save"):
		s.setState(model.StateMacSaving)
		s.setState(model.StateMacActive)
	case c.HasPrefix("mac", "reset"):
		s.setState(model.StateMacBooting)
		s.setState(model.StateMacActive)
	}
}

// ReadEvent reads the outcome of the last radio rx or radio tx.
// The acknowledgement line is consumed first if it has not been read yet.
func (s *Session) ReadEvent(ctx context.Context) (model.RadioEvent, error) {
	if s.state == model.StateError {
		return model.RadioEvent{}, ErrStateError
	}
	if s.pending == "" {
		return model.RadioEvent{}, ErrNoPendingEvent
	}

	cmd := "radio rx"
	if s.pending == model.StateRadioTx {
		cmd = "radio tx"
	}

	if s.pendingAck {
		ack, err := s.awaitLine(ctx)
		if err != nil {
			return model.RadioEvent{}, s.readFailure(cmd, err).AsError()
		}
		if ack != string(model.CodeOK) {
			s.pending = ""
			s.pendingAck = false
			s.setState(model.StateMacPaused)
			return model.RadioEvent{}, &DeviceError{Command: cmd, Code: codeFor(ack), Response: ack}
		}
		s.pendingAck = false
	}

	line, err := s.awaitLine(ctx)
	if err != nil {
		// the exchange stays pending so the caller can wait again
		return model.RadioEvent{}, s.readFailure(cmd, err).AsError()
	}

	event, err := parseRadioEvent(cmd, line)
	s.pending = ""
	s.setState(model.StateMacPaused)
	return event, err
}

func parseRadioEvent(cmd, line string) (model.RadioEvent, error) {
	event := model.RadioEvent{Raw: line, ReceivedAt: time.Now()}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return event, &DeviceError{Command: cmd, Code: model.CodeUnexpectedResponse, Response: line}
	}

	switch model.RadioEventKind(fields[0]) {
	case model.RadioEventRx:
		if len(fields) != 2 {
			return event, &DeviceError{Command: cmd, Code: model.CodeUnexpectedResponse, Response: line}
		}
		event.Kind = model.RadioEventRx
		event.Data = fields[1]
	case model.RadioEventTxOK:
		event.Kind = model.RadioEventTxOK
	case model.RadioEventError:
		event.Kind = model.RadioEventError
	default:
		return event, &DeviceError{Command: cmd, Code: model.CodeUnexpectedResponse, Response: line}
	}
	return event, nil
}

// readLine reads one byte at a time until LF or MaxLineLength bytes.
// It gives up after the first read window that passes in silence.
func (s *Session) readLine(ctx context.Context) (string, error) {
	return s.collectLine(ctx, false)
}

// awaitLine is readLine for replies that legitimately take longer than one
// read window: it keeps reading until ctx expires. Without a ctx deadline it
// behaves like readLine.
func (s *Session) awaitLine(ctx context.Context) (string, error) {
	_, bounded := ctx.Deadline()
	return s.collectLine(ctx, bounded)
}

func (s *Session) collectLine(ctx context.Context, untilDeadline bool) (string, error) {
	buf := make([]byte, 0, MaxLineLength)
	for len(buf) < MaxLineLength {
		b, err := s.transport.ReadByte(ctx)
		if err != nil {
			if untilDeadline && errors.Is(err, protocol.ErrReadTimeout) && ctx.Err() == nil {
				continue
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		buf = append(buf, b)
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}

// readFailure maps a read error to a Result. Timeouts are recoverable,
// a transport that went away is not.
func (s *Session) readFailure(cmd string, err error) Result {
	if !isRecoverable(err) {
		s.logger.Error("Transport lost", zap.String("command", cmd), zap.Error(err))
		s.setState(model.StateError)
	}
	return transportError(cmd, err)
}

func isRecoverable(err error) bool {
	return errors.Is(err, protocol.ErrReadTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func codeFor(line string) model.ErrorCode {
	if model.IsDeviceErrorCode(line) {
		return model.ErrorCode(line)
	}
	return model.CodeUnexpectedResponse
}

func (s *Session) setState(to model.DeviceState) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.logger.Debug("State changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if s.config.StateListener != nil {
		s.config.StateListener(from, to)
	}
}
