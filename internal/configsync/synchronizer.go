// internal/configsync/synchronizer.go
package configsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rn2903-service/internal/command"
	"rn2903-service/internal/model"
	"rn2903-service/internal/session"
)

// Dispatcher is the part of a session the synchronizer drives
type Dispatcher interface {
	Dispatch(ctx context.Context, c command.Canonical) session.Result
	State() model.DeviceState
}

// ProgressFunc is called after each step of a pull with the steps done and the total
type ProgressFunc func(done, total int)

// Synchronizer moves configuration snapshots between a radio and memory.
// It issues multi-command sequences and must be the only caller of the
// dispatcher while a sequence runs.
type Synchronizer struct {
	session Dispatcher
	logger  *zap.Logger

	// ResumeOnPauseFailure makes Push issue mac resume even when mac pause failed
	ResumeOnPauseFailure bool

	// Progress is optional
	Progress ProgressFunc
}

// NewSynchronizer creates a synchronizer for one session
func NewSynchronizer(d Dispatcher, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		session: d,
		logger:  logger.With(zap.String("component", "configsync")),
	}
}

var (
	cmdPause  = command.MustValidate("mac pause")
	cmdResume = command.MustValidate("mac resume")
	cmdSave   = command.MustValidate("mac save")
)

type readStep struct {
	group string
	key   string
	cmd   command.Canonical
	nvm   bool
}

// readSteps is the fixed pull order: version, NVM window, hardware EUI, mac and radio settings
var readSteps = buildReadSteps()

func buildReadSteps() []readStep {
	steps := []readStep{
		{group: model.GroupSystem, key: "ver", cmd: command.MustValidate("sys get ver")},
		{group: model.GroupSystem, key: "nvm", nvm: true},
		{group: model.GroupSystem, key: "hweui", cmd: command.MustValidate("sys get hweui")},
	}
	for _, key := range command.MacSettings {
		steps = append(steps, readStep{group: model.GroupMac, key: key, cmd: command.MustValidate("mac get " + key)})
	}
	for _, key := range command.RadioSettings {
		steps = append(steps, readStep{group: model.GroupRadio, key: key, cmd: command.MustValidate("radio get " + key)})
	}
	return steps
}

var nvmCommands = buildNVMCommands()

func buildNVMCommands() []command.Canonical {
	cmds := make([]command.Canonical, 0, command.NVMEnd-command.NVMStart+1)
	for addr := command.NVMStart; addr <= command.NVMEnd; addr++ {
		cmds = append(cmds, command.MustValidate(fmt.Sprintf("sys get nvm %03x", addr)))
	}
	return cmds
}

// TotalPullSteps is the number of get commands a pull issues
func TotalPullSteps() int {
	return len(readSteps) - 1 + len(nvmCommands)
}

// store keeps a value read by step. A group the snapshot does not know is reported as a failure.
func (s *Synchronizer) store(cfg *model.DeviceConfig, step readStep, value string) *StepFailure {
	err := cfg.Set(step.group, step.key, value)
	if err == nil {
		return nil
	}
	s.logger.Error("Config value not stored",
		zap.String("group", step.group),
		zap.String("key", step.key),
		zap.Error(err),
	)
	return &StepFailure{Command: step.cmd.String(), Message: err.Error(), Err: err}
}

// Pull reads the full configuration from the radio.
// Failing reads are collected and leave their slot unset; a failing NVM byte
// is kept in place as model.NVMGapMarker. mac resume is always issued once
// mac pause succeeded. The error is non-nil only when mac pause failed.
func (s *Synchronizer) Pull(ctx context.Context) (*model.DeviceConfig, []StepFailure, error) {
	pause := s.session.Dispatch(ctx, cmdPause)
	if !pause.OK() {
		failure := newStepFailure(pause)
		s.logger.Error("Pull aborted, mac pause failed", zap.Error(failure))
		return nil, nil, failure
	}

	cfg := model.NewDeviceConfig()
	var failures []StepFailure
	total := TotalPullSteps()
	done := 0

	for _, step := range readSteps {
		if step.nvm {
			nvm, nvmFailures := s.readNVM(ctx, &done, total)
			failures = append(failures, nvmFailures...)
			if failure := s.store(cfg, step, nvm); failure != nil {
				failures = append(failures, *failure)
			}
			continue
		}

		result := s.session.Dispatch(ctx, step.cmd)
		done++
		s.report(done, total)
		if !result.OK() {
			failures = append(failures, *newStepFailure(result))
			s.logger.Warn("Config read failed",
				zap.String("command", result.Command),
				zap.Error(result.AsError()),
			)
			continue
		}
		if failure := s.store(cfg, step, result.Payload); failure != nil {
			failures = append(failures, *failure)
		}
	}

	resume := s.session.Dispatch(ctx, cmdResume)
	if !resume.OK() {
		failures = append(failures, *newStepFailure(resume))
		s.logger.Error("mac resume failed after pull", zap.Error(resume.AsError()))
	}

	s.logger.Info("Configuration pulled",
		zap.Int("steps", total),
		zap.Int("failures", len(failures)),
	)
	return cfg, failures, nil
}

func (s *Synchronizer) readNVM(ctx context.Context, done *int, total int) (string, []StepFailure) {
	var b strings.Builder
	b.Grow(2 * len(nvmCommands))
	var failures []StepFailure

	for _, cmd := range nvmCommands {
		result := s.session.Dispatch(ctx, cmd)
		*done++
		s.report(*done, total)

		value, ok := nvmByte(result)
		if !ok {
			if result.OK() {
				result = session.Result{
					Command: result.Command,
					Status:  session.StatusDeviceError,
					Code:    model.CodeUnexpectedResponse,
					Payload: result.Payload,
				}
			}
			failures = append(failures, *newStepFailure(result))
			b.WriteString(model.NVMGapMarker)
			continue
		}
		b.WriteString(value)
	}

	if len(failures) > 0 {
		s.logger.Warn("NVM read incomplete", zap.Int("failed_bytes", len(failures)))
	}
	return b.String(), failures
}

// nvmByte normalizes a successful NVM reply to two upper-case hex digits
func nvmByte(result session.Result) (string, bool) {
	if !result.OK() {
		return "", false
	}
	p := result.Payload
	if len(p) == 0 || len(p) > 2 {
		return "", false
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return "", false
		}
	}
	if len(p) == 1 {
		p = "0" + p
	}
	return strings.ToUpper(p), true
}

func (s *Synchronizer) report(done, total int) {
	if s.Progress != nil {
		s.Progress(done, total)
	}
}

// PushResult is the outcome of a push
type PushResult struct {
	OK        bool         `json:"ok"`
	Applied   []string     `json:"applied"`
	Failed    *StepFailure `json:"failed,omitempty"`
	Saved     bool         `json:"saved"`
	SaveErr   *StepFailure `json:"save_error,omitempty"`
	Resumed   bool         `json:"resumed"`
	ResumeErr *StepFailure `json:"resume_error,omitempty"`
}

// FirstFailure returns the earliest failing step, if any
func (r PushResult) FirstFailure() *StepFailure {
	switch {
	case r.Failed != nil:
		return r.Failed
	case r.SaveErr != nil:
		return r.SaveErr
	default:
		return r.ResumeErr
	}
}

// ErrNoConfig is returned by Push for a nil snapshot
var ErrNoConfig = errors.New("no configuration to push")

// Push writes the radio settings of cfg to the radio and saves them.
// Every setting is validated first; nothing is sent if any is invalid.
// Sets run in sorted key order and stop at the first failure. mac save is
// only issued when every set succeeded and its failure does not roll back.
// mac resume is issued exactly once after a successful mac pause.
//
// The returned error is non-nil when the push was aborted before any set:
// an *InvalidConfigError, or a *StepFailure for mac pause.
func (s *Synchronizer) Push(ctx context.Context, cfg *model.DeviceConfig) (PushResult, error) {
	result := PushResult{}
	if cfg == nil {
		return result, ErrNoConfig
	}

	keys := cfg.Radio.Keys()
	sets := make([]command.Canonical, 0, len(keys))
	var invalid []InvalidSetting
	for _, key := range keys {
		value := cfg.Radio[key]
		c, err := command.ValidateTokens([]string{"radio", "set", key, value})
		if err != nil {
			invalid = append(invalid, InvalidSetting{Key: key, Value: value, Err: err})
			continue
		}
		sets = append(sets, c)
	}
	if len(invalid) > 0 {
		err := &InvalidConfigError{Settings: invalid}
		s.logger.Error("Push rejected", zap.Error(err))
		return result, err
	}

	pause := s.session.Dispatch(ctx, cmdPause)
	if !pause.OK() {
		result.Failed = newStepFailure(pause)
		s.logger.Error("Push aborted, mac pause failed", zap.Error(result.Failed))
		if s.ResumeOnPauseFailure {
			s.resume(ctx, &result)
		}
		return result, result.Failed
	}

	for i, c := range sets {
		res := s.session.Dispatch(ctx, c)
		if !res.OK() {
			result.Failed = newStepFailure(res)
			s.logger.Error("Radio set failed",
				zap.String("command", c.String()),
				zap.Int("applied", len(result.Applied)),
				zap.Error(result.Failed),
			)
			break
		}
		result.Applied = append(result.Applied, keys[i])
	}

	if result.Failed == nil {
		save := s.session.Dispatch(ctx, cmdSave)
		if save.OK() {
			result.Saved = true
		} else {
			result.SaveErr = newStepFailure(save)
			s.logger.Error("mac save failed", zap.Error(result.SaveErr))
		}
	}

	s.resume(ctx, &result)

	result.OK = result.Failed == nil && result.Saved && result.Resumed
	s.logger.Info("Configuration pushed",
		zap.Bool("ok", result.OK),
		zap.Strings("applied", result.Applied),
	)
	return result, nil
}

func (s *Synchronizer) resume(ctx context.Context, result *PushResult) {
	res := s.session.Dispatch(ctx, cmdResume)
	if res.OK() {
		result.Resumed = true
		return
	}
	result.ResumeErr = newStepFailure(res)
	s.logger.Error("mac resume failed", zap.Error(result.ResumeErr))
}
