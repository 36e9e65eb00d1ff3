// internal/configsync/errors.go
package configsync

import (
	"fmt"
	"strings"

	"rn2903-service/internal/model"
	"rn2903-service/internal/session"
)

// StepFailure records one command of a sequence that did not succeed
type StepFailure struct {
	Command string               `json:"command"`
	Status  session.ResultStatus `json:"status"`
	Code    model.ErrorCode      `json:"code,omitempty"`
	Message string               `json:"message"`
	Err     error                `json:"-"`
}

func newStepFailure(result session.Result) *StepFailure {
	err := result.AsError()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &StepFailure{
		Command: result.Command,
		Status:  result.Status,
		Code:    result.Code,
		Message: msg,
		Err:     err,
	}
}

func (f *StepFailure) Error() string {
	return fmt.Sprintf("step %q failed: %s", f.Command, f.Message)
}

func (f *StepFailure) Unwrap() error {
	return f.Err
}

// InvalidSetting is a radio setting that does not pass validation
type InvalidSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Err   error  `json:"-"`
}

// InvalidConfigError lists every radio setting rejected before a push
type InvalidConfigError struct {
	Settings []InvalidSetting
}

func (e *InvalidConfigError) Error() string {
	parts := make([]string, 0, len(e.Settings))
	for _, s := range e.Settings {
		parts = append(parts, fmt.Sprintf("%s=%q: %v", s.Key, s.Value, s.Err))
	}
	return "invalid radio settings: " + strings.Join(parts, "; ")
}
