// internal/session/errors.go
package session

import (
	"errors"
	"fmt"

	"rn2903-service/internal/model"
)

var (
	// ErrStateError is returned for every command once the session is in the error state
	ErrStateError = errors.New("session is in error state")

	// ErrSafetyBlocked is returned for destructive commands while safe mode is on
	ErrSafetyBlocked = errors.New("destructive command blocked by safe mode")

	// ErrNoPendingEvent is returned by ReadEvent when no radio rx or tx is outstanding
	ErrNoPendingEvent = errors.New("no radio exchange pending")

	// ErrInvalidCommand is returned when an unvalidated command reaches Dispatch
	ErrInvalidCommand = errors.New("command was not produced by the validator")

	// ErrEventPending is returned when a command other than radio rxstop is
	// dispatched before the outcome of radio rx or radio tx has been read
	ErrEventPending = errors.New("radio exchange outcome not yet read")
)

// ResultStatus classifies the outcome of a dispatched command
type ResultStatus string

const (
	StatusOK             ResultStatus = "ok"
	StatusDeviceError    ResultStatus = "device_error"
	StatusTransportError ResultStatus = "transport_error"
	StatusStateError     ResultStatus = "state_error"
)

// Result is the outcome of one command exchange
type Result struct {
	Command string          `json:"command"`
	Status  ResultStatus    `json:"status"`
	Code    model.ErrorCode `json:"code,omitempty"`
	Payload string          `json:"payload,omitempty"`
	Err     error           `json:"-"`
}

// OK reports whether the command succeeded
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// AsError returns the failure as a typed error, or nil on success
func (r Result) AsError() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusStateError:
		return ErrStateError
	case StatusDeviceError:
		switch r.Code {
		case model.CodeSafetyBlocked:
			return fmt.Errorf("%s: %w", r.Command, ErrSafetyBlocked)
		case model.CodeInvalidCommand:
			return fmt.Errorf("%s: %w", r.Command, ErrInvalidCommand)
		case model.CodeEventPending:
			return fmt.Errorf("%s: %w", r.Command, ErrEventPending)
		}
		return &DeviceError{Command: r.Command, Code: r.Code, Response: r.Payload}
	default:
		return &TransportError{Command: r.Command, Err: r.Err}
	}
}

// DeviceError is a non-ok reply from the radio
type DeviceError struct {
	Command  string
	Code     model.ErrorCode
	Response string
}

func (e *DeviceError) Error() string {
	if e.Response != "" && e.Response != string(e.Code) {
		return fmt.Sprintf("%s: device replied %s (%q)", e.Command, e.Code, e.Response)
	}
	return fmt.Sprintf("%s: device replied %s", e.Command, e.Code)
}

// TransportError is a failed write or read
type TransportError struct {
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func okResult(command, payload string) Result {
	return Result{Command: command, Status: StatusOK, Code: model.CodeOK, Payload: payload}
}

func deviceError(command string, code model.ErrorCode, response string) Result {
	return Result{Command: command, Status: StatusDeviceError, Code: code, Payload: response}
}

func transportError(command string, err error) Result {
	return Result{Command: command, Status: StatusTransportError, Err: err}
}

func stateError(command string) Result {
	return Result{Command: command, Status: StatusStateError, Err: ErrStateError}
}
