// internal/model/device.go
package model

import "strings"

// DeviceState represents the tracked operating state of the radio
type DeviceState string

const (
	StateSleep           DeviceState = "sleep"
	StateIdle            DeviceState = "idle"
	StateWaitingFirmware DeviceState = "waiting_firmware"
	StateBooting         DeviceState = "booting"
	StateMacActive       DeviceState = "mac_active"
	StateMacPaused       DeviceState = "mac_paused"
	StateRadioTx         DeviceState = "radio_tx"
	StateRadioRx         DeviceState = "radio_rx"
	StateMacSaving       DeviceState = "mac_saving"
	StateMacBooting      DeviceState = "mac_booting"
	StateError           DeviceState = "error"
)

// ConnectionType represents how the radio is reached
type ConnectionType string

const (
	ConnectionTypeSerial    ConnectionType = "SERIAL"
	ConnectionTypeTCP       ConnectionType = "TCP"
	ConnectionTypeSimulator ConnectionType = "SIMULATOR"
)

// ConnectionTypeForAddress derives the transport kind from a transport address.
// tcp://host:port selects a raw TCP bridge, sim:// the in-memory simulator,
// anything else is a serial device path.
func ConnectionTypeForAddress(address string) ConnectionType {
	switch {
	case strings.HasPrefix(address, "tcp://"):
		return ConnectionTypeTCP
	case strings.HasPrefix(address, "sim://"):
		return ConnectionTypeSimulator
	default:
		return ConnectionTypeSerial
	}
}

// ErrorCode is a wire-level response code returned by the radio
type ErrorCode string

const (
	CodeOK                  ErrorCode = "ok"
	CodeBusy                ErrorCode = "busy"
	CodeFramCounterRejoin   ErrorCode = "fram_counter_err_rejoin_needed"
	CodeInvalidClass        ErrorCode = "invalid_class"
	CodeInvalidDataLen      ErrorCode = "invalid_data_len"
	CodeInvalidParam        ErrorCode = "invalid_param"
	CodeKeysNotInit         ErrorCode = "keys_not_init"
	CodeMacPaused           ErrorCode = "mac_paused"
	CodeMulticastKeysNotSet ErrorCode = "multicast_keys_not_set"
	CodeNoFreeChannel       ErrorCode = "no_free_ch"
	CodeNotJoined           ErrorCode = "not_joined"
	CodeSilent              ErrorCode = "silent"
	CodeErr                 ErrorCode = "err"
	CodeRadioErr            ErrorCode = "radio_err"
	CodeInvalidBanner       ErrorCode = "invalid_banner"
	CodeUnexpectedResponse  ErrorCode = "unexpected_response"
	CodeSafetyBlocked       ErrorCode = "safety_blocked"
	CodeInvalidCommand      ErrorCode = "invalid_command"
	CodeEventPending        ErrorCode = "event_pending"
)

var deviceErrorCodes = map[ErrorCode]struct{}{
	CodeBusy:                {},
	CodeFramCounterRejoin:   {},
	CodeInvalidClass:        {},
	CodeInvalidDataLen:      {},
	CodeInvalidParam:        {},
	CodeKeysNotInit:         {},
	CodeMacPaused:           {},
	CodeMulticastKeysNotSet: {},
	CodeNoFreeChannel:       {},
	CodeNotJoined:           {},
	CodeSilent:              {},
	CodeErr:                 {},
}

// IsDeviceErrorCode reports whether line is one of the radio's non-ok response codes
func IsDeviceErrorCode(line string) bool {
	_, ok := deviceErrorCodes[ErrorCode(line)]
	return ok
}

// Firmware identifies the firmware image running on the radio
type Firmware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Banner  string `json:"banner,omitempty"`
}

// ParseBanner splits a "<name> <version> <month> <day> <year> <time>" banner.
// ok is false unless exactly six fields are present.
func ParseBanner(banner string) (Firmware, bool) {
	fields := strings.Split(banner, " ")
	if len(fields) != 6 {
		return Firmware{}, false
	}
	for _, f := range fields {
		if f == "" {
			return Firmware{}, false
		}
	}
	return Firmware{Name: fields[0], Version: fields[1], Banner: banner}, true
}
