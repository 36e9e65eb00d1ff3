// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventSessionOpened   EventType = "SESSION_OPENED"
	EventSessionClosed   EventType = "SESSION_CLOSED"
	EventStateChange     EventType = "STATE_CHANGE"
	EventCommandExecuted EventType = "COMMAND_EXECUTED"
	EventRadioRx         EventType = "RADIO_RX"
	EventRadioTxOK       EventType = "RADIO_TX_OK"
	EventRadioError      EventType = "RADIO_ERROR"
	EventConfigPulled    EventType = "CONFIG_PULLED"
	EventConfigPushed    EventType = "CONFIG_PUSHED"
	EventSafeModeChange  EventType = "SAFE_MODE_CHANGE"
	EventDiscoveryDone   EventType = "DISCOVERY_COMPLETED"
)

// ServiceEvent represents an event published to API subscribers
type ServiceEvent struct {
	ID        uuid.UUID              `json:"id"`
	EventType EventType              `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Severity  string                 `json:"severity"` // INFO, WARNING, ERROR
}

// NewServiceEvent creates an event stamped with a fresh id and the current time
func NewServiceEvent(eventType EventType, severity string, data map[string]interface{}) ServiceEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return ServiceEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    "rn2903-service",
		Severity:  severity,
	}
}

// RadioEventKind classifies the second line of a two-phase radio exchange
type RadioEventKind string

const (
	RadioEventRx    RadioEventKind = "radio_rx"
	RadioEventTxOK  RadioEventKind = "radio_tx_ok"
	RadioEventError RadioEventKind = "radio_err"
)

// RadioEvent is the asynchronous outcome of a radio rx or radio tx command
type RadioEvent struct {
	Kind       RadioEventKind `json:"kind"`
	Data       string         `json:"data,omitempty"`
	Raw        string         `json:"raw"`
	ReceivedAt time.Time      `json:"received_at"`
}
