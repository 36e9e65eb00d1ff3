// Package trace records the raw command and reply lines exchanged with a radio.
package trace

import "time"

// Direction of a traced line
type Direction uint8

const (
	DirectionOut Direction = iota + 1
	DirectionIn
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	default:
		return "unknown"
	}
}

// Event is one line on the wire
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint" json:"timestamp"`
	ConnectionID string    `cbor:"2,keyasint" json:"connection_id"`
	Address      string    `cbor:"3,keyasint" json:"address"`
	Direction    Direction `cbor:"4,keyasint" json:"direction"`
	Line         string    `cbor:"5,keyasint" json:"line"`
	Error        string    `cbor:"6,keyasint,omitempty" json:"error,omitempty"`
}

// Recorder receives traced events
type Recorder interface {
	Record(event Event)
}
