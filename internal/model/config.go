// internal/model/config.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Setting groups of a device configuration snapshot
const (
	GroupSystem = "sys"
	GroupMac    = "mac"
	GroupRadio  = "radio"
)

// NVMGapMarker stands in for an NVM byte that could not be read
const NVMGapMarker = "--"

// Settings maps a setting name to its string value
type Settings map[string]string

// Keys returns the setting names in sorted order
func (s Settings) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a copy of the settings
func (s Settings) Clone() Settings {
	return maps.Clone(s)
}

// DeviceConfig is a snapshot of the radio's system, mac and radio settings
type DeviceConfig struct {
	System Settings `json:"sys" yaml:"sys"`
	Mac    Settings `json:"mac" yaml:"mac"`
	Radio  Settings `json:"radio" yaml:"radio"`
}

// NewDeviceConfig returns an empty snapshot with all groups allocated
func NewDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		System: make(Settings),
		Mac:    make(Settings),
		Radio:  make(Settings),
	}
}

// Group returns the settings of a named group
func (c *DeviceConfig) Group(name string) (Settings, error) {
	switch name {
	case GroupSystem:
		return c.System, nil
	case GroupMac:
		return c.Mac, nil
	case GroupRadio:
		return c.Radio, nil
	default:
		return nil, fmt.Errorf("unknown setting group: %s", name)
	}
}

// Set stores value under group/key, allocating the group if needed
func (c *DeviceConfig) Set(group, key, value string) error {
	switch group {
	case GroupSystem:
		if c.System == nil {
			c.System = make(Settings)
		}
		c.System[key] = value
	case GroupMac:
		if c.Mac == nil {
			c.Mac = make(Settings)
		}
		c.Mac[key] = value
	case GroupRadio:
		c.SetRadio(key, value)
	default:
		return fmt.Errorf("unknown setting group: %s", group)
	}
	return nil
}

// SetRadio stores a radio setting, allocating the group if needed
func (c *DeviceConfig) SetRadio(key, value string) {
	if c.Radio == nil {
		c.Radio = make(Settings)
	}
	c.Radio[key] = value
}

// Clone returns a deep copy of the snapshot
func (c *DeviceConfig) Clone() *DeviceConfig {
	if c == nil {
		return nil
	}
	return &DeviceConfig{
		System: maps.Clone(c.System),
		Mac:    maps.Clone(c.Mac),
		Radio:  maps.Clone(c.Radio),
	}
}

// Scan implements sql.Scanner for JSONB columns
func (c *DeviceConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported device config column type %T", value)
	}
	return json.Unmarshal(bytes, c)
}

// Value implements driver.Valuer for JSONB columns
func (c DeviceConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// PersistedConfig is the document stored by the snapshot repositories
type PersistedConfig struct {
	Dev          string        `json:"dev"`
	DeviceConfig *DeviceConfig `json:"device_config,omitempty"`
}

// DefaultDeviceConfig returns the factory settings of an RN2903 running firmware 1.0.5.
// Used until a live read or a persisted snapshot replaces it.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		System: Settings{
			"ver":   "",
			"nvm":   "",
			"hweui": "",
		},
		Mac: Settings{
			"adr":          "off",
			"appeui":       "0000000000000000",
			"ar":           "off",
			"class":        "A",
			"dcycleps":     "1",
			"devaddr":      "00000000",
			"deveui":       "0000000000000000",
			"dnctr":        "0",
			"dr":           "XXX",
			"gwnb":         "0",
			"mcast":        "off",
			"mcastdevaddr": "00000000",
			"mcastdnctr":   "0",
			"mrgn":         "255",
			"pwridx":       "5",
			"retx":         "7",
			"rx2":          "8 923300000",
			"rxdelay1":     "1000",
			"rxdelay2":     "2000",
			"status":       "00000100",
			"sync":         "34",
			"upctr":        "0",
		},
		Radio: Settings{
			"afcbw":   "41.7",
			"bitrate": "50000",
			"bt":      "0.5",
			"bw":      "125",
			"cr":      "4/5",
			"crc":     "on",
			"fdev":    "25000",
			"freq":    "923300000",
			"iqi":     "off",
			"mod":     "lora",
			"prlen":   "8",
			"pwr":     "2",
			"rxbw":    "25",
			"sf":      "sf12",
			"sync":    "34",
			"wdt":     "15000",
		},
	}
}
