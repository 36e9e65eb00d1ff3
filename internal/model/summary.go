// internal/model/summary.go
package model

import (
	"github.com/shopspring/decimal"
)

// RadioSummary is a human-oriented view of the radio settings with physical units applied
type RadioSummary struct {
	Modulation      string           `json:"modulation,omitempty"`
	FrequencyMHz    *decimal.Decimal `json:"frequency_mhz,omitempty"`
	BandwidthKHz    *decimal.Decimal `json:"bandwidth_khz,omitempty"`
	SpreadingFactor string           `json:"spreading_factor,omitempty"`
	CodingRate      string           `json:"coding_rate,omitempty"`
	PowerDBm        *decimal.Decimal `json:"power_dbm,omitempty"`
	SupplyVolts     *decimal.Decimal `json:"supply_volts,omitempty"`
	WatchdogSeconds *decimal.Decimal `json:"watchdog_seconds,omitempty"`
	HardwareEUI     string           `json:"hardware_eui,omitempty"`
	Firmware        string           `json:"firmware,omitempty"`
}

var (
	hzPerMHz    = decimal.NewFromInt(1_000_000)
	milliPerOne = decimal.NewFromInt(1_000)
)

// Summarize converts the raw snapshot strings into unit-bearing values.
// Values that do not parse as numbers are left out.
func Summarize(cfg *DeviceConfig, vdd string) RadioSummary {
	summary := RadioSummary{}
	if cfg == nil {
		return summary
	}

	summary.Modulation = cfg.Radio["mod"]
	summary.SpreadingFactor = cfg.Radio["sf"]
	summary.CodingRate = cfg.Radio["cr"]
	summary.HardwareEUI = cfg.System["hweui"]
	summary.Firmware = cfg.System["ver"]

	summary.FrequencyMHz = scaled(cfg.Radio["freq"], hzPerMHz)
	summary.BandwidthKHz = scaled(cfg.Radio["bw"], decimal.NewFromInt(1))
	summary.PowerDBm = scaled(cfg.Radio["pwr"], decimal.NewFromInt(1))
	summary.WatchdogSeconds = scaled(cfg.Radio["wdt"], milliPerOne)
	summary.SupplyVolts = scaled(vdd, milliPerOne)

	return summary
}

func scaled(raw string, divisor decimal.Decimal) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	result := value.Div(divisor)
	return &result
}
