package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBanner(t *testing.T) {
	tests := []struct {
		name   string
		banner string
		ok     bool
		fw     Firmware
	}{
		{
			name:   "valid banner",
			banner: "RN2903 1.0.5 Nov 06 2015 10:02:54",
			ok:     true,
			fw:     Firmware{Name: "RN2903", Version: "1.0.5", Banner: "RN2903 1.0.5 Nov 06 2015 10:02:54"},
		},
		{name: "too few fields", banner: "RN2903 1.0.5", ok: false},
		{name: "too many fields", banner: "RN2903 1.0.5 Nov 06 2015 10:02:54 extra", ok: false},
		{name: "double space", banner: "RN2903 1.0.5 Nov  6 2015 10:02", ok: false},
		{name: "empty", banner: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw, ok := ParseBanner(tt.banner)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.fw, fw)
			}
		})
	}
}

func TestIsDeviceErrorCode(t *testing.T) {
	assert.True(t, IsDeviceErrorCode("invalid_param"))
	assert.True(t, IsDeviceErrorCode("busy"))
	assert.True(t, IsDeviceErrorCode("err"))
	assert.False(t, IsDeviceErrorCode("ok"))
	assert.False(t, IsDeviceErrorCode("radio_err"))
	assert.False(t, IsDeviceErrorCode("923300000"))
}

func TestConnectionTypeForAddress(t *testing.T) {
	assert.Equal(t, ConnectionTypeSerial, ConnectionTypeForAddress("/dev/ttyACM0"))
	assert.Equal(t, ConnectionTypeTCP, ConnectionTypeForAddress("tcp://10.0.0.2:4001"))
	assert.Equal(t, ConnectionTypeSimulator, ConnectionTypeForAddress("sim://"))
}

func TestPersistedConfigJSONShape(t *testing.T) {
	cfg := NewDeviceConfig()
	require.NoError(t, cfg.Set(GroupRadio, "sf", "sf7"))
	require.NoError(t, cfg.Set(GroupMac, "class", "A"))

	data, err := json.Marshal(PersistedConfig{Dev: "/dev/ttyACM0", DeviceConfig: cfg})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "/dev/ttyACM0", raw["dev"])

	groups, ok := raw["device_config"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, groups, "sys")
	assert.Contains(t, groups, "mac")
	assert.Contains(t, groups, "radio")
}

func TestDeviceConfigCloneIsDeep(t *testing.T) {
	original := DefaultDeviceConfig()
	clone := original.Clone()
	clone.Radio["sf"] = "sf7"

	assert.Equal(t, "sf12", original.Radio["sf"])
	assert.Equal(t, "sf7", clone.Radio["sf"])
}

func TestDeviceConfigSetUnknownGroup(t *testing.T) {
	cfg := &DeviceConfig{}
	assert.Error(t, cfg.Set("lorawan", "key", "value"))
	require.NoError(t, cfg.Set(GroupSystem, "ver", "RN2903"))
	assert.Equal(t, "RN2903", cfg.System["ver"])
}

func TestDeviceConfigSetRadioAllocates(t *testing.T) {
	cfg := &DeviceConfig{}
	cfg.SetRadio("bw", "500")
	assert.Equal(t, Settings{"bw": "500"}, cfg.Radio)

	require.NoError(t, cfg.Set(GroupRadio, "sf", "sf9"))
	assert.Equal(t, "sf9", cfg.Radio["sf"])
}

func TestSettingsKeysSorted(t *testing.T) {
	s := Settings{"wdt": "1", "bw": "125", "sf": "sf7"}
	assert.Equal(t, []string{"bw", "sf", "wdt"}, s.Keys())
}

func TestSummarize(t *testing.T) {
	summary := Summarize(DefaultDeviceConfig(), "3300")

	require.NotNil(t, summary.FrequencyMHz)
	assert.Equal(t, "923.3", summary.FrequencyMHz.String())
	require.NotNil(t, summary.SupplyVolts)
	assert.Equal(t, "3.3", summary.SupplyVolts.String())
	require.NotNil(t, summary.WatchdogSeconds)
	assert.Equal(t, "15", summary.WatchdogSeconds.String())
	assert.Equal(t, "sf12", summary.SpreadingFactor)
	assert.Equal(t, "lora", summary.Modulation)
}

func TestSummarizeSkipsNonNumeric(t *testing.T) {
	cfg := NewDeviceConfig()
	cfg.Radio["freq"] = "not-a-number"

	summary := Summarize(cfg, "")
	assert.Nil(t, summary.FrequencyMHz)
	assert.Nil(t, summary.SupplyVolts)
}
