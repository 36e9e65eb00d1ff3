// internal/simulator/device.go
package simulator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rn2903-service/internal/model"
)

// DefaultBanner is the version line reported by the simulated radio
const DefaultBanner = "RN2903 1.0.5 Nov 06 2015 10:02:54"

// Device simulates the RN2903 command interpreter.
// It answers every command of the grammar with the replies the real firmware gives.
type Device struct {
	mu sync.Mutex

	banner   string
	hweui    string
	vdd      string
	mac      model.Settings
	radio    model.Settings
	saved    model.Settings
	nvm      [256]byte
	pins     map[string]string
	paused   bool
	erased   bool
	inbound  []string
	sent     []string
	history  []string
	override map[string][]string
}

// NewDevice creates a simulated radio with factory settings
func NewDevice() *Device {
	defaults := model.DefaultDeviceConfig()
	d := &Device{
		banner:   DefaultBanner,
		hweui:    "0004A30B001C0530",
		vdd:      "3299",
		mac:      defaults.Mac,
		radio:    defaults.Radio,
		saved:    defaults.Radio.Clone(),
		pins:     make(map[string]string),
		override: make(map[string][]string),
	}
	for i := range d.nvm {
		d.nvm[i] = 0xFF
	}
	return d
}

// SetBanner changes the firmware version line
func (d *Device) SetBanner(banner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banner = banner
}

// Override makes the device answer an exact command with the given lines.
// An empty reply list makes the device stay silent for that command.
func (d *Device) Override(command string, lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override[command] = lines
}

// ClearOverrides removes all forced replies
func (d *Device) ClearOverrides() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override = make(map[string][]string)
}

// Inject queues a hex payload for the next radio rx
func (d *Device) Inject(payloadHex string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, strings.ToUpper(payloadHex))
}

// Transmitted returns the payloads sent with radio tx
func (d *Device) Transmitted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

// History returns every command line received, in order
func (d *Device) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

// Radio returns a copy of the live radio settings
func (d *Device) Radio() model.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.radio.Clone()
}

// Saved returns a copy of the radio settings persisted by mac save
func (d *Device) Saved() model.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved.Clone()
}

// Paused reports whether the LoRaWAN stack is paused
func (d *Device) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// SetNVM writes a byte of the user NVM window directly
func (d *Device) SetNVM(address int, value byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nvm[address-0x300] = value
}

// Handle interprets one command line and returns the reply lines
func (d *Device) Handle(line string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, line)

	if d.erased {
		return nil
	}
	if reply, ok := d.override[line]; ok {
		return reply
	}

	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return lines(model.CodeInvalidParam)
	}

	switch tokens[0] {
	case "sys":
		return d.handleSys(tokens[1:])
	case "mac":
		return d.handleMac(tokens[1:])
	case "radio":
		return d.handleRadio(tokens[1:])
	default:
		return lines(model.CodeInvalidParam)
	}
}

func (d *Device) handleSys(args []string) []string {
	switch args[0] {
	case "sleep":
		return lines(model.CodeOK)
	case "reset":
		d.paused = false
		d.radio = d.saved.Clone()
		return []string{d.banner}
	case "factoryRESET":
		defaults := model.DefaultDeviceConfig()
		d.mac = defaults.Mac
		d.radio = defaults.Radio
		d.saved = defaults.Radio.Clone()
		d.paused = false
		for i := range d.nvm {
			d.nvm[i] = 0xFF
		}
		return []string{d.banner}
	case "eraseFW":
		d.erased = true
		return nil
	case "get":
		return d.handleSysGet(args[1:])
	case "set":
		return d.handleSysSet(args[1:])
	}
	return lines(model.CodeInvalidParam)
}

func (d *Device) handleSysGet(args []string) []string {
	if len(args) == 0 {
		return lines(model.CodeInvalidParam)
	}
	switch args[0] {
	case "ver":
		return []string{d.banner}
	case "vdd":
		return []string{d.vdd}
	case "hweui":
		return []string{d.hweui}
	case "nvm":
		idx, ok := nvmIndex(args)
		if !ok {
			return lines(model.CodeInvalidParam)
		}
		return []string{fmt.Sprintf("%02X", d.nvm[idx])}
	case "pindig":
		if len(args) != 2 {
			return lines(model.CodeInvalidParam)
		}
		if v, ok := d.pins[args[1]]; ok {
			return []string{v}
		}
		return []string{"0"}
	case "pinana":
		if len(args) != 2 {
			return lines(model.CodeInvalidParam)
		}
		return []string{"512"}
	}
	return lines(model.CodeInvalidParam)
}

func (d *Device) handleSysSet(args []string) []string {
	if len(args) != 3 {
		return lines(model.CodeInvalidParam)
	}
	switch args[0] {
	case "nvm":
		idx, ok := nvmIndex(args[:2])
		if !ok {
			return lines(model.CodeInvalidParam)
		}
		value, err := strconv.ParseUint(args[2], 16, 8)
		if err != nil {
			return lines(model.CodeInvalidParam)
		}
		d.nvm[idx] = byte(value)
		return lines(model.CodeOK)
	case "pindig":
		d.pins[args[1]] = args[2]
		return lines(model.CodeOK)
	case "pinmode":
		return lines(model.CodeOK)
	}
	return lines(model.CodeInvalidParam)
}

func (d *Device) handleMac(args []string) []string {
	switch args[0] {
	case "pause":
		d.paused = true
		// milliseconds the stack can stay paused
		return []string{"4294967245"}
	case "resume":
		d.paused = false
		return lines(model.CodeOK)
	case "save":
		d.saved = d.radio.Clone()
		return lines(model.CodeOK)
	case "reset":
		d.mac = model.DefaultDeviceConfig().Mac
		return lines(model.CodeOK)
	case "get":
		if len(args) < 2 {
			return lines(model.CodeInvalidParam)
		}
		if args[1] == "ch" {
			return d.handleChannel(args[2:])
		}
		if v, ok := d.mac[args[1]]; ok {
			return []string{v}
		}
	}
	return lines(model.CodeInvalidParam)
}

// handleChannel answers mac get ch for the US902-928 channel plan
func (d *Device) handleChannel(args []string) []string {
	if len(args) != 2 {
		return lines(model.CodeInvalidParam)
	}
	ch, err := strconv.Atoi(args[1])
	if err != nil || ch < 0 || ch > 71 {
		return lines(model.CodeInvalidParam)
	}
	switch args[0] {
	case "freq":
		if ch < 64 {
			return []string{strconv.Itoa(902300000 + ch*200000)}
		}
		return []string{strconv.Itoa(903000000 + (ch-64)*1600000)}
	case "drrange":
		if ch < 64 {
			return []string{"0 3"}
		}
		return []string{"4 4"}
	case "status":
		return []string{"on"}
	}
	return lines(model.CodeInvalidParam)
}

func (d *Device) handleRadio(args []string) []string {
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return lines(model.CodeInvalidParam)
		}
		switch args[1] {
		case "rssi":
			return []string{"-60"}
		case "snr":
			return []string{"7"}
		}
		if v, ok := d.radio[args[1]]; ok {
			return []string{v}
		}
		return lines(model.CodeInvalidParam)
	}

	// everything else needs the LoRaWAN stack paused
	if !d.paused {
		return lines(model.CodeBusy)
	}

	switch args[0] {
	case "set":
		if len(args) != 3 {
			return lines(model.CodeInvalidParam)
		}
		if _, ok := d.radio[args[1]]; !ok {
			return lines(model.CodeInvalidParam)
		}
		d.radio[args[1]] = args[2]
		return lines(model.CodeOK)
	case "tx":
		if len(args) != 2 {
			return lines(model.CodeInvalidParam)
		}
		d.sent = append(d.sent, strings.ToUpper(args[1]))
		return []string{string(model.CodeOK), string(model.RadioEventTxOK)}
	case "rx":
		if len(d.inbound) == 0 {
			return []string{string(model.CodeOK), string(model.RadioEventError)}
		}
		payload := d.inbound[0]
		d.inbound = d.inbound[1:]
		return []string{string(model.CodeOK), string(model.RadioEventRx) + "  " + payload}
	case "rxstop", "cw":
		return lines(model.CodeOK)
	}
	return lines(model.CodeInvalidParam)
}

func nvmIndex(args []string) (int, bool) {
	if len(args) != 2 {
		return 0, false
	}
	addr, err := strconv.ParseUint(args[1], 16, 16)
	if err != nil || addr < 0x300 || addr > 0x3FF {
		return 0, false
	}
	return int(addr - 0x300), true
}

func lines(code model.ErrorCode) []string {
	return []string{string(code)}
}
