// internal/command/tree.go
package command

import (
	"maps"
	"slices"
	"strings"
)

// ParamKind determines how a parameter token is parsed and compared
type ParamKind string

const (
	KindInteger ParamKind = "integer"
	KindHex     ParamKind = "hex"
	KindEnum    ParamKind = "enum"
)

// ParamSpec constrains one parameter slot of a command.
// Integer and hex slots use the inclusive Min/Max bounds, enum slots use Set.
type ParamSpec struct {
	Kind ParamKind `json:"kind"`
	Min  string    `json:"min,omitempty"`
	Max  string    `json:"max,omitempty"`
	Set  []string  `json:"set,omitempty"`
}

// Allowed describes the accepted range or set for error messages
func (p ParamSpec) Allowed() string {
	if p.Kind == KindEnum {
		return "{" + strings.Join(p.Set, "|") + "}"
	}
	return "[" + p.Min + ".." + p.Max + "]"
}

// Node is either a *Leaf or a *Branch
type Node interface {
	node()
}

// Leaf is a complete command taking zero, one or two parameters
type Leaf struct {
	Params []ParamSpec
}

// Branch holds the next token level of the grammar
type Branch struct {
	Children map[string]Node
}

func (*Leaf) node()   {}
func (*Branch) node() {}

// Keys returns the child tokens in sorted order
func (b *Branch) Keys() []string {
	return slices.Sorted(maps.Keys(b.Children))
}

func integer(min, max string) ParamSpec { return ParamSpec{Kind: KindInteger, Min: min, Max: max} }
func hex(min, max string) ParamSpec     { return ParamSpec{Kind: KindHex, Min: min, Max: max} }
func enum(set ...string) ParamSpec      { return ParamSpec{Kind: KindEnum, Set: set} }

func leaf(params ...ParamSpec) *Leaf {
	if len(params) > 2 {
		panic("command: a leaf takes at most two parameters")
	}
	return &Leaf{Params: params}
}

func branch(children map[string]Node) *Branch { return &Branch{Children: children} }

// leaves builds a branch of parameterless commands sharing one level
func leaves(names ...string) map[string]Node {
	children := make(map[string]Node, len(names))
	for _, name := range names {
		children[name] = leaf()
	}
	return children
}

// with adds a set of children to an existing map and returns it
func with(children map[string]Node, extra map[string]Node) map[string]Node {
	for k, v := range extra {
		children[k] = v
	}
	return children
}

var (
	digitalPins = []string{
		"GPIO0", "GPIO1", "GPIO2", "GPIO3", "GPIO4", "GPIO5", "GPIO6", "GPIO7", "GPIO8",
		"GPIO9", "GPIO10", "GPIO11", "GPIO12", "GPIO13", "UART_CTS", "UART_RTS", "TEST0", "TEST1",
	}
	analogPins = []string{
		"GPIO0", "GPIO1", "GPIO2", "GPIO3", "GPIO5", "GPIO6", "GPIO7", "GPIO8",
		"GPIO9", "GPIO10", "GPIO11", "GPIO12", "GPIO13",
	}
	pinModes = []string{"digout", "digin", "ana"}

	// receive and AFC bandwidths in kHz
	bandwidths = []string{
		"250", "125", "62.5", "31.3", "15.6", "7.8", "3.9", "200", "100", "50", "25",
		"12.5", "6.3", "3.1", "166.7", "83.3", "41.7", "20.8", "10.4", "5.2", "2.6",
	}
	gaussianShaping = []string{"none", "1.0", "0.5", "0.3"}
	spreadFactors   = []string{"sf7", "sf8", "sf9", "sf10", "sf11", "sf12"}
	onOff           = []string{"on", "off"}
)

const (
	NVMStart = 0x300
	NVMEnd   = 0x3FF

	// MaxPayloadBytes is the largest radio tx payload
	MaxPayloadBytes = 120
)

var (
	nvmAddress = hex("300", "3FF")
	channel    = integer("0", "71")
)

var root = branch(map[string]Node{
	"sys": branch(map[string]Node{
		"sleep":        leaf(integer("100", "4294967296")),
		"reset":        leaf(),
		"eraseFW":      leaf(),
		"factoryRESET": leaf(),
		"set": branch(map[string]Node{
			"nvm":     leaf(nvmAddress, hex("00", "FF")),
			"pindig":  leaf(enum(digitalPins...), integer("0", "1")),
			"pinmode": leaf(enum(digitalPins...), enum(pinModes...)),
		}),
		"get": branch(with(leaves("ver", "vdd", "hweui"), map[string]Node{
			"nvm":    leaf(nvmAddress),
			"pindig": leaf(enum(digitalPins...)),
			"pinana": leaf(enum(analogPins...)),
		})),
	}),
	"mac": branch(with(leaves("reset", "pause", "resume", "save"), map[string]Node{
		"get": branch(with(leaves(MacSettings...), map[string]Node{
			"ch": branch(map[string]Node{
				"freq":    leaf(channel),
				"drrange": leaf(channel),
				"status":  leaf(channel),
			}),
		})),
	})),
	"radio": branch(map[string]Node{
		"rx":     leaf(integer("0", "65535")),
		"tx":     leaf(hex("0", strings.Repeat("F", 2*MaxPayloadBytes))),
		"cw":     leaf(enum(onOff...)),
		"rxstop": leaf(),
		"set": branch(map[string]Node{
			"afcbw":   leaf(enum(bandwidths...)),
			"bitrate": leaf(integer("1", "300000")),
			"bt":      leaf(enum(gaussianShaping...)),
			"bw":      leaf(enum("125", "250", "500")),
			"cr":      leaf(enum("4/5", "4/6", "4/7", "4/8")),
			"crc":     leaf(enum(onOff...)),
			"fdev":    leaf(integer("0", "200000")),
			"freq":    leaf(integer("902000000", "928000000")),
			"iqi":     leaf(enum(onOff...)),
			"mod":     leaf(enum("lora", "fsk")),
			"prlen":   leaf(integer("0", "65535")),
			"pwr":     leaf(integer("2", "20")),
			"rxbw":    leaf(enum(bandwidths...)),
			"sf":      leaf(enum(spreadFactors...)),
			"sync":    leaf(hex("0", "FFFFFFFFFFFFFFFF")),
			"wdt":     leaf(integer("0", "4294967295")),
		}),
		"get": branch(leaves(RadioGetSettings...)),
	}),
})

// MacSettings are the scalar mac settings readable with "mac get <name>"
var MacSettings = []string{
	"adr", "appeui", "ar", "class", "dcycleps", "devaddr", "deveui", "dnctr", "dr", "gwnb",
	"mcast", "mcastdevaddr", "mcastdnctr", "mrgn", "pwridx", "retx", "rx2", "rxdelay1",
	"rxdelay2", "status", "sync", "upctr",
}

// RadioSettings are the radio settings that can be both read and written
var RadioSettings = []string{
	"afcbw", "bitrate", "bt", "bw", "cr", "crc", "fdev", "freq", "iqi", "mod", "prlen",
	"pwr", "rxbw", "sf", "sync", "wdt",
}

// RadioGetSettings adds the read-only link metrics to RadioSettings
var RadioGetSettings = []string{
	"afcbw", "bitrate", "bt", "bw", "cr", "crc", "fdev", "freq", "iqi", "mod", "prlen",
	"pwr", "rssi", "rxbw", "sf", "snr", "sync", "wdt",
}

// Root returns the top of the grammar
func Root() *Branch {
	return root
}

// Categories returns the top-level command categories
func Categories() []string {
	return root.Keys()
}

// Lookup walks the grammar by token path
func Lookup(path ...string) (Node, bool) {
	var current Node = root
	for _, token := range path {
		b, ok := current.(*Branch)
		if !ok {
			return nil, false
		}
		current, ok = b.Children[token]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Walk visits every leaf of the grammar with its full token path
func Walk(fn func(path []string, l *Leaf)) {
	walk(nil, root, fn)
}

func walk(prefix []string, n Node, fn func(path []string, l *Leaf)) {
	switch v := n.(type) {
	case *Leaf:
		fn(slices.Clone(prefix), v)
	case *Branch:
		for _, key := range v.Keys() {
			walk(append(prefix, key), v.Children[key], fn)
		}
	}
}
