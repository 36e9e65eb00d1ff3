// internal/session/policy.go
package session

import (
	"strings"

	"rn2903-service/internal/command"
)

// policy selects how the reply to a command is read and interpreted
type policy int

const (
	policyGeneric policy = iota
	policySleep
	policyBanner
	policyWriteOnly
	policyTwoPhase
	policyRxStop
)

func (p policy) String() string {
	switch p {
	case policySleep:
		return "sleep"
	case policyBanner:
		return "banner"
	case policyWriteOnly:
		return "write_only"
	case policyTwoPhase:
		return "two_phase"
	case policyRxStop:
		return "rx_stop"
	default:
		return "generic"
	}
}

type policyEntry struct {
	policy      policy
	destructive bool
}

// policies is keyed by canonical command prefix. The longest matching prefix wins.
var policies = map[string]policyEntry{
	"sys sleep":        {policy: policySleep},
	"sys reset":        {policy: policyBanner},
	"sys factoryRESET": {policy: policyBanner, destructive: true},
	"sys eraseFW":      {policy: policyWriteOnly, destructive: true},
	"radio rx":         {policy: policyTwoPhase},
	"radio tx":         {policy: policyTwoPhase},
	"radio rxstop":     {policy: policyRxStop},
}

func lookupPolicy(c command.Canonical) policyEntry {
	tokens := c.Tokens()
	for n := len(tokens); n > 0; n-- {
		if entry, ok := policies[strings.Join(tokens[:n], " ")]; ok {
			return entry
		}
	}
	return policyEntry{policy: policyGeneric}
}

// IsDestructive reports whether c is refused while safe mode is on
func IsDestructive(c command.Canonical) bool {
	return lookupPolicy(c).destructive
}
