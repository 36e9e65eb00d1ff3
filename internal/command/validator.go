// internal/command/validator.go
package command

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
)

// ValidationError describes why a raw command was rejected.
// Nothing is ever sent to the radio for a command that fails validation.
type ValidationError struct {
	Token   string
	Kind    ParamKind
	Allowed string
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid command")
	if e.Token != "" {
		fmt.Fprintf(&b, " token %q", e.Token)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Kind != "" {
		fmt.Fprintf(&b, " (expected %s %s)", e.Kind, e.Allowed)
	} else if e.Allowed != "" {
		fmt.Fprintf(&b, " (expected one of %s)", e.Allowed)
	}
	return b.String()
}

// Canonical is a validated command ready for transmission.
// The zero value is empty and is never accepted by the session.
type Canonical struct {
	text string
}

// String returns the space-joined wire form without a terminator
func (c Canonical) String() string {
	return c.text
}

// Tokens splits the canonical form back into tokens
func (c Canonical) Tokens() []string {
	return strings.Fields(c.text)
}

// IsZero reports whether c was not produced by the validator
func (c Canonical) IsZero() bool {
	return c.text == ""
}

// HasPrefix reports whether the leading tokens of c equal prefix
func (c Canonical) HasPrefix(prefix ...string) bool {
	tokens := c.Tokens()
	if len(prefix) > len(tokens) {
		return false
	}
	return slices.Equal(tokens[:len(prefix)], prefix)
}

// Validate tokenizes raw on whitespace and checks it against the command grammar
func Validate(raw string) (Canonical, error) {
	return ValidateTokens(strings.Fields(raw))
}

// MustValidate is Validate for commands known at compile time. It panics on error.
func MustValidate(raw string) Canonical {
	c, err := Validate(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// ValidateTokens checks an already tokenized command
func ValidateTokens(tokens []string) (Canonical, error) {
	if len(tokens) < 2 {
		return Canonical{}, &ValidationError{
			Token:  strings.Join(tokens, " "),
			Reason: "a command needs a category and a command token",
		}
	}

	out := make([]string, 0, len(tokens))
	category := strings.ToLower(tokens[0])

	var current Node = root
	var i int
	for i = 0; i < len(tokens); i++ {
		b, ok := current.(*Branch)
		if !ok {
			break
		}
		token := tokens[i]
		if i == 0 {
			token = category
		}
		next, ok := b.Children[token]
		if !ok {
			return Canonical{}, &ValidationError{
				Token:   tokens[i],
				Allowed: "{" + strings.Join(b.Keys(), "|") + "}",
				Reason:  "unknown command token",
			}
		}
		out = append(out, token)
		current = next
	}

	l, ok := current.(*Leaf)
	if !ok {
		b := current.(*Branch)
		return Canonical{}, &ValidationError{
			Token:   strings.Join(out, " "),
			Allowed: "{" + strings.Join(b.Keys(), "|") + "}",
			Reason:  "incomplete command",
		}
	}

	rest := tokens[i:]
	if len(rest) < len(l.Params) {
		spec := l.Params[len(rest)]
		return Canonical{}, &ValidationError{
			Token:   strings.Join(out, " "),
			Kind:    spec.Kind,
			Allowed: spec.Allowed(),
			Reason:  fmt.Sprintf("missing parameter %d", len(rest)+1),
		}
	}
	if len(rest) > len(l.Params) {
		return Canonical{}, &ValidationError{
			Token:  rest[len(l.Params)],
			Reason: fmt.Sprintf("unexpected extra token, %q takes %d parameter(s)", strings.Join(out, " "), len(l.Params)),
		}
	}

	for idx, spec := range l.Params {
		value, err := CheckParam(spec, rest[idx])
		if err != nil {
			return Canonical{}, err
		}
		out = append(out, value)
	}

	return Canonical{text: strings.Join(out, " ")}, nil
}

// CheckParam validates one parameter token and returns its canonical form
func CheckParam(spec ParamSpec, token string) (string, error) {
	reject := func(reason string) (string, error) {
		return "", &ValidationError{Token: token, Kind: spec.Kind, Allowed: spec.Allowed(), Reason: reason}
	}

	switch spec.Kind {
	case KindInteger:
		if !allDigits(token) {
			return reject("not a decimal integer")
		}
		if !inRange(token, spec.Min, spec.Max, 10) {
			return reject("out of range")
		}
		return token, nil

	case KindHex:
		if !allHex(token) {
			return reject("not a hexadecimal value")
		}
		if !inRange(token, spec.Min, spec.Max, 16) {
			return reject("out of range")
		}
		return strings.ToLower(token), nil

	case KindEnum:
		if !slices.Contains(spec.Set, token) {
			return reject("not an allowed value")
		}
		return token, nil

	default:
		return reject(fmt.Sprintf("unsupported parameter kind %q", spec.Kind))
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func allHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// inRange compares as arbitrary precision integers so bounds wider than 64 bits work
func inRange(token, min, max string, base int) bool {
	value, ok := new(big.Int).SetString(token, base)
	if !ok {
		return false
	}
	lo, ok := new(big.Int).SetString(min, base)
	if !ok {
		return false
	}
	hi, ok := new(big.Int).SetString(max, base)
	if !ok {
		return false
	}
	return value.Cmp(lo) >= 0 && value.Cmp(hi) <= 0
}
