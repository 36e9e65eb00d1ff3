package command

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScenarios(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		canonical string
		wantErr   bool
	}{
		{name: "spreading factor accepted", raw: "radio set sf sf7", canonical: "radio set sf sf7"},
		{name: "spreading factor out of set", raw: "radio set sf sf13", wantErr: true},
		{name: "sleep below minimum", raw: "sys sleep 50", wantErr: true},
		{name: "sleep at minimum", raw: "sys sleep 100", canonical: "sys sleep 100"},
		{name: "sleep at maximum", raw: "sys sleep 4294967296", canonical: "sys sleep 4294967296"},
		{name: "sleep above maximum", raw: "sys sleep 4294967297", wantErr: true},
		{name: "category is case insensitive", raw: "RADIO get freq", canonical: "radio get freq"},
		{name: "command tokens are case sensitive", raw: "radio GET freq", wantErr: true},
		{name: "extra whitespace collapses", raw: "  mac   get\tdeveui ", canonical: "mac get deveui"},
		{name: "hex is lower cased", raw: "sys set nvm 3FF AB", canonical: "sys set nvm 3ff ab"},
		{name: "nvm address below window", raw: "sys get nvm 2FF", wantErr: true},
		{name: "nvm address above window", raw: "sys get nvm 400", wantErr: true},
		{name: "single token", raw: "sys", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "unknown category", raw: "lorawan join otaa", wantErr: true},
		{name: "unknown command", raw: "sys reboot", wantErr: true},
		{name: "incomplete branch", raw: "mac get", wantErr: true},
		{name: "incomplete nested branch", raw: "mac get ch", wantErr: true},
		{name: "nested subcommand", raw: "mac get ch freq 71", canonical: "mac get ch freq 71"},
		{name: "channel out of range", raw: "mac get ch freq 72", wantErr: true},
		{name: "missing parameter", raw: "radio set pwr", wantErr: true},
		{name: "missing second parameter", raw: "sys set pindig GPIO5", wantErr: true},
		{name: "two parameters", raw: "sys set pinmode GPIO5 digout", canonical: "sys set pinmode GPIO5 digout"},
		{name: "extra parameter", raw: "radio set pwr 14 15", wantErr: true},
		{name: "parameterless command with extra token", raw: "mac pause now", wantErr: true},
		{name: "analog pin excludes GPIO4", raw: "sys get pinana GPIO4", wantErr: true},
		{name: "digital pin includes GPIO4", raw: "sys get pindig GPIO4", canonical: "sys get pindig GPIO4"},
		{name: "continuous wave", raw: "radio cw on", canonical: "radio cw on"},
		{name: "tx payload", raw: "radio tx 48656C6C6F", canonical: "radio tx 48656c6c6f"},
		{name: "tx payload not hex", raw: "radio tx hello", wantErr: true},
		{name: "negative integer", raw: "radio set pwr -1", wantErr: true},
		{name: "sync word 64 bit", raw: "radio set sync FFFFFFFFFFFFFFFF", canonical: "radio set sync ffffffffffffffff"},
		{name: "sync word too wide", raw: "radio set sync 1FFFFFFFFFFFFFFFF", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Validate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				assert.True(t, c.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, c.String())
		})
	}
}

func TestValidationErrorNamesTokenAndRange(t *testing.T) {
	_, err := Validate("radio set pwr 21")
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "21", vErr.Token)
	assert.Equal(t, KindInteger, vErr.Kind)
	assert.Equal(t, "[2..20]", vErr.Allowed)
	assert.Contains(t, err.Error(), "out of range")

	_, err = Validate("radio set mod ook")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, KindEnum, vErr.Kind)
	assert.Equal(t, "{lora|fsk}", vErr.Allowed)
}

func TestTxPayloadLimit(t *testing.T) {
	_, err := Validate("radio tx " + strings.Repeat("ff", MaxPayloadBytes))
	assert.NoError(t, err)

	_, err = Validate("radio tx 1" + strings.Repeat("00", MaxPayloadBytes))
	assert.Error(t, err)
}

// Every integer slot accepts its bounds and rejects one past either end
func TestIntegerBoundaries(t *testing.T) {
	Walk(func(path []string, l *Leaf) {
		for idx, spec := range l.Params {
			if spec.Kind != KindInteger {
				continue
			}
			name := strings.Join(path, " ")
			t.Run(name, func(t *testing.T) {
				min, _ := new(big.Int).SetString(spec.Min, 10)
				max, _ := new(big.Int).SetString(spec.Max, 10)

				assert.NoError(t, tryParam(path, l, idx, spec.Min), "min")
				assert.NoError(t, tryParam(path, l, idx, spec.Max), "max")
				assert.Error(t, tryParam(path, l, idx, new(big.Int).Add(max, big.NewInt(1)).String()), "max+1")
				if min.Sign() > 0 {
					assert.Error(t, tryParam(path, l, idx, new(big.Int).Sub(min, big.NewInt(1)).String()), "min-1")
				}
			})
		}
	})
}

// Non-hex characters are rejected even when the numeric part would fit
func TestHexRejectsNonHexCharacters(t *testing.T) {
	Walk(func(path []string, l *Leaf) {
		for idx, spec := range l.Params {
			if spec.Kind != KindHex {
				continue
			}
			t.Run(strings.Join(path, " "), func(t *testing.T) {
				assert.NoError(t, tryParam(path, l, idx, spec.Max))
				assert.NoError(t, tryParam(path, l, idx, strings.ToLower(spec.Max)))
				assert.Error(t, tryParam(path, l, idx, spec.Min+"g"))
				assert.Error(t, tryParam(path, l, idx, "0x"+spec.Min))
				assert.Error(t, tryParam(path, l, idx, ""))
			})
		}
	})
}

// Enum membership is exact and case sensitive
func TestEnumRejectsCaseVariants(t *testing.T) {
	Walk(func(path []string, l *Leaf) {
		for idx, spec := range l.Params {
			if spec.Kind != KindEnum {
				continue
			}
			t.Run(strings.Join(path, " "), func(t *testing.T) {
				for _, member := range spec.Set {
					assert.NoError(t, tryParam(path, l, idx, member))
					if upper := strings.ToUpper(member); upper != member {
						assert.Error(t, tryParam(path, l, idx, upper))
					}
					if lower := strings.ToLower(member); lower != member {
						assert.Error(t, tryParam(path, l, idx, lower))
					}
				}
				assert.Error(t, tryParam(path, l, idx, "bogus"))
			})
		}
	})
}

func TestCanonicalIsIdempotent(t *testing.T) {
	inputs := []string{
		"RADIO set sf sf9",
		"sys set nvm 3A0 FF",
		"radio tx DEADBEEF",
		"mac get ch status 3",
		"sys sleep 1000",
	}
	for _, raw := range inputs {
		first, err := Validate(raw)
		require.NoError(t, err, raw)
		second, err := Validate(first.String())
		require.NoError(t, err, raw)
		assert.Equal(t, first, second, raw)
	}
}

func TestCanonicalHasPrefix(t *testing.T) {
	c := MustValidate("radio set sf sf7")
	assert.True(t, c.HasPrefix("radio"))
	assert.True(t, c.HasPrefix("radio", "set"))
	assert.False(t, c.HasPrefix("radio", "get"))
	assert.False(t, c.HasPrefix("radio", "set", "sf", "sf7", "extra"))
	assert.Equal(t, []string{"radio", "set", "sf", "sf7"}, c.Tokens())
}

func TestMustValidatePanics(t *testing.T) {
	assert.Panics(t, func() { MustValidate("sys sleep 1") })
}

// tryParam validates a full command with value placed in slot idx and
// the first allowed value in every other slot
func tryParam(path []string, l *Leaf, idx int, value string) error {
	tokens := append([]string{}, path...)
	for i, spec := range l.Params {
		if i == idx {
			tokens = append(tokens, value)
			continue
		}
		tokens = append(tokens, firstAllowed(spec))
	}
	_, err := ValidateTokens(tokens)
	return err
}

func firstAllowed(spec ParamSpec) string {
	if spec.Kind == KindEnum {
		return spec.Set[0]
	}
	return spec.Min
}
