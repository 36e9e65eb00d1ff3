package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"mac", "radio", "sys"}, Categories())
}

func TestLookup(t *testing.T) {
	node, ok := Lookup("radio", "set", "freq")
	require.True(t, ok)
	l, ok := node.(*Leaf)
	require.True(t, ok)
	require.Len(t, l.Params, 1)
	assert.Equal(t, KindInteger, l.Params[0].Kind)
	assert.Equal(t, "902000000", l.Params[0].Min)

	node, ok = Lookup("mac", "get")
	require.True(t, ok)
	_, isBranch := node.(*Branch)
	assert.True(t, isBranch)

	_, ok = Lookup("radio", "set", "freq", "deeper")
	assert.False(t, ok)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestTreeShapeInvariants(t *testing.T) {
	count := 0
	Walk(func(path []string, l *Leaf) {
		count++
		assert.LessOrEqual(t, len(l.Params), 2, path)
		for _, p := range l.Params {
			switch p.Kind {
			case KindEnum:
				assert.NotEmpty(t, p.Set, path)
			case KindInteger, KindHex:
				assert.NotEmpty(t, p.Min, path)
				assert.NotEmpty(t, p.Max, path)
			default:
				t.Errorf("unknown kind %q at %v", p.Kind, path)
			}
		}
	})
	assert.Greater(t, count, 60)
}

func TestEveryRadioSettingIsWritableAndReadable(t *testing.T) {
	for _, key := range RadioSettings {
		_, ok := Lookup("radio", "set", key)
		assert.True(t, ok, key)
		_, ok = Lookup("radio", "get", key)
		assert.True(t, ok, key)
	}
	for _, key := range MacSettings {
		_, ok := Lookup("mac", "get", key)
		assert.True(t, ok, key)
	}
}
