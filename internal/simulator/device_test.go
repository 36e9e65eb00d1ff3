package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rn2903-service/internal/protocol"
)

func TestDeviceRadioSetNeedsPause(t *testing.T) {
	d := NewDevice()

	assert.Equal(t, []string{"busy"}, d.Handle("radio set sf sf7"))

	d.Handle("mac pause")
	assert.True(t, d.Paused())
	assert.Equal(t, []string{"ok"}, d.Handle("radio set sf sf7"))
	assert.Equal(t, []string{"sf7"}, d.Handle("radio get sf"))
	assert.Equal(t, "sf12", d.Saved()["sf"])

	assert.Equal(t, []string{"ok"}, d.Handle("mac save"))
	assert.Equal(t, "sf7", d.Saved()["sf"])

	d.Handle("mac resume")
	assert.False(t, d.Paused())
}

func TestDeviceNVM(t *testing.T) {
	d := NewDevice()
	assert.Equal(t, []string{"FF"}, d.Handle("sys get nvm 300"))

	assert.Equal(t, []string{"ok"}, d.Handle("sys set nvm 3a0 7c"))
	assert.Equal(t, []string{"7C"}, d.Handle("sys get nvm 3a0"))
	assert.Equal(t, []string{"invalid_param"}, d.Handle("sys get nvm 400"))
}

func TestDeviceTwoPhaseReplies(t *testing.T) {
	d := NewDevice()
	d.Handle("mac pause")

	assert.Equal(t, []string{"ok", "radio_tx_ok"}, d.Handle("radio tx cafe"))
	assert.Equal(t, []string{"CAFE"}, d.Transmitted())

	assert.Equal(t, []string{"ok", "radio_err"}, d.Handle("radio rx 0"))
	d.Inject("beef")
	assert.Equal(t, []string{"ok", "radio_rx  BEEF"}, d.Handle("radio rx 0"))
}

func TestDeviceOverrideAndErase(t *testing.T) {
	d := NewDevice()
	d.Override("mac get dr", "invalid_param")
	assert.Equal(t, []string{"invalid_param"}, d.Handle("mac get dr"))

	d.ClearOverrides()
	assert.Equal(t, []string{"XXX"}, d.Handle("mac get dr"))

	assert.Nil(t, d.Handle("sys eraseFW"))
	assert.Nil(t, d.Handle("sys get ver"))
	assert.Len(t, d.History(), 4)
}

func TestDeviceChannels(t *testing.T) {
	d := NewDevice()
	assert.Equal(t, []string{"902300000"}, d.Handle("mac get ch freq 0"))
	assert.Equal(t, []string{"903000000"}, d.Handle("mac get ch freq 64"))
	assert.Equal(t, []string{"4 4"}, d.Handle("mac get ch drrange 70"))
}

func TestTransportLineFraming(t *testing.T) {
	tr := NewTransport(NewDevice(), nil)
	ctx := context.Background()

	assert.ErrorIs(t, tr.Write(ctx, []byte("sys get ver\r\n")), protocol.ErrNotOpen)
	require.NoError(t, tr.Open(ctx))

	// a command split over two writes is only handled once complete
	require.NoError(t, tr.Write(ctx, []byte("sys get ")))
	_, err := tr.ReadByte(ctx)
	assert.ErrorIs(t, err, protocol.ErrReadTimeout)

	require.NoError(t, tr.Write(ctx, []byte("hweui\r\n")))
	var got []byte
	for {
		b, err := tr.ReadByte(ctx)
		require.NoError(t, err)
		got = append(got, b)
		if b == '\n' {
			break
		}
	}
	assert.Equal(t, "0004A30B001C0530\r\n", string(got))
}

func TestTransportReadHonorsContext(t *testing.T) {
	tr := NewTransport(NewDevice(), nil)
	require.NoError(t, tr.Open(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.ReadByte(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegisterUsesSharedDevices(t *testing.T) {
	registry := protocol.NewRegistry()
	Register(registry)

	first, err := registry.CreateTransport("sim://bench-a", protocol.Options{}, nil)
	require.NoError(t, err)
	second, err := registry.CreateTransport("sim://bench-a", protocol.Options{}, nil)
	require.NoError(t, err)

	assert.Same(t, first.(*Transport).Device(), second.(*Transport).Device())
	assert.Same(t, Lookup("sim://bench-a"), first.(*Transport).Device())
}
