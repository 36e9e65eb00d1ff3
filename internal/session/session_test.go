package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rn2903-service/internal/command"
	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
)

const banner = "RN2903 1.0.5 Nov 06 2015 10:02:54"

// scriptedTransport replies with queued bytes and records every write
type scriptedTransport struct {
	open     bool
	openErr  error
	writeErr error
	readErr  error
	writes   []string
	reads    int
	replies  []byte
	// timeouts is the number of empty read windows served before any queued byte
	timeouts int
}

func (t *scriptedTransport) Open(ctx context.Context) error {
	if t.openErr != nil {
		return t.openErr
	}
	t.open = true
	return nil
}

func (t *scriptedTransport) Close() error {
	t.open = false
	return nil
}

func (t *scriptedTransport) IsOpen() bool { return t.open }

func (t *scriptedTransport) Write(ctx context.Context, data []byte) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, string(data))
	return nil
}

func (t *scriptedTransport) ReadByte(ctx context.Context) (byte, error) {
	t.reads++
	if t.readErr != nil {
		return 0, t.readErr
	}
	if t.timeouts > 0 {
		t.timeouts--
		return 0, protocol.ErrReadTimeout
	}
	if len(t.replies) == 0 {
		return 0, protocol.ErrReadTimeout
	}
	b := t.replies[0]
	t.replies = t.replies[1:]
	return b, nil
}

func (t *scriptedTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

func (t *scriptedTransport) reply(lines ...string) {
	for _, l := range lines {
		t.replies = append(t.replies, []byte(l+"\r\n")...)
	}
}

func openSession(t *testing.T, opts ...Option) (*Session, *scriptedTransport) {
	t.Helper()
	tr := &scriptedTransport{}
	tr.reply(banner)
	s := New(tr, opts...)
	require.NoError(t, s.Open(context.Background()))
	tr.writes = nil
	return s, tr
}

func TestOpenChecksFirmware(t *testing.T) {
	s, tr := openSession(t)
	assert.Equal(t, model.StateIdle, s.State())
	assert.Equal(t, "RN2903", s.Firmware().Name)
	assert.Equal(t, "1.0.5", s.Firmware().Version)
	assert.True(t, tr.IsOpen())
}

func TestOpenFailuresAreSticky(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *scriptedTransport)
	}{
		{name: "transport open fails", setup: func(tr *scriptedTransport) { tr.openErr = errors.New("no such device") }},
		{name: "version mismatch", setup: func(tr *scriptedTransport) { tr.reply("RN2903 1.0.3 Mar 09 2015 14:22:31") }},
		{name: "wrong module", setup: func(tr *scriptedTransport) { tr.reply("RN2483 1.0.5 Nov 06 2015 10:02:54") }},
		{name: "malformed banner", setup: func(tr *scriptedTransport) { tr.reply("RN2903 1.0.5") }},
		{name: "no reply", setup: func(tr *scriptedTransport) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{}
			tt.setup(tr)
			s := New(tr)

			require.Error(t, s.Open(context.Background()))
			assert.Equal(t, model.StateError, s.State())

			writes := len(tr.writes)
			result := s.Dispatch(context.Background(), command.MustValidate("mac get deveui"))
			assert.Equal(t, StatusStateError, result.Status)
			assert.ErrorIs(t, result.AsError(), ErrStateError)
			assert.Len(t, tr.writes, writes)

			assert.ErrorIs(t, s.Open(context.Background()), ErrStateError)
		})
	}
}

func TestFirmwareMismatchError(t *testing.T) {
	tr := &scriptedTransport{}
	tr.reply("RN2903 1.0.3 Mar 09 2015 14:22:31")
	s := New(tr, WithFirmware("RN2903", "1.0.5"))

	err := s.Open(context.Background())
	var mismatch *FirmwareMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "1.0.5", mismatch.Expected.Version)
	assert.Contains(t, mismatch.Reported, "1.0.3")
}

func TestWithFirmwareAcceptsOtherVersion(t *testing.T) {
	tr := &scriptedTransport{}
	tr.reply("RN2903 1.0.3 Mar 09 2015 14:22:31")
	s := New(tr, WithFirmware("", "1.0.3"))
	require.NoError(t, s.Open(context.Background()))
}

func TestDispatchWritesCanonicalWithCRLF(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("923300000")

	result := s.Dispatch(context.Background(), command.MustValidate("radio get freq"))
	require.True(t, result.OK())
	assert.Equal(t, "923300000", result.Payload)
	assert.Equal(t, []string{"radio get freq\r\n"}, tr.writes)
}

func TestGenericPolicy(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		status  ResultStatus
		code    model.ErrorCode
		payload string
	}{
		{name: "ok", reply: "ok", status: StatusOK, code: model.CodeOK},
		{name: "value", reply: "sf12", status: StatusOK, code: model.CodeOK, payload: "sf12"},
		{name: "invalid_param", reply: "invalid_param", status: StatusDeviceError, code: model.CodeInvalidParam, payload: "invalid_param"},
		{name: "busy", reply: "busy", status: StatusDeviceError, code: model.CodeBusy, payload: "busy"},
		{name: "not_joined", reply: "not_joined", status: StatusDeviceError, code: model.CodeNotJoined, payload: "not_joined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tr := openSession(t)
			tr.reply(tt.reply)

			result := s.Dispatch(context.Background(), command.MustValidate("radio get sf"))
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.code, result.Code)
			assert.Equal(t, tt.payload, result.Payload)
			assert.Equal(t, model.StateIdle, s.State())

			if tt.status == StatusDeviceError {
				var devErr *DeviceError
				require.ErrorAs(t, result.AsError(), &devErr)
				assert.Equal(t, tt.code, devErr.Code)
			}
		})
	}
}

func TestDeviceErrorDoesNotChangeState(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("busy")

	result := s.Dispatch(context.Background(), command.MustValidate("mac pause"))
	assert.Equal(t, StatusDeviceError, result.Status)
	assert.Equal(t, model.StateIdle, s.State())
}

func TestMacStateSideEffects(t *testing.T) {
	var transitions []string
	s, tr := openSession(t, WithStateListener(func(from, to model.DeviceState) {
		transitions = append(transitions, string(from)+">"+string(to))
	}))
	transitions = nil
	ctx := context.Background()

	tr.reply("4294967245")
	result := s.Dispatch(ctx, command.MustValidate("mac pause"))
	require.True(t, result.OK())
	assert.Equal(t, "4294967245", result.Payload)
	assert.Equal(t, model.StateMacPaused, s.State())

	tr.reply("ok")
	s.Dispatch(ctx, command.MustValidate("mac save"))
	assert.Equal(t, model.StateMacActive, s.State())

	tr.reply("ok")
	s.Dispatch(ctx, command.MustValidate("radio rxstop"))
	assert.Equal(t, model.StateMacPaused, s.State())

	tr.reply("ok")
	s.Dispatch(ctx, command.MustValidate("mac resume"))
	assert.Equal(t, model.StateMacActive, s.State())

	tr.reply("ok")
	s.Dispatch(ctx, command.MustValidate("mac reset"))
	assert.Equal(t, model.StateMacActive, s.State())

	assert.Equal(t, []string{
		"idle>mac_paused",
		"mac_paused>mac_saving",
		"mac_saving>mac_active",
		"mac_active>mac_paused",
		"mac_paused>mac_active",
		"mac_active>mac_booting",
		"mac_booting>mac_active",
	}, transitions)
}

func TestSleepPolicy(t *testing.T) {
	s, tr := openSession(t)
	var during model.DeviceState
	s.config.StateListener = func(from, to model.DeviceState) {
		if to == model.StateSleep {
			during = to
		}
	}

	tr.reply("ok")
	result := s.Dispatch(context.Background(), command.MustValidate("sys sleep 5000"))
	require.True(t, result.OK())
	assert.Equal(t, "5000", result.Payload)
	assert.Equal(t, model.StateSleep, during)
	assert.Equal(t, model.StateIdle, s.State())

	tr.reply("invalid_param")
	result = s.Dispatch(context.Background(), command.MustValidate("sys sleep 5000"))
	assert.Equal(t, StatusDeviceError, result.Status)
	assert.Equal(t, model.CodeInvalidParam, result.Code)
}

func TestSleepOutlastsReadWindow(t *testing.T) {
	s, tr := openSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tr.timeouts = 2
	tr.reply("ok")
	result := s.Dispatch(ctx, command.MustValidate("sys sleep 12000"))
	require.True(t, result.OK(), "%+v", result)
	assert.Equal(t, "12000", result.Payload)
	assert.Equal(t, model.StateIdle, s.State())
	assert.Zero(t, tr.timeouts)

	// the wake-up line never comes: the deadline ends the wait
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	result = s.Dispatch(short, command.MustValidate("sys sleep 12000"))
	assert.Equal(t, StatusTransportError, result.Status)
	assert.ErrorIs(t, result.AsError(), protocol.ErrReadTimeout)
	assert.Equal(t, model.StateIdle, s.State())
}

func TestSleepWithoutDeadlineReadsOneWindow(t *testing.T) {
	s, tr := openSession(t)
	tr.timeouts = 1
	tr.reply("ok")

	result := s.Dispatch(context.Background(), command.MustValidate("sys sleep 12000"))
	assert.Equal(t, StatusTransportError, result.Status)
	assert.Equal(t, []byte("ok\r\n"), tr.replies)
}

func TestBannerPolicy(t *testing.T) {
	s, tr := openSession(t)

	tr.reply(banner)
	result := s.Dispatch(context.Background(), command.MustValidate("sys reset"))
	require.True(t, result.OK())
	assert.Equal(t, banner, result.Payload)
	assert.Equal(t, model.StateIdle, s.State())

	tr.reply("RN2483 1.0.5 Nov 06 2015 10:02:54")
	result = s.Dispatch(context.Background(), command.MustValidate("sys reset"))
	assert.Equal(t, StatusDeviceError, result.Status)
	assert.Equal(t, model.CodeInvalidBanner, result.Code)

	tr.reply("garbage")
	result = s.Dispatch(context.Background(), command.MustValidate("sys reset"))
	assert.Equal(t, model.CodeInvalidBanner, result.Code)
}

func TestSafetyFlagBlocksDestructiveCommands(t *testing.T) {
	for _, raw := range []string{"sys eraseFW", "sys factoryRESET"} {
		t.Run(raw, func(t *testing.T) {
			s, tr := openSession(t)
			require.True(t, s.SafeMode())

			result := s.Dispatch(context.Background(), command.MustValidate(raw))
			assert.Equal(t, StatusDeviceError, result.Status)
			assert.Equal(t, model.CodeSafetyBlocked, result.Code)
			assert.ErrorIs(t, result.AsError(), ErrSafetyBlocked)
			assert.Empty(t, tr.writes)
			assert.Equal(t, model.StateIdle, s.State())
		})
	}
}

func TestEraseFirmwareWhenUnsafe(t *testing.T) {
	s, tr := openSession(t, WithSafeMode(false))
	reads := tr.reads

	result := s.Dispatch(context.Background(), command.MustValidate("sys eraseFW"))
	require.True(t, result.OK())
	assert.Equal(t, "awaiting firmware", result.Payload)
	assert.Equal(t, []string{"sys eraseFW\r\n"}, tr.writes)
	assert.Equal(t, reads, tr.reads, "write-only policy must not read")
	assert.Equal(t, model.StateWaitingFirmware, s.State())
}

func TestFactoryResetWhenUnsafe(t *testing.T) {
	s, tr := openSession(t)
	s.SetSafeMode(false)
	tr.reply(banner)

	result := s.Dispatch(context.Background(), command.MustValidate("sys factoryRESET"))
	require.True(t, result.OK())
	assert.Equal(t, banner, result.Payload)
}

func TestWriteFailureLeavesStateUntouched(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("4294967245")
	s.Dispatch(context.Background(), command.MustValidate("mac pause"))
	require.Equal(t, model.StateMacPaused, s.State())

	tr.writeErr = errors.New("write: input/output error")
	result := s.Dispatch(context.Background(), command.MustValidate("mac resume"))
	assert.Equal(t, StatusTransportError, result.Status)
	var trErr *TransportError
	assert.ErrorAs(t, result.AsError(), &trErr)
	assert.Equal(t, model.StateMacPaused, s.State())
}

func TestReadTimeoutIsRecoverable(t *testing.T) {
	s, tr := openSession(t)

	result := s.Dispatch(context.Background(), command.MustValidate("radio get sf"))
	assert.Equal(t, StatusTransportError, result.Status)
	assert.ErrorIs(t, result.AsError(), protocol.ErrReadTimeout)
	assert.Equal(t, model.StateIdle, s.State())

	tr.reply("sf12")
	result = s.Dispatch(context.Background(), command.MustValidate("radio get sf"))
	assert.True(t, result.OK())
}

func TestLostTransportIsFatal(t *testing.T) {
	s, tr := openSession(t)
	tr.readErr = io.EOF

	result := s.Dispatch(context.Background(), command.MustValidate("radio get sf"))
	assert.Equal(t, StatusTransportError, result.Status)
	assert.Equal(t, model.StateError, s.State())
}

func TestReadCapReturnsTruncatedBuffer(t *testing.T) {
	s, tr := openSession(t)
	long := strings.Repeat("A", MaxLineLength)
	tr.replies = append(tr.replies, []byte(long+"BBBB")...)

	result := s.Dispatch(context.Background(), command.MustValidate("sys get hweui"))
	require.Equal(t, StatusOK, result.Status)
	assert.Equal(t, long, result.Payload)
	assert.Equal(t, []byte("BBBB"), tr.replies)
}

func TestTwoPhaseTransmit(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("4294967245")
	s.Dispatch(context.Background(), command.MustValidate("mac pause"))
	reads := tr.reads

	tr.reply("ok", "radio_tx_ok")
	result := s.Dispatch(context.Background(), command.MustValidate("radio tx 48656c6c6f"))
	require.True(t, result.OK())
	assert.Equal(t, reads, tr.reads, "two-phase dispatch returns before reading")
	assert.Equal(t, model.StateRadioTx, s.State())
	assert.True(t, s.EventPending())

	event, err := s.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RadioEventTxOK, event.Kind)
	assert.Equal(t, model.StateMacPaused, s.State())
	assert.False(t, s.EventPending())

	_, err = s.ReadEvent(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingEvent)
}

func TestTwoPhaseReceive(t *testing.T) {
	s, tr := openSession(t)

	tr.reply("ok")
	require.True(t, s.Dispatch(context.Background(), command.MustValidate("radio rx 0")).OK())
	assert.Equal(t, model.StateRadioRx, s.State())

	// nothing received yet: the exchange stays pending
	_, err := s.ReadEvent(context.Background())
	assert.ErrorIs(t, err, protocol.ErrReadTimeout)
	assert.True(t, s.EventPending())

	tr.reply("radio_rx  48656C6C6F")
	event, err := s.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RadioEventRx, event.Kind)
	assert.Equal(t, "48656C6C6F", event.Data)
	assert.Equal(t, model.StateMacPaused, s.State())
}

func TestReadEventWaitsAcrossReadWindows(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("ok")
	require.True(t, s.Dispatch(context.Background(), command.MustValidate("radio rx 0")).OK())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tr.timeouts = 3
	tr.reply("radio_rx  48656c6c6f")
	event, err := s.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RadioEventRx, event.Kind)
	assert.Equal(t, "48656c6c6f", event.Data)
	assert.False(t, s.EventPending())
}

func TestPendingExchangeRejectsOtherCommands(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("ok", "radio_tx_ok")
	require.True(t, s.Dispatch(context.Background(), command.MustValidate("radio tx ff")).OK())
	tr.writes = nil

	for _, raw := range []string{"radio get sf", "radio tx 00", "radio rxstop"} {
		result := s.Dispatch(context.Background(), command.MustValidate(raw))
		assert.Equal(t, StatusDeviceError, result.Status, raw)
		assert.Equal(t, model.CodeEventPending, result.Code, raw)
		assert.ErrorIs(t, result.AsError(), ErrEventPending, raw)
	}
	assert.Empty(t, tr.writes)
	assert.True(t, s.EventPending())

	event, err := s.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RadioEventTxOK, event.Kind)

	tr.reply("sf12")
	result := s.Dispatch(context.Background(), command.MustValidate("radio get sf"))
	require.True(t, result.OK())
	assert.Equal(t, "sf12", result.Payload)
}

func TestRxStopEndsPendingReceive(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
	}{
		{name: "nothing received", replies: []string{"ok", "ok"}},
		{name: "frame already on the wire", replies: []string{"ok", "radio_rx  00ff", "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tr := openSession(t)
			require.True(t, s.Dispatch(context.Background(), command.MustValidate("radio rx 0")).OK())
			tr.reply(tt.replies...)

			result := s.Dispatch(context.Background(), command.MustValidate("radio rxstop"))
			require.True(t, result.OK(), "%+v", result)
			assert.Empty(t, result.Payload)
			assert.False(t, s.EventPending())
			assert.Equal(t, model.StateMacPaused, s.State())
			assert.Empty(t, tr.replies)
			assert.Equal(t, []string{"radio rx 0\r\n", "radio rxstop\r\n"}, tr.writes)

			_, err := s.ReadEvent(context.Background())
			assert.ErrorIs(t, err, ErrNoPendingEvent)
		})
	}
}

func TestTwoPhaseRejectedAck(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("busy")
	require.True(t, s.Dispatch(context.Background(), command.MustValidate("radio rx 100")).OK())

	_, err := s.ReadEvent(context.Background())
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, model.CodeBusy, devErr.Code)
	assert.False(t, s.EventPending())
}

func TestTwoPhaseRadioError(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("ok", "radio_err")
	s.Dispatch(context.Background(), command.MustValidate("radio rx 100"))

	event, err := s.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RadioEventError, event.Kind)
}

func TestTwoPhaseUnexpectedLine(t *testing.T) {
	s, tr := openSession(t)
	tr.reply("ok", "mystery")
	s.Dispatch(context.Background(), command.MustValidate("radio tx ff"))

	_, err := s.ReadEvent(context.Background())
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, model.CodeUnexpectedResponse, devErr.Code)
}

func TestExecuteValidationNeverReachesTransport(t *testing.T) {
	s, tr := openSession(t)

	_, err := s.Execute(context.Background(), "radio set sf sf13")
	var vErr *command.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, tr.writes)

	tr.reply("ok")
	result, err := s.Execute(context.Background(), "RADIO get sf")
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, []string{"radio get sf\r\n"}, tr.writes)
}

func TestDispatchRejectsZeroCanonical(t *testing.T) {
	s, tr := openSession(t)
	result := s.Dispatch(context.Background(), command.Canonical{})
	assert.Equal(t, StatusDeviceError, result.Status)
	assert.Equal(t, model.CodeInvalidCommand, result.Code)
	assert.ErrorIs(t, result.AsError(), ErrInvalidCommand)
	assert.Empty(t, tr.writes)
	assert.Equal(t, model.StateIdle, s.State())
}

func TestPolicyLookup(t *testing.T) {
	assert.Equal(t, policySleep, lookupPolicy(command.MustValidate("sys sleep 100")).policy)
	assert.Equal(t, policyBanner, lookupPolicy(command.MustValidate("sys reset")).policy)
	assert.Equal(t, policyWriteOnly, lookupPolicy(command.MustValidate("sys eraseFW")).policy)
	assert.Equal(t, policyTwoPhase, lookupPolicy(command.MustValidate("radio rx 0")).policy)
	assert.Equal(t, policyTwoPhase, lookupPolicy(command.MustValidate("radio tx 00")).policy)
	assert.Equal(t, policyRxStop, lookupPolicy(command.MustValidate("radio rxstop")).policy)
	assert.Equal(t, policyGeneric, lookupPolicy(command.MustValidate("mac reset")).policy)

	assert.True(t, IsDestructive(command.MustValidate("sys factoryRESET")))
	assert.False(t, IsDestructive(command.MustValidate("sys reset")))
}
