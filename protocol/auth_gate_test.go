package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

type fakeAuthenticator struct {
	calls int
	err   error
}

func (f *fakeAuthenticator) Run(slave byte) error {
	f.calls++
	return f.err
}

func deviceInfoReply(slave byte) []byte {
	header := []byte{slave, rtu.FuncHuaweiVendor, 0x06, 0x43, 0x04, 0x00, 0x00}
	return rtu.AppendCRC(append(append([]byte{}, header...), []byte("VendorName=HUAWEI\n")...))
}

func TestReadDeviceInfoTriggersReauthWhenNotSuccess(t *testing.T) {
	bus := &fakeBus{reply: deviceInfoReply(0x0A)}
	eng := NewEngine(bus, clog.NewLogger("test"))
	registry := authstatus.NewRegistry()
	registry.Initialize(0x0A)
	authn := &fakeAuthenticator{}
	eng.WithAuthentication(registry, authn)

	_, err := eng.ReadDeviceInfo(0x0A, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, authn.calls, "re-authentication must run once before the FC41 call")

	rec, ok := registry.Get(0x0A)
	require.True(t, ok)
	assert.Equal(t, authstatus.Success, rec.Phases[authstatus.PhaseAuthenticate].State)
}

func TestReadDeviceInfoSkipsReauthWhenAlreadySuccess(t *testing.T) {
	bus := &fakeBus{reply: deviceInfoReply(0x0A)}
	eng := NewEngine(bus, clog.NewLogger("test"))
	registry := authstatus.NewRegistry()
	registry.Initialize(0x0A)
	registry.UpdatePhase(0x0A, authstatus.PhaseAuthenticate, authstatus.Success, "already authenticated")
	authn := &fakeAuthenticator{}
	eng.WithAuthentication(registry, authn)

	_, err := eng.ReadDeviceInfo(0x0A, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, authn.calls, "an already-authenticated battery must not re-run the handshake")
}

func TestReadDeviceInfoFailsWhenReauthFails(t *testing.T) {
	bus := &fakeBus{reply: deviceInfoReply(0x0A)}
	eng := NewEngine(bus, clog.NewLogger("test"))
	registry := authstatus.NewRegistry()
	registry.Initialize(0x0A)
	authn := &fakeAuthenticator{err: errors.New("step 1 failed")}
	eng.WithAuthentication(registry, authn)

	_, err := eng.ReadDeviceInfo(0x0A, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, authn.calls)

	rec, ok := registry.Get(0x0A)
	require.True(t, ok)
	assert.Equal(t, authstatus.Failed, rec.Phases[authstatus.PhaseAuthenticate].State)
}
