package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/config"
)

func testOptions() Options {
	return Options{
		Serial:      config.SerialConfig{Port: "/dev/ttyUSB0", Baudrate: 9600, Parity: "N", StopBits: 1, ByteSize: 8},
		Scanning:    config.ScanningConfig{MaxAttempts: 5},
		Monitoring:  config.MonitoringConfig{HistoryEnabled: true, HistoryIntervalMinutes: 2, PollingPeriod: 1},
		HistoryPath: ":memory:",
		Log:         clog.NewLogger("test"),
	}
}

func TestNewWiresAllCollaborators(t *testing.T) {
	f, err := New([]byte{1, 2}, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.NotNil(t, f.Bus)
	assert.NotNil(t, f.Engine)
	assert.NotNil(t, f.Auth)
	assert.NotNil(t, f.Status)
	assert.NotNil(t, f.Info)
	assert.NotNil(t, f.Init)
	assert.NotNil(t, f.Monitor)
	assert.NotNil(t, f.History)
	assert.NotNil(t, f.Ops)
	assert.Equal(t, []byte{1, 2}, f.IDs)
}

func TestReadyReflectsGateBeforeAuthentication(t *testing.T) {
	f, err := New([]byte{1, 2}, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.Error(t, f.Ready(), "no battery has authenticated yet")
}

func TestOpsBlocksUntilAuthenticated(t *testing.T) {
	f, err := New([]byte{1}, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	_, err = f.Ops.ReadHolding(1, 0, 1)
	assert.Error(t, err, "ops must block reads before the fleet authenticates")
}

func TestCloseIsSafeWithoutOpen(t *testing.T) {
	f, err := New([]byte{7}, testOptions())
	require.NoError(t, err)

	assert.NoError(t, f.Close())
}
