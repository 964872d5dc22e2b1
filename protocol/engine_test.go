package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

// fakeBus replays a canned reply regardless of what was requested, and
// records the last request for assertions.
type fakeBus struct {
	lastRequest []byte
	reply       []byte
	err         error
}

func (f *fakeBus) Transact(request []byte, expectedLen int, readTimeout time.Duration) ([]byte, error) {
	f.lastRequest = request
	return f.reply, f.err
}

func TestReadHoldingDecodesValues(t *testing.T) {
	body := []byte{0x0A, 0x03, 0x04, 0x0F, 0xA0, 0x00, 0x64}
	bus := &fakeBus{reply: rtu.AppendCRC(body)}
	eng := NewEngine(bus, clog.NewLogger("test"))

	vals, err := eng.ReadHolding(0x0A, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0FA0, 0x0064}, vals)
}

func TestWriteSingleRegisterValidatesEcho(t *testing.T) {
	body := []byte{0x0A, 0x06, 0x10, 0x00, 0x00, 0x2A}
	bus := &fakeBus{reply: rtu.AppendCRC(body)}
	eng := NewEngine(bus, clog.NewLogger("test"))

	err := eng.WriteSingleRegister(0x0A, 0x1000, 0x2A)
	assert.NoError(t, err)
	assert.Equal(t, byte(rtu.FuncWriteSingleReg), bus.lastRequest[1])
}

func TestReadAllDeviceInfoConcatenatesIndices(t *testing.T) {
	header := []byte{0xD9, rtu.FuncHuaweiVendor, 0x06, 0x43, 0x04, 0x00, 0x00}
	payload := []byte("VendorName=HUAWEI\n")
	bus := &fakeBus{reply: rtu.AppendCRC(append(append([]byte{}, header...), payload...))}
	eng := NewEngine(bus, clog.NewLogger("test"))

	combined, err := eng.ReadAllDeviceInfo(0xD9)
	require.NoError(t, err)
	assert.Contains(t, string(combined), "VendorName=HUAWEI")
}

func TestReadHistoryRecordDecodesOffsets(t *testing.T) {
	header := []byte{0xD9, rtu.FuncHuaweiVendor, 0x06, 0x43, 0x04, 0x00, 0x01}
	data := make([]byte, 32)
	data[8], data[9] = 0x10, 0x27 // little-endian 0x2710 = 10000 -> 100.00V
	bus := &fakeBus{reply: rtu.AppendCRC(append(append([]byte{}, header...), data...))}
	eng := NewEngine(bus, clog.NewLogger("test"))

	rec, err := eng.ReadHistoryRecord(0xD9, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.00, rec.PackVoltage)
}
