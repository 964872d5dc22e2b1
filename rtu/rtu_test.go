package rtu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAppendsCRC(t *testing.T) {
	frame := Encode(0xD9, FuncReadHoldingRegs, []byte{0x00, 0x00, 0x00, 0x01})
	want := []byte{0xD9, 0x03, 0x00, 0x00, 0x00, 0x01, 0x96, 0xD2}
	assert.Equal(t, want, frame)
}

func TestVerifyCRCRoundTrip(t *testing.T) {
	frame := Encode(0x0A, FuncReadHoldingRegs, []byte{0x00, 0x01, 0x00, 0x02})
	assert.True(t, VerifyCRC(frame))

	frame[len(frame)-1] ^= 0xFF
	assert.False(t, VerifyCRC(frame))
}

func TestVerifyCRCTooShort(t *testing.T) {
	assert.False(t, VerifyCRC([]byte{0x01, 0x02}))
}

func TestRegistersDecodesBigEndianWords(t *testing.T) {
	body := []byte{0xD9, 0x03, 0x04, 0x0F, 0xA0, 0x00, 0x64}
	reply := AppendCRC(body)

	vals, err := Registers(reply, 0xD9, FuncReadHoldingRegs, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0FA0, 0x0064}, vals)
}

func TestRegistersRejectsException(t *testing.T) {
	body := []byte{0xD9, FuncReadHoldingRegs | 0x80, 0x02}
	reply := AppendCRC(body)

	_, err := Registers(reply, 0xD9, FuncReadHoldingRegs, 1)
	var modbusErr *ModbusException
	require.True(t, errors.As(err, &modbusErr))
	assert.Equal(t, byte(0x02), modbusErr.Code)
	assert.Equal(t, "IllegalAddress", modbusErr.Name)
}

func TestRegistersRejectsCRCMismatch(t *testing.T) {
	reply := []byte{0xD9, 0x03, 0x02, 0x00, 0x01, 0x00, 0x00}
	_, err := Registers(reply, 0xD9, FuncReadHoldingRegs, 1)
	assert.ErrorIs(t, err, FrameCorrupt{})
}

func TestWriteEchoValidatesAddressAndValue(t *testing.T) {
	body := []byte{0x0A, FuncWriteSingleReg, 0x00, 0x10, 0x00, 0x2A}
	reply := AppendCRC(body)
	assert.NoError(t, WriteEcho(reply, 0x0A, FuncWriteSingleReg, 0x0010, 0x002A))

	badReply := AppendCRC([]byte{0x0A, FuncWriteSingleReg, 0x00, 0x10, 0x00, 0x2B})
	var violation *ProtocolViolation
	assert.True(t, errors.As(WriteEcho(badReply, 0x0A, FuncWriteSingleReg, 0x0010, 0x002A), &violation))
}

func TestDeviceInfoPayloadExtractsASCII(t *testing.T) {
	header := []byte{0xD9, FuncHuaweiVendor, 0x06, 0x43, 0x04, 0x00, 0x00}
	payload := []byte("VendorName=HUAWEI\n")
	reply := AppendCRC(append(append([]byte{}, header...), payload...))

	got, err := DeviceInfoPayload(reply, 0xD9, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHistoryRecordDataDetectsEndOfHistory(t *testing.T) {
	header := []byte{0xD9, FuncHuaweiVendor, 0x06, 0x43, 0x04, 0x00, 0x01}
	allFF := make([]byte, historyRecordLen)
	for i := range allFF {
		allFF[i] = 0xFF
	}
	reply := AppendCRC(append(append([]byte{}, header...), allFF...))

	_, err := HistoryRecordData(reply, 0xD9)
	assert.ErrorIs(t, err, ErrEndOfHistory)
}
