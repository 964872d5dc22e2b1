package protocol

import (
	"encoding/binary"

	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

// DeviceInfoIndices are the FC41 sub-indices read and concatenated to build
// a battery's full device identification block.
var DeviceInfoIndices = []uint16{0, 1, 2, 3, 4, 5}

// ReadDeviceInfo reads one FC41 device-info index and returns its raw ASCII
// payload. Per the engine's FC41 contract, it first verifies (and, if
// needed, re-runs) the battery's authentication before transacting.
func (e *Engine) ReadDeviceInfo(slave byte, index uint16) ([]byte, error) {
	if err := e.ensureAuthenticated(slave); err != nil {
		return nil, err
	}
	payload := []byte{0x06, 0x03, 0x04, byte(index >> 8), byte(index)}
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, payload)
	reply, err := e.transact(rtu.FuncHuaweiVendor, req, 0)
	if err != nil {
		return nil, err
	}
	data, err := rtu.DeviceInfoPayload(reply, slave, index)
	if err != nil {
		return nil, err
	}
	if len(reply) > 3 && !rtu.IsKnownFC41Discriminator(reply[3]) {
		e.log.Debug("battery %d: unfamiliar FC41 discriminator byte 0x%02X", slave, reply[3])
	}
	return data, nil
}

// ReadAllDeviceInfo reads every index in DeviceInfoIndices and returns the
// concatenated ASCII payload, tolerating individual index failures.
func (e *Engine) ReadAllDeviceInfo(slave byte) ([]byte, error) {
	var combined []byte
	var lastErr error
	for _, idx := range DeviceInfoIndices {
		chunk, err := e.ReadDeviceInfo(slave, idx)
		if err != nil {
			lastErr = err
			e.log.Warn("battery %d: device-info index %d failed: %v", slave, idx, err)
			continue
		}
		combined = append(combined, chunk...)
	}
	if len(combined) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &rtu.ProtocolViolation{Detail: "no device-info indices returned data"}
	}
	return combined, nil
}

// HistoryRecord is one decoded FC41 history entry, offsets grounded in the
// original source's _decode_history_record.
type HistoryRecord struct {
	RecordNumber   uint16
	PackVoltage    float64
	Current        float64
	TempLow        byte
	TempHigh       byte
	SOC            byte
	DischargeAh    uint16
	DischargeTimes byte
	BatteryVoltage float64
}

// ReadHistoryRecord reads history entry recordNumber for slave.
func (e *Engine) ReadHistoryRecord(slave byte, recordNumber uint16) (*HistoryRecord, error) {
	if err := e.ensureAuthenticated(slave); err != nil {
		return nil, err
	}
	payload := []byte{0x06, 0x03, 0x05, byte(recordNumber >> 8), byte(recordNumber)}
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, payload)
	reply, err := e.transact(rtu.FuncHuaweiVendor, req, 0)
	if err != nil {
		return nil, err
	}
	data, err := rtu.HistoryRecordData(reply, slave)
	if err != nil {
		return nil, err
	}
	return decodeHistoryRecord(recordNumber, data), nil
}

func decodeHistoryRecord(recordNumber uint16, data []byte) *HistoryRecord {
	return &HistoryRecord{
		RecordNumber:   recordNumber,
		PackVoltage:    float64(binary.LittleEndian.Uint16(data[8:10])) / 100,
		Current:        float64(int16(binary.LittleEndian.Uint16(data[10:12]))) / 100,
		TempLow:        data[16],
		TempHigh:       data[18],
		SOC:            data[20],
		DischargeAh:    binary.LittleEndian.Uint16(data[24:26]),
		DischargeTimes: data[28],
		BatteryVoltage: float64(binary.LittleEndian.Uint16(data[30:32])) / 100,
	}
}

// InitHistorySession opens an FC41 history session on slave.
func (e *Engine) InitHistorySession(slave byte) error {
	if err := e.ensureAuthenticated(slave); err != nil {
		return err
	}
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, []byte{0x05, 0x01, 0x05})
	_, err := e.transact(rtu.FuncHuaweiVendor, req, 0)
	return err
}

// ResetHistoryPointer rewinds slave's history cursor to the first record.
func (e *Engine) ResetHistoryPointer(slave byte) error {
	if err := e.ensureAuthenticated(slave); err != nil {
		return err
	}
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, []byte{0x06, 0x03, 0x05, 0x00, 0x00})
	_, err := e.transact(rtu.FuncHuaweiVendor, req, 0)
	return err
}

// CloseHistorySession closes slave's history session.
func (e *Engine) CloseHistorySession(slave byte) error {
	if err := e.ensureAuthenticated(slave); err != nil {
		return err
	}
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, []byte{0x0C, 0x01, 0x05})
	_, err := e.transact(rtu.FuncHuaweiVendor, req, 0)
	return err
}
