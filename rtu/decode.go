package rtu

import "fmt"

// Registers decodes a FC03/FC04 read-registers reply body (everything after
// the byte-count field) into big-endian 16-bit words.
func Registers(frame []byte, slave, fc byte, count int) ([]uint16, error) {
	if err := checkHeader(frame, slave, fc); err != nil {
		return nil, err
	}
	byteCount := int(frame[2])
	if byteCount != 2*count {
		return nil, &ProtocolViolation{Detail: fmt.Sprintf("expected %d data bytes, header says %d", 2*count, byteCount)}
	}
	if len(frame) < 3+byteCount+2 {
		return nil, &ProtocolViolation{Detail: "reply shorter than declared byte count"}
	}
	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		hi := frame[3+2*i]
		lo := frame[3+2*i+1]
		out[i] = uint16(hi)<<8 | uint16(lo)
	}
	return out, nil
}

// Coils decodes a FC01/FC02 read-bits reply body into count booleans,
// LSB-first within each byte.
func Coils(frame []byte, slave, fc byte, count int) ([]bool, error) {
	if err := checkHeader(frame, slave, fc); err != nil {
		return nil, err
	}
	byteCount := int(frame[2])
	wantBytes := (count + 7) / 8
	if byteCount != wantBytes {
		return nil, &ProtocolViolation{Detail: fmt.Sprintf("expected %d data bytes, header says %d", wantBytes, byteCount)}
	}
	if len(frame) < 3+byteCount+2 {
		return nil, &ProtocolViolation{Detail: "reply shorter than declared byte count"}
	}
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		b := frame[3+i/8]
		out[i] = (b>>(uint(i)%8))&1 == 1
	}
	return out, nil
}

// WriteEcho validates a FC05/FC06/FC0F/FC10 write reply, which echoes the
// address and (for single writes) the value, or (for multiple writes) the
// quantity written.
func WriteEcho(frame []byte, slave, fc byte, address, valueOrCount uint16) error {
	if err := checkHeader(frame, slave, fc); err != nil {
		return err
	}
	if len(frame) < 6 {
		return &ProtocolViolation{Detail: "write reply too short"}
	}
	gotAddr := uint16(frame[2])<<8 | uint16(frame[3])
	gotVal := uint16(frame[4])<<8 | uint16(frame[5])
	if gotAddr != address {
		return &ProtocolViolation{Detail: fmt.Sprintf("echoed address 0x%04X != requested 0x%04X", gotAddr, address)}
	}
	if gotVal != valueOrCount {
		return &ProtocolViolation{Detail: fmt.Sprintf("echoed value/count 0x%04X != requested 0x%04X", gotVal, valueOrCount)}
	}
	return nil
}

// checkHeader validates CRC, slave id, and function code/exception status
// common to every standard reply.
func checkHeader(frame []byte, slave, fc byte) error {
	if len(frame) < 5 {
		return &ProtocolViolation{Detail: "reply too short"}
	}
	if !VerifyCRC(frame) {
		return FrameCorrupt{}
	}
	isExc, origFC := IsException(frame)
	if isExc {
		return newModbusException(ExceptionCode(frame))
	}
	if frame[0] != slave {
		return &ProtocolViolation{Detail: fmt.Sprintf("slave id %d != expected %d", frame[0], slave)}
	}
	if origFC != fc {
		return &ProtocolViolation{Detail: fmt.Sprintf("function code 0x%02X != expected 0x%02X", origFC, fc)}
	}
	return nil
}
