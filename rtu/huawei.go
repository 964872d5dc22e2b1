package rtu

import "fmt"

// fc41HeaderLen is the fixed header length before the payload in every
// FC41 device-info and history reply: slave, fc, sub-fc, discriminator,
// 0x04, index-hi, index-lo.
const fc41HeaderLen = 7

// historyRecordLen is the length of the data block returned by a history
// record read, starting right after the fixed header.
const historyRecordLen = 32

// knownFC41Discriminators are the reply byte[3] values observed in the
// field; any other value is accepted but logged by the caller.
var knownFC41Discriminators = map[byte]bool{0x43: true, 0x1F: true}

// IsKnownFC41Discriminator reports whether b is one of the observed FC41
// reply discriminator bytes.
func IsKnownFC41Discriminator(b byte) bool {
	return knownFC41Discriminators[b]
}

// DeviceInfoPayload extracts the ASCII payload from a FC41 device-info
// reply for the given slave and info index.
func DeviceInfoPayload(frame []byte, slave byte, index uint16) ([]byte, error) {
	if len(frame) < fc41HeaderLen+2 {
		return nil, &ProtocolViolation{Detail: "FC41 device-info reply too short"}
	}
	if !VerifyCRC(frame) {
		return nil, FrameCorrupt{}
	}
	isExc, origFC := IsException(frame)
	if isExc {
		return nil, newModbusException(ExceptionCode(frame))
	}
	if frame[0] != slave || origFC != FuncHuaweiVendor {
		return nil, &ProtocolViolation{Detail: "FC41 device-info reply slave/fc mismatch"}
	}
	gotIndex := uint16(frame[5])<<8 | uint16(frame[6])
	if gotIndex != index {
		return nil, &ProtocolViolation{Detail: fmt.Sprintf("FC41 echoed index %d != requested %d", gotIndex, index)}
	}
	return frame[fc41HeaderLen : len(frame)-2], nil
}

// HistoryRecordData extracts the 32-byte data block from a FC41 history
// record reply, or returns EndOfHistory if the block is all 0xFF.
func HistoryRecordData(frame []byte, slave byte) ([]byte, error) {
	if len(frame) < fc41HeaderLen+historyRecordLen+2 {
		return nil, &ProtocolViolation{Detail: "FC41 history reply too short"}
	}
	if !VerifyCRC(frame) {
		return nil, FrameCorrupt{}
	}
	isExc, origFC := IsException(frame)
	if isExc {
		return nil, newModbusException(ExceptionCode(frame))
	}
	if frame[0] != slave || origFC != FuncHuaweiVendor {
		return nil, &ProtocolViolation{Detail: "FC41 history reply slave/fc mismatch"}
	}
	data := frame[fc41HeaderLen : fc41HeaderLen+historyRecordLen]
	allFF := true
	for _, b := range data {
		if b != 0xFF {
			allFF = false
			break
		}
	}
	if allFF {
		return nil, ErrEndOfHistory
	}
	return data, nil
}

// ErrEndOfHistory is returned (via errors.Is) when a history record read
// returns the all-0xFF terminal sentinel.
var ErrEndOfHistory = endOfHistory{}

type endOfHistory struct{}

func (endOfHistory) Error() string { return "end of history" }
