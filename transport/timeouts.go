package transport

import (
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

// TimeoutTable maps a function code to the read timeout the Protocol Engine
// should pass to Transact for it. Authentication steps use their own,
// longer, fixed delays (see the auth package) rather than this table.
var TimeoutTable = map[byte]time.Duration{
	rtu.FuncReadCoils:          200 * time.Millisecond,
	rtu.FuncReadDiscreteInputs: 200 * time.Millisecond,
	rtu.FuncReadHoldingRegs:    200 * time.Millisecond,
	rtu.FuncReadInputRegs:      200 * time.Millisecond,
	rtu.FuncWriteSingleCoil:    200 * time.Millisecond,
	rtu.FuncWriteSingleReg:     200 * time.Millisecond,
	rtu.FuncWriteMultipleCoils: 400 * time.Millisecond,
	rtu.FuncWriteMultipleRegs:  400 * time.Millisecond,
	rtu.FuncHuaweiVendor:       600 * time.Millisecond,
}

// TimeoutFor returns the configured timeout for fc, or a conservative
// default if fc is not in the table.
func TimeoutFor(fc byte) time.Duration {
	if d, ok := TimeoutTable[fc]; ok {
		return d
	}
	return 500 * time.Millisecond
}
