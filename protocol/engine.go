// Package protocol exposes typed Modbus and Huawei FC41 operations layered
// on top of rtu (framing) and transport (the serial bus).
package protocol

import (
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/rtu"
	"github.com/williamsioSapo/esm-battery-gateway/transport"
)

// Bus is the subset of transport.Bus the engine depends on.
type Bus interface {
	Transact(request []byte, expectedLen int, readTimeout time.Duration) ([]byte, error)
}

// Authenticator is the subset of auth.Authenticator the engine invokes to
// recover a battery's authenticate phase before an FC41 call.
type Authenticator interface {
	Run(slave byte) error
}

// Engine executes Modbus operations against a Bus.
type Engine struct {
	bus      Bus
	log      clog.Clog
	registry *authstatus.Registry
	auth     Authenticator
}

// NewEngine returns an Engine driving bus. FC41 calls skip the
// verify-before-call check until WithAuthentication is called.
func NewEngine(bus Bus, log clog.Clog) *Engine {
	return &Engine{bus: bus, log: log}
}

// WithAuthentication wires the registry and authenticator an FC41 call
// consults: if a battery's authenticate phase is not SUCCESS, the engine
// triggers one Authenticator pass before proceeding.
func (e *Engine) WithAuthentication(registry *authstatus.Registry, authenticator Authenticator) *Engine {
	e.registry = registry
	e.auth = authenticator
	return e
}

// ensureAuthenticated verifies slave's authenticate phase is SUCCESS,
// triggering one Authenticator pass and updating the registry if not.
// A nil registry/auth (engine built without WithAuthentication) is a
// no-op, preserving plain Modbus-only use.
func (e *Engine) ensureAuthenticated(slave byte) error {
	if e.registry == nil || e.auth == nil {
		return nil
	}
	if rec, ok := e.registry.Get(slave); ok && rec.Phases[authstatus.PhaseAuthenticate].State == authstatus.Success {
		return nil
	}
	e.log.Debug("battery %d: authenticate phase not SUCCESS, triggering re-authentication before FC41 call", slave)
	e.registry.UpdatePhase(slave, authstatus.PhaseAuthenticate, authstatus.InProgress, "re-authenticating before FC41 call")
	if err := e.auth.Run(slave); err != nil {
		e.registry.UpdatePhase(slave, authstatus.PhaseAuthenticate, authstatus.Failed, err.Error())
		return err
	}
	e.registry.UpdatePhase(slave, authstatus.PhaseAuthenticate, authstatus.Success, "re-authenticated before FC41 call")
	return nil
}

func (e *Engine) transact(fc byte, request []byte, expectedLen int) ([]byte, error) {
	return e.bus.Transact(request, expectedLen, transport.TimeoutFor(fc))
}

// ReadHolding reads count holding registers starting at address.
func (e *Engine) ReadHolding(slave byte, address, count uint16) ([]uint16, error) {
	req := rtu.Encode(slave, rtu.FuncReadHoldingRegs, beU16Pair(address, count))
	reply, err := e.transact(rtu.FuncReadHoldingRegs, req, 5+int(count)*2)
	if err != nil {
		return nil, err
	}
	return rtu.Registers(reply, slave, rtu.FuncReadHoldingRegs, int(count))
}

// ReadInput reads count input registers starting at address.
func (e *Engine) ReadInput(slave byte, address, count uint16) ([]uint16, error) {
	req := rtu.Encode(slave, rtu.FuncReadInputRegs, beU16Pair(address, count))
	reply, err := e.transact(rtu.FuncReadInputRegs, req, 5+int(count)*2)
	if err != nil {
		return nil, err
	}
	return rtu.Registers(reply, slave, rtu.FuncReadInputRegs, int(count))
}

// ReadCoils reads count coils starting at address.
func (e *Engine) ReadCoils(slave byte, address, count uint16) ([]bool, error) {
	req := rtu.Encode(slave, rtu.FuncReadCoils, beU16Pair(address, count))
	reply, err := e.transact(rtu.FuncReadCoils, req, 5+(int(count)+7)/8)
	if err != nil {
		return nil, err
	}
	return rtu.Coils(reply, slave, rtu.FuncReadCoils, int(count))
}

// ReadDiscreteInputs reads count discrete inputs starting at address.
func (e *Engine) ReadDiscreteInputs(slave byte, address, count uint16) ([]bool, error) {
	req := rtu.Encode(slave, rtu.FuncReadDiscreteInputs, beU16Pair(address, count))
	reply, err := e.transact(rtu.FuncReadDiscreteInputs, req, 5+(int(count)+7)/8)
	if err != nil {
		return nil, err
	}
	return rtu.Coils(reply, slave, rtu.FuncReadDiscreteInputs, int(count))
}

// WriteSingleRegister writes value to address.
func (e *Engine) WriteSingleRegister(slave byte, address, value uint16) error {
	req := rtu.Encode(slave, rtu.FuncWriteSingleReg, beU16Pair(address, value))
	reply, err := e.transact(rtu.FuncWriteSingleReg, req, 8)
	if err != nil {
		return err
	}
	return rtu.WriteEcho(reply, slave, rtu.FuncWriteSingleReg, address, value)
}

// WriteSingleCoil writes on/off to address.
func (e *Engine) WriteSingleCoil(slave byte, address uint16, on bool) error {
	val := uint16(0x0000)
	if on {
		val = 0xFF00
	}
	req := rtu.Encode(slave, rtu.FuncWriteSingleCoil, beU16Pair(address, val))
	reply, err := e.transact(rtu.FuncWriteSingleCoil, req, 8)
	if err != nil {
		return err
	}
	return rtu.WriteEcho(reply, slave, rtu.FuncWriteSingleCoil, address, val)
}

// WriteMultipleRegisters writes values starting at address.
func (e *Engine) WriteMultipleRegisters(slave byte, address uint16, values []uint16) error {
	payload := beU16Pair(address, uint16(len(values)))
	payload = append(payload, byte(len(values)*2))
	for _, v := range values {
		payload = append(payload, byte(v>>8), byte(v))
	}
	req := rtu.Encode(slave, rtu.FuncWriteMultipleRegs, payload)
	reply, err := e.transact(rtu.FuncWriteMultipleRegs, req, 8)
	if err != nil {
		return err
	}
	return rtu.WriteEcho(reply, slave, rtu.FuncWriteMultipleRegs, address, uint16(len(values)))
}

// WriteMultipleCoils writes values starting at address.
func (e *Engine) WriteMultipleCoils(slave byte, address uint16, values []bool) error {
	byteCount := (len(values) + 7) / 8
	payload := beU16Pair(address, uint16(len(values)))
	payload = append(payload, byte(byteCount))
	bits := make([]byte, byteCount)
	for i, v := range values {
		if v {
			bits[i/8] |= 1 << uint(i%8)
		}
	}
	payload = append(payload, bits...)
	req := rtu.Encode(slave, rtu.FuncWriteMultipleCoils, payload)
	reply, err := e.transact(rtu.FuncWriteMultipleCoils, req, 8)
	if err != nil {
		return err
	}
	return rtu.WriteEcho(reply, slave, rtu.FuncWriteMultipleCoils, address, uint16(len(values)))
}

func beU16Pair(a, b uint16) []byte {
	return []byte{byte(a >> 8), byte(a), byte(b >> 8), byte(b)}
}
