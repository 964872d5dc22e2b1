package gate

import (
	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
)

// Engine is the subset of protocol.Engine's typed operations a Gated
// façade forwards to once the fleet gate allows it.
type Engine interface {
	ReadHolding(slave byte, address, count uint16) ([]uint16, error)
	ReadInput(slave byte, address, count uint16) ([]uint16, error)
	ReadCoils(slave byte, address, count uint16) ([]bool, error)
	ReadDiscreteInputs(slave byte, address, count uint16) ([]bool, error)
	WriteSingleRegister(slave byte, address, value uint16) error
	WriteSingleCoil(slave byte, address uint16, on bool) error
	WriteMultipleRegisters(slave byte, address uint16, values []uint16) error
	WriteMultipleCoils(slave byte, address uint16, values []bool) error
}

// Gated wraps an Engine so every request-driven operation consults Check
// first and short-circuits on block without generating any bus traffic.
// The monitor loop and the initializer talk to the underlying Engine
// directly and are not subject to this wrapper.
type Gated struct {
	engine   Engine
	fleet    []byte
	registry *authstatus.Registry
}

// NewGated returns a Gated façade over engine, blocking on behalf of the
// given fleet id list using registry.
func NewGated(engine Engine, fleet []byte, registry *authstatus.Registry) *Gated {
	return &Gated{engine: engine, fleet: fleet, registry: registry}
}

func (g *Gated) ReadHolding(slave byte, address, count uint16) ([]uint16, error) {
	if err := Check(g.fleet, g.registry); err != nil {
		return nil, err
	}
	return g.engine.ReadHolding(slave, address, count)
}

func (g *Gated) ReadInput(slave byte, address, count uint16) ([]uint16, error) {
	if err := Check(g.fleet, g.registry); err != nil {
		return nil, err
	}
	return g.engine.ReadInput(slave, address, count)
}

func (g *Gated) ReadCoils(slave byte, address, count uint16) ([]bool, error) {
	if err := Check(g.fleet, g.registry); err != nil {
		return nil, err
	}
	return g.engine.ReadCoils(slave, address, count)
}

func (g *Gated) ReadDiscreteInputs(slave byte, address, count uint16) ([]bool, error) {
	if err := Check(g.fleet, g.registry); err != nil {
		return nil, err
	}
	return g.engine.ReadDiscreteInputs(slave, address, count)
}

func (g *Gated) WriteSingleRegister(slave byte, address, value uint16) error {
	if err := Check(g.fleet, g.registry); err != nil {
		return err
	}
	return g.engine.WriteSingleRegister(slave, address, value)
}

func (g *Gated) WriteSingleCoil(slave byte, address uint16, on bool) error {
	if err := Check(g.fleet, g.registry); err != nil {
		return err
	}
	return g.engine.WriteSingleCoil(slave, address, on)
}

func (g *Gated) WriteMultipleRegisters(slave byte, address uint16, values []uint16) error {
	if err := Check(g.fleet, g.registry); err != nil {
		return err
	}
	return g.engine.WriteMultipleRegisters(slave, address, values)
}

func (g *Gated) WriteMultipleCoils(slave byte, address uint16, values []bool) error {
	if err := Check(g.fleet, g.registry); err != nil {
		return err
	}
	return g.engine.WriteMultipleCoils(slave, address, values)
}
