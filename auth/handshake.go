package auth

import (
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

// Bus is the minimal transport the Authenticator transacts over.
type Bus interface {
	Transact(request []byte, expectedLen int, readTimeout time.Duration) ([]byte, error)
}

// Clock returns the current time used to build the datetime-sync payload.
// Abstracted so tests can supply a fixed instant.
type Clock func() time.Time

// Authenticator drives the three-step handshake for one battery at a time.
type Authenticator struct {
	bus   Bus
	log   clog.Clog
	clock Clock
}

// NewAuthenticator returns an Authenticator using time.Now for step 2
// unless overridden with WithClock.
func NewAuthenticator(bus Bus, log clog.Clog) *Authenticator {
	return &Authenticator{bus: bus, log: log, clock: time.Now}
}

// WithClock overrides the clock used for the datetime-sync step; intended
// for tests.
func (a *Authenticator) WithClock(c Clock) *Authenticator {
	a.clock = c
	return a
}

const (
	step1Timeout = 1 * time.Second
	step2Timeout = 1 * time.Second
	step3Timeout = 1 * time.Second

	step1Delay = 500 * time.Millisecond
	step2Delay = 800 * time.Millisecond
	step3Delay = 300 * time.Millisecond
)

// Run executes all three steps in order for slave, stopping at the first
// failure.
func (a *Authenticator) Run(slave byte) error {
	if err := a.step1Unlock(slave); err != nil {
		return err
	}
	time.Sleep(step1Delay)

	if err := a.step2DateTimeSync(slave); err != nil {
		return err
	}
	time.Sleep(step2Delay)

	if err := a.step3AccessValidation(slave); err != nil {
		return err
	}
	time.Sleep(step3Delay)

	return nil
}

func (a *Authenticator) step1Unlock(slave byte) error {
	req := rtu.Encode(slave, rtu.FuncReadHoldingRegs, []byte{0x01, 0x06, 0x00, 0x01})
	reply, err := a.bus.Transact(req, 7, step1Timeout)
	if err != nil {
		return &StepFailed{Step: 1, Detail: err.Error()}
	}
	if len(reply) != 7 {
		return &StepFailed{Step: 1, Detail: "reply length != 7"}
	}
	if reply[0] != slave {
		return &StepFailed{Step: 1, Detail: "slave id mismatch"}
	}
	if reply[1] != rtu.FuncReadHoldingRegs {
		return &StepFailed{Step: 1, Detail: "unexpected function code"}
	}
	if reply[2] != 0x02 {
		return &StepFailed{Step: 1, Detail: "unexpected byte count"}
	}
	// byte[3] is undocumented upstream; field observation is always 0x00
	// on a genuine unlock. Reject anything else rather than warn-and-carry-on.
	if reply[3] != 0x00 {
		return &StepFailed{Step: 1, Detail: "unexpected byte[3]"}
	}
	a.log.Debug("battery %d: step 1 unlock accepted", slave)
	return nil
}

func (a *Authenticator) step2DateTimeSync(slave byte) error {
	now := a.clock()
	payload := []byte{
		0x10, 0x00, // address 0x1000
		0x00, 0x06, // 6 registers
		0x0C, // byte count
		byte(now.Year() >> 8), byte(now.Year()),
		0x00, byte(now.Month()),
		0x00, byte(now.Day()),
		0x00, byte(now.Hour()),
		0x00, byte(now.Minute()),
		0x00, byte(now.Second()),
	}
	req := rtu.Encode(slave, rtu.FuncWriteMultipleRegs, payload)
	reply, err := a.bus.Transact(req, 8, step2Timeout)
	if err != nil {
		return &StepFailed{Step: 2, Detail: err.Error()}
	}
	if len(reply) != 8 {
		return &StepFailed{Step: 2, Detail: "reply length != 8"}
	}
	want := []byte{slave, rtu.FuncWriteMultipleRegs, 0x10, 0x00, 0x00, 0x06}
	for i, b := range want {
		if reply[i] != b {
			return &StepFailed{Step: 2, Detail: "echo mismatch"}
		}
	}
	a.log.Debug("battery %d: step 2 datetime sync accepted", slave)
	return nil
}

func (a *Authenticator) step3AccessValidation(slave byte) error {
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, []byte{0x05, 0x01, 0x04})
	reply, err := a.bus.Transact(req, 0, step3Timeout)
	if err != nil {
		return &StepFailed{Step: 3, Detail: err.Error()}
	}
	if len(reply) < 9 {
		return &StepFailed{Step: 3, Detail: "reply shorter than 9 bytes"}
	}
	if reply[0] != slave || reply[1] != rtu.FuncHuaweiVendor {
		return &StepFailed{Step: 3, Detail: "slave/function mismatch"}
	}
	if reply[2] != 0x05 || reply[3] != 0x06 {
		return &StepFailed{Step: 3, Detail: "unexpected sub-code"}
	}
	a.log.Debug("battery %d: step 3 access validation accepted", slave)
	return nil
}

// TestAuthenticationStatus issues a single non-mutating FC41 device-info
// index-0 read to check whether slave currently answers authenticated
// traffic, without running (or perturbing) the full handshake.
func (a *Authenticator) TestAuthenticationStatus(slave byte) bool {
	req := rtu.Encode(slave, rtu.FuncHuaweiVendor, []byte{0x06, 0x03, 0x04, 0x00, 0x00})
	reply, err := a.bus.Transact(req, 0, step3Timeout)
	if err != nil {
		return false
	}
	_, err = rtu.DeviceInfoPayload(reply, slave, 0)
	return err == nil
}
