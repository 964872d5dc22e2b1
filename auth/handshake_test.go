package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/rtu"
)

// scriptedBus returns one canned reply per call, in order.
type scriptedBus struct {
	replies [][]byte
	calls   int
}

func (s *scriptedBus) Transact(request []byte, expectedLen int, readTimeout time.Duration) ([]byte, error) {
	r := s.replies[s.calls]
	s.calls++
	return r, nil
}

func TestRunSucceedsOnValidSequence(t *testing.T) {
	slave := byte(0xD9)
	step1 := rtu.AppendCRC([]byte{slave, 0x03, 0x02, 0x00, 0xCB})
	step2 := rtu.AppendCRC([]byte{slave, 0x10, 0x10, 0x00, 0x00, 0x06})
	step3 := rtu.AppendCRC([]byte{slave, 0x41, 0x05, 0x06, 0x00, 0x00, 0x00})

	bus := &scriptedBus{replies: [][]byte{step1, step2, step3}}
	a := NewAuthenticator(bus, clog.NewLogger("test")).WithClock(func() time.Time {
		return time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	})

	err := a.Run(slave)
	require.NoError(t, err)
}

func TestRunRejectsStep1BadByte3(t *testing.T) {
	slave := byte(0xD9)
	step1 := rtu.AppendCRC([]byte{slave, 0x03, 0x02, 0x01, 0xCB})

	bus := &scriptedBus{replies: [][]byte{step1}}
	a := NewAuthenticator(bus, clog.NewLogger("test"))

	err := a.Run(slave)
	var stepErr *StepFailed
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Step)
}

func TestRunRejectsStep3ShortReply(t *testing.T) {
	slave := byte(0xD9)
	step1 := rtu.AppendCRC([]byte{slave, 0x03, 0x02, 0x00, 0xCB})
	step2 := rtu.AppendCRC([]byte{slave, 0x10, 0x10, 0x00, 0x00, 0x06})
	step3 := rtu.AppendCRC([]byte{slave, 0x41})

	bus := &scriptedBus{replies: [][]byte{step1, step2, step3}}
	a := NewAuthenticator(bus, clog.NewLogger("test"))

	err := a.Run(slave)
	var stepErr *StepFailed
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 3, stepErr.Step)
}
