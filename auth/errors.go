// Package auth executes the three-step Huawei authentication handshake
// (unlock, datetime sync, access validation) required before a battery
// accepts FC41 traffic.
package auth

import "fmt"

// StepFailed identifies which handshake step rejected its reply.
type StepFailed struct {
	Step   int
	Detail string
}

func (e *StepFailed) Error() string {
	return fmt.Sprintf("authentication step %d failed: %s", e.Step, e.Detail)
}
