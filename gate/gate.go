// Package gate implements the Operation Gate: a pure predicate blocking
// request-driven operations until every configured battery has
// successfully authenticated.
package gate

import (
	"fmt"

	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
)

// Blocked is returned by Check when one or more configured batteries have
// not reached the SUCCESS global state.
type Blocked struct {
	FailedIDs []byte
}

func (e *Blocked) Error() string {
	return fmt.Sprintf("operation blocked: batteries not authenticated: %v", e.FailedIDs)
}

// Check returns nil if every id in fleet is SUCCESS in registry, or a
// *Blocked error naming the ids that are not.
func Check(fleet []byte, registry *authstatus.Registry) error {
	failed := registry.FailedIDs(fleet)
	if len(failed) > 0 {
		return &Blocked{FailedIDs: failed}
	}
	return nil
}
