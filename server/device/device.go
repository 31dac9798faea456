// Package device implements the peripheral handlers the router dispatches
// to. Real hardware wiring (UART, MAVLink) lives outside this process; these
// handlers simulate the control surface and report success or rejection per
// action token.
package device

import "context"

// StopAction is the token every handler must accept for an emergency stop.
const StopAction = "stop"

// Handler is the capability surface the router sees for one peripheral.
type Handler interface {
	ID() string
	// Execute performs one action and reports whether it was accepted,
	// along with an operator-readable message. A false return means the
	// action was rejected, not necessarily that the device is unreachable.
	Execute(ctx context.Context, action string) (bool, string)
}
