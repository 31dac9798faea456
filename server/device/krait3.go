package device

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Krait3 simulates the KRAIT-3 UAV. It tracks a single airborne flag so
// flight actions that make no sense on the ground are rejected rather than
// silently accepted.
type Krait3 struct {
	mu       sync.Mutex
	airborne bool
	log      *zap.Logger
}

// NewKrait3 returns a handler for the UAV.
func NewKrait3(log *zap.Logger) *Krait3 {
	return &Krait3{log: log.Named("krait3")}
}

func (k *Krait3) ID() string { return "krait3" }

func (k *Krait3) Execute(ctx context.Context, action string) (bool, string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.log.Debug("executing action", zap.String("action", action))

	switch action {
	case "launch":
		if k.airborne {
			return false, "KRAIT-3 is already airborne."
		}
		k.airborne = true
		return true, "KRAIT-3 launching. Flight systems nominal."
	case "land":
		k.airborne = false
		return true, "KRAIT-3 landing sequence initiated. Safe touchdown confirmed."
	case "hover":
		if !k.airborne {
			return false, "KRAIT-3 cannot hover: not airborne."
		}
		return true, "KRAIT-3 entering hover mode. Position locked."
	case "return":
		if !k.airborne {
			return false, "KRAIT-3 cannot return to base: not airborne."
		}
		return true, "KRAIT-3 returning to base. Navigation locked on home point."
	case StopAction:
		// Emergency stop: cut motors and force a landing state regardless
		// of the current flight phase.
		k.airborne = false
		return true, "KRAIT-3 emergency stop. Motors cut, descending."
	case "status":
		if k.airborne {
			return true, "KRAIT-3 airborne. Flight control nominal."
		}
		return true, "KRAIT-3 systems online. Flight control ready."
	default:
		return false, fmt.Sprintf("KRAIT-3 does not support action %q.", action)
	}
}
