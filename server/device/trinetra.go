package device

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Trinetra simulates the TRINETRA ground unit.
type Trinetra struct {
	mu         sync.Mutex
	patrolling bool
	log        *zap.Logger
}

// NewTrinetra returns a handler for the ground unit.
func NewTrinetra(log *zap.Logger) *Trinetra {
	return &Trinetra{log: log.Named("trinetra")}
}

func (t *Trinetra) ID() string { return "trinetra" }

func (t *Trinetra) Execute(ctx context.Context, action string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Debug("executing action", zap.String("action", action))

	switch action {
	case "forward":
		return true, "TRINETRA moving forward. Obstacle detection active."
	case "backward":
		return true, "TRINETRA moving backward. Rear sensors engaged."
	case "left":
		return true, "TRINETRA turning left. Navigation systems updated."
	case "right":
		return true, "TRINETRA turning right. Course correction applied."
	case "patrol":
		t.patrolling = true
		return true, "TRINETRA starting patrol route. Sensors on full sweep."
	case StopAction:
		t.patrolling = false
		return true, "TRINETRA halted. All motors stopped."
	case "status":
		if t.patrolling {
			return true, "TRINETRA on patrol. All systems nominal."
		}
		return true, "TRINETRA systems ready. Awaiting movement commands."
	default:
		return false, fmt.Sprintf("TRINETRA does not support action %q.", action)
	}
}
