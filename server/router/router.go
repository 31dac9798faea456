// Package router dispatches classified commands to their subsystem handler,
// applies state changes, and produces exactly one Result per command. The
// routing logic is synchronous and transport-free so it can be exercised
// without a live WebSocket.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/device"
	"github.com/lyralabs/lyra/server/intent"
	"github.com/lyralabs/lyra/server/observability"
	"github.com/lyralabs/lyra/server/store"
)

// Status is the outcome of one routed command.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Scope selects which sessions receive the Result.
type Scope int

const (
	// ScopeOriginator delivers only to the session that issued the command.
	ScopeOriginator Scope = iota
	// ScopeAll delivers to every connected session.
	ScopeAll
)

// Result is the single response produced for every routed command.
type Result struct {
	Status  Status
	Message string
	Scope   Scope
	Intent  intent.Intent
	// Device is set for device commands so the transport can choose the
	// device-specific response type.
	Device string
	// Mode is set on successful mode switches.
	Mode store.Mode
}

// offlineThreshold is how many consecutive rejected actions it takes before
// a device is marked offline. A single rejection means "action rejected",
// not "device unreachable".
const offlineThreshold = 3

// Router routes commands. It is the only writer of the store's mode and
// device-status fields.
type Router struct {
	store    *store.Store
	handlers map[string]device.Handler
	order    []string
	log      *zap.Logger

	mu       sync.Mutex
	failures map[string]int
}

// New builds a Router over the given handlers. Handler order is preserved
// for emergency-stop fanout.
func New(st *store.Store, log *zap.Logger, handlers ...device.Handler) *Router {
	r := &Router{
		store:    st,
		handlers: make(map[string]device.Handler, len(handlers)),
		failures: make(map[string]int, len(handlers)),
		log:      log.Named("router"),
	}
	for _, h := range handlers {
		r.handlers[h.ID()] = h
		r.order = append(r.order, h.ID())
	}
	return r
}

// Route dispatches one classified command and returns its Result. It never
// returns without a Result: a client is never left waiting on a command.
func (r *Router) Route(ctx context.Context, cmd intent.Command, sessionID string) Result {
	res := r.route(ctx, cmd)
	observability.CommandsTotal.WithLabelValues(string(cmd.Intent), string(res.Status)).Inc()
	r.log.Debug("routed command",
		zap.String("session", sessionID),
		zap.String("intent", string(cmd.Intent)),
		zap.String("status", string(res.Status)))
	return res
}

func (r *Router) route(ctx context.Context, cmd intent.Command) Result {
	switch cmd.Intent {
	case intent.Greeting:
		return r.greeting()
	case intent.Help:
		return r.help()
	case intent.SystemStatus:
		return r.systemStatus()
	case intent.ModeSwitch:
		return r.modeSwitch(cmd.Params["mode"])
	case intent.DeviceCommand:
		return r.deviceCommand(ctx, cmd.Params["device"], cmd.Params["action"])
	case intent.EmergencyStop:
		return r.emergencyStop(ctx)
	default:
		return r.unknown(cmd)
	}
}

func (r *Router) greeting() Result {
	mode := r.store.Mode()
	return Result{
		Status:  StatusSuccess,
		Scope:   ScopeOriginator,
		Intent:  intent.Greeting,
		Message: fmt.Sprintf("Hello Commander. LYRA is online and ready. Current mode: %s.", titleMode(mode)),
	}
}

func (r *Router) help() Result {
	return Result{
		Status: StatusSuccess,
		Scope:  ScopeOriginator,
		Intent: intent.Help,
		Message: "Available commands: system status, mode switch (home/defense/night/manual), " +
			"TRINETRA control (forward/backward/left/right/patrol/stop), " +
			"KRAIT-3 control (launch/land/hover/return/stop), emergency stop.",
	}
}

func (r *Router) systemStatus() Result {
	snap := r.store.Snapshot()
	temp := "n/a"
	if snap.Metrics.TemperatureCelsius != nil {
		temp = fmt.Sprintf("%.1f°C", *snap.Metrics.TemperatureCelsius)
	}
	network := "offline"
	if snap.Metrics.InternetConnected {
		network = "connected"
	}
	online := 0
	for _, d := range snap.Devices {
		if d.Online {
			online++
		}
	}
	return Result{
		Status: StatusSuccess,
		Scope:  ScopeOriginator,
		Intent: intent.SystemStatus,
		Message: fmt.Sprintf(
			"System status: CPU %.1f%%, RAM %.1f%%, Temp %s, Network %s. Mode: %s. Devices online: %d/%d.",
			snap.Metrics.CPUPercent, snap.Metrics.MemoryPercent, temp, network,
			titleMode(snap.Mode), online, len(snap.Devices)),
	}
}

var modeMessages = map[store.Mode]string{
	store.ModeHome:    "Switching to Home Mode. Standard operations resumed.",
	store.ModeDefense: "Switching to Defense Mode. All systems on high alert.",
	store.ModeNight:   "Switching to Night Mode. Low power operations active.",
	store.ModeManual:  "Switching to Manual Mode. Awaiting direct commands.",
}

func (r *Router) modeSwitch(requested string) Result {
	mode, ok := store.ParseMode(requested)
	if !ok {
		// No state was touched; other clients are not told about a no-op.
		return Result{
			Status:  StatusFailure,
			Scope:   ScopeOriginator,
			Intent:  intent.ModeSwitch,
			Message: fmt.Sprintf("Unknown mode %q. Known modes: home, defense, night, manual.", requested),
		}
	}
	prev := r.store.SetMode(mode)
	observability.SetMode(string(mode))
	if prev != mode {
		r.log.Info("mode switched", zap.String("from", string(prev)), zap.String("to", string(mode)))
	}
	return Result{
		Status:  StatusSuccess,
		Scope:   ScopeAll,
		Intent:  intent.ModeSwitch,
		Mode:    mode,
		Message: modeMessages[mode],
	}
}

func (r *Router) deviceCommand(ctx context.Context, deviceID, action string) Result {
	h, ok := r.handlers[deviceID]
	if !ok {
		return Result{
			Status:  StatusFailure,
			Scope:   ScopeOriginator,
			Intent:  intent.DeviceCommand,
			Message: fmt.Sprintf("Unknown device %q.", deviceID),
		}
	}

	ok, msg := h.Execute(ctx, action)
	r.recordAction(deviceID, ok, msg)

	status := StatusSuccess
	if !ok {
		status = StatusFailure
	}
	return Result{
		Status:  status,
		Scope:   ScopeAll,
		Intent:  intent.DeviceCommand,
		Device:  deviceID,
		Message: msg,
	}
}

// emergencyStop bypasses per-device dispatch and stops every handler
// unconditionally, regardless of the current mode. It always reports
// success: a failed stop is logged and recorded, never silently dropped,
// but must not stop the fanout to the remaining devices.
func (r *Router) emergencyStop(ctx context.Context) Result {
	for _, id := range r.order {
		ok, msg := r.handlers[id].Execute(ctx, device.StopAction)
		r.recordAction(id, ok, msg)
		if !ok {
			r.log.Error("emergency stop failed for device",
				zap.String("device", id),
				zap.String("message", msg))
		}
	}
	return Result{
		Status:  StatusSuccess,
		Scope:   ScopeAll,
		Intent:  intent.EmergencyStop,
		Message: "EMERGENCY STOP executed. All devices commanded to halt.",
	}
}

func (r *Router) unknown(cmd intent.Command) Result {
	return Result{
		Status:  StatusSuccess,
		Scope:   ScopeOriginator,
		Intent:  intent.Unknown,
		Message: fmt.Sprintf("I didn't understand %q. Say \"help\" for available commands.", cmd.RawText),
	}
}

// recordAction updates the device's stored status after a handler call.
// Online tracks last successful issuance; repeated consecutive rejections,
// not a single one, flip a device offline.
func (r *Router) recordAction(deviceID string, ok bool, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, found := r.store.Device(deviceID)
	if !found {
		return
	}
	now := time.Now()
	st.LastActionResult = &store.ActionResult{OK: ok, Message: msg, At: now}
	if ok {
		r.failures[deviceID] = 0
		st.Online = true
		st.LastSeen = now
	} else {
		r.failures[deviceID]++
		if r.failures[deviceID] >= offlineThreshold {
			st.Online = false
			r.log.Warn("device marked offline after consecutive failures",
				zap.String("device", deviceID),
				zap.Int("failures", r.failures[deviceID]))
		}
	}
	if err := r.store.SetDeviceStatus(deviceID, st); err != nil {
		r.log.Error("failed to update device status", zap.String("device", deviceID), zap.Error(err))
	}
}

func titleMode(m store.Mode) string {
	s := string(m)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
