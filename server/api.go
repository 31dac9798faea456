package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/intent"
	"github.com/lyralabs/lyra/server/observability"
	"github.com/lyralabs/lyra/server/protocol"
	"github.com/lyralabs/lyra/server/router"
	"github.com/lyralabs/lyra/server/store"
)

const pongTimeout = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The front end is a local Electron/browser shell; allow all origins.
		return true
	},
}

// API wires the transport endpoint to the classifier, router, and hub.
type API struct {
	store   *store.Store
	router  *router.Router
	hub     *Hub
	limiter *sessionLimiter
	log     *zap.Logger
}

// NewAPI builds the endpoint surface.
func NewAPI(st *store.Store, rt *router.Router, hub *Hub, log *zap.Logger) *API {
	return &API{
		store:   st,
		router:  rt,
		hub:     hub,
		limiter: newSessionLimiter(10, 20),
		log:     log.Named("api"),
	}
}

// BroadcastStatus pushes the current state snapshot to every session. The
// sampler calls this after each tick.
func (a *API) BroadcastStatus() {
	a.hub.PushToAll(protocol.Outbound{
		Type: protocol.TypeSystemStatus,
		Data: a.statusPayload(),
	})
}

// handleWS upgrades the connection, registers the session, and runs the
// read pump until the client goes away.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sessionID := newSessionID()
	if !a.hub.Register(sessionID, conn) {
		return
	}
	defer func() {
		a.hub.Unregister(sessionID)
		a.limiter.Forget(sessionID)
	}()

	// Greet the new session with a full snapshot so the dashboard renders
	// immediately instead of waiting for the next sampler tick.
	a.hub.PushTo(sessionID, protocol.Outbound{
		Type: protocol.TypeSystemStatus,
		Data: a.statusPayload(),
	})

	// Read-side liveness only; the hub's writer goroutine owns all writes
	// to the connection, pings included.
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				a.log.Warn("websocket read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		a.handleMessage(r.Context(), sessionID, data)
	}
}

// handleMessage decodes one inbound envelope, classifies it, routes it, and
// delivers the Result per its broadcast scope. Every command produces
// exactly one response frame for the originator.
func (a *API) handleMessage(ctx context.Context, sessionID string, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		a.pushError(sessionID, "malformed message")
		return
	}
	if env.Type != protocol.TypeCommand {
		a.pushError(sessionID, "unknown message type: "+env.Type)
		return
	}

	var payload protocol.CommandPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		a.pushError(sessionID, "malformed command payload")
		return
	}

	if !a.limiter.Allow(sessionID) {
		observability.RateLimited.Inc()
		a.pushError(sessionID, "too many commands, slow down")
		return
	}

	cmd, ok := buildCommand(payload)
	if !ok {
		a.pushError(sessionID, "empty command")
		return
	}

	res := a.router.Route(ctx, cmd, sessionID)
	out := resultFrame(res)

	if res.Scope == router.ScopeAll {
		a.hub.PushToAll(out)
	} else {
		a.hub.PushTo(sessionID, out)
	}
}

// buildCommand turns an inbound payload into a classified command. The mode
// field is a UI shortcut that skips classification; text and action go
// through the classifier.
func buildCommand(p protocol.CommandPayload) (intent.Command, bool) {
	switch {
	case p.Text != "":
		return intent.Classify(p.Text), true
	case p.Mode != "":
		return intent.Command{
			Intent:  intent.ModeSwitch,
			RawText: p.Mode,
			Params:  map[string]string{"mode": p.Mode},
		}, true
	case p.Action != "":
		return intent.Classify(p.Action), true
	default:
		return intent.Command{}, false
	}
}

// resultFrame picks the outbound frame type for a Result: device commands go
// out as their device-specific response type, everything else as a plain
// command_result.
func resultFrame(res router.Result) protocol.Outbound {
	frameType := protocol.TypeCommandResult
	switch res.Device {
	case store.DeviceTrinetra:
		frameType = protocol.TypeTrinetraResponse
	case store.DeviceKrait3:
		frameType = protocol.TypeKrait3Response
	}
	return protocol.Outbound{
		Type: frameType,
		Data: protocol.ResultPayload{
			Status:    string(res.Status),
			Message:   res.Message,
			Intent:    string(res.Intent),
			Device:    res.Device,
			Mode:      string(res.Mode),
			Timestamp: time.Now(),
		},
	}
}

func (a *API) pushError(sessionID, msg string) {
	a.hub.PushTo(sessionID, protocol.Outbound{
		Type: protocol.TypeError,
		Data: protocol.ErrorPayload{Message: msg},
	})
}

func (a *API) statusPayload() protocol.StatusPayload {
	snap := a.store.Snapshot()

	devices := make([]protocol.DevicePayload, 0, len(snap.Devices))
	for _, id := range store.KnownDevices {
		d := snap.Devices[id]
		dp := protocol.DevicePayload{ID: d.ID, Online: d.Online}
		if !d.LastSeen.IsZero() {
			t := d.LastSeen
			dp.LastSeen = &t
		}
		if d.LastActionResult != nil {
			dp.LastResult = d.LastActionResult.Message
		}
		devices = append(devices, dp)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	return protocol.StatusPayload{
		Mode: string(snap.Mode),
		Metrics: protocol.MetricsPayload{
			CPUPercent:         snap.Metrics.CPUPercent,
			MemoryPercent:      snap.Metrics.MemoryPercent,
			DiskPercent:        snap.Metrics.DiskPercent,
			TemperatureCelsius: snap.Metrics.TemperatureCelsius,
			UptimeSeconds:      snap.Metrics.UptimeSeconds,
			InternetConnected:  snap.Metrics.InternetConnected,
			SampledAt:          snap.Metrics.SampledAt,
		},
		Devices: devices,
	}
}

func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
