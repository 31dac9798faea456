// Package protocol defines the wire message shapes exchanged with dashboard
// clients over the WebSocket channel.
package protocol

import (
	"encoding/json"
	"time"
)

// Inbound message type. Clients only ever send command envelopes.
const TypeCommand = "command"

// Outbound message types.
const (
	TypeSystemStatus     = "system_status"
	TypeCommandResult    = "command_result"
	TypeTrinetraResponse = "trinetra_response"
	TypeKrait3Response   = "krait3_response"
	TypeError            = "error"
)

// Envelope is the inbound frame from a client. Data is decoded per Type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CommandPayload is the body of an inbound command envelope. Exactly one of
// the fields is expected to be set: Text for free-form commands, Mode for the
// mode-switch shortcut, Action for UI button shortcuts.
type CommandPayload struct {
	Text   string `json:"text,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Action string `json:"action,omitempty"`
}

// Outbound is a server-to-client frame.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ResultPayload is the body of a command_result (or device response) frame.
type ResultPayload struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Intent    string    `json:"intent,omitempty"`
	Device    string    `json:"device,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// StatusPayload is the body of a system_status frame: the full state snapshot
// pushed on connect, on demand, and on every sampler tick.
type StatusPayload struct {
	Mode    string          `json:"mode"`
	Metrics MetricsPayload  `json:"metrics"`
	Devices []DevicePayload `json:"devices"`
}

// MetricsPayload mirrors the last host sample. Temperature is null where the
// host exposes no readable sensor; clients must not fold that to 0.
type MetricsPayload struct {
	CPUPercent         float64   `json:"cpu_percent"`
	MemoryPercent      float64   `json:"memory_percent"`
	DiskPercent        float64   `json:"disk_percent"`
	TemperatureCelsius *float64  `json:"temperature_celsius"`
	UptimeSeconds      float64   `json:"uptime_seconds"`
	InternetConnected  bool      `json:"internet_connected"`
	SampledAt          time.Time `json:"sampled_at"`
}

// DevicePayload mirrors one peripheral's last-known status.
type DevicePayload struct {
	ID         string     `json:"id"`
	Online     bool       `json:"online"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
}
