package store

import "time"

// Mode is the process-wide operational mode. Exactly one is active at any
// time; transitions happen only through explicit mode-switch commands.
type Mode string

const (
	ModeHome    Mode = "home"
	ModeDefense Mode = "defense"
	ModeNight   Mode = "night"
	ModeManual  Mode = "manual"
)

// ParseMode maps a raw mode token to a known Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeHome, ModeDefense, ModeNight, ModeManual:
		return Mode(s), true
	default:
		return "", false
	}
}

// Known device identifiers. The device set is fixed at process start; there
// is no dynamic registration.
const (
	DeviceTrinetra = "trinetra"
	DeviceKrait3   = "krait3"
)

// KnownDevices lists the fixed device set in stable order.
var KnownDevices = []string{DeviceTrinetra, DeviceKrait3}

// ActionResult records the outcome of the last action issued to a device.
type ActionResult struct {
	OK      bool
	Message string
	At      time.Time
}

// DeviceStatus is the last-known state of one peripheral.
//
// Online reflects last successful command issuance, not real connectivity
// probing: there is no liveness poll against the hardware, so a device is
// considered online once a command has succeeded and is only marked offline
// again after repeated consecutive failures.
type DeviceStatus struct {
	ID               string
	Online           bool
	LastSeen         time.Time
	LastActionResult *ActionResult
}

// Metrics is one host sample. It is replaced whole on every sampling tick,
// never field-merged. TemperatureCelsius is nil when the host exposes no
// readable sensor.
type Metrics struct {
	CPUPercent         float64
	MemoryPercent      float64
	DiskPercent        float64
	TemperatureCelsius *float64
	UptimeSeconds      float64
	InternetConnected  bool
	SampledAt          time.Time
}

// Snapshot is a consistent copy of the full store state.
type Snapshot struct {
	Mode    Mode
	Devices map[string]DeviceStatus
	Metrics Metrics
}
