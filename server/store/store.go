// Package store holds the process-wide shared state: operational mode,
// per-device status, and the last host metrics sample. It is the single
// source of truth; the router, sampler, and broadcaster only ever touch it
// through the methods here.
package store

import (
	"errors"
	"sync"
)

// ErrUnknownDevice is returned for device ids outside the fixed set.
var ErrUnknownDevice = errors.New("unknown device")

// Store is safe for concurrent use. Mutators are serialized so readers never
// observe a torn mix of old and new fields from a single mutation.
type Store struct {
	mu      sync.RWMutex
	mode    Mode
	devices map[string]DeviceStatus
	metrics Metrics
}

// New initializes a Store in Home mode with every known device offline.
// State is process-lifetime only: a restart resets to these defaults.
func New() *Store {
	devices := make(map[string]DeviceStatus, len(KnownDevices))
	for _, id := range KnownDevices {
		devices[id] = DeviceStatus{ID: id}
	}
	return &Store{
		mode:    ModeHome,
		devices: devices,
	}
}

// Snapshot returns a consistent copy of the current state. The returned
// value shares no mutable memory with the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make(map[string]DeviceStatus, len(s.devices))
	for id, d := range s.devices {
		if d.LastActionResult != nil {
			r := *d.LastActionResult
			d.LastActionResult = &r
		}
		devices[id] = d
	}
	return Snapshot{
		Mode:    s.mode,
		Devices: devices,
		Metrics: s.metrics,
	}
}

// Mode returns the current operational mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the operational mode and returns the previous one.
func (s *Store) SetMode(m Mode) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.mode
	s.mode = m
	return prev
}

// Device returns the status of one known device.
func (s *Store) Device(id string) (DeviceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if ok && d.LastActionResult != nil {
		r := *d.LastActionResult
		d.LastActionResult = &r
	}
	return d, ok
}

// SetDeviceStatus replaces the status of one known device.
func (s *Store) SetDeviceStatus(id string, status DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return ErrUnknownDevice
	}
	status.ID = id
	s.devices[id] = status
	return nil
}

// SetMetrics atomically replaces the last host sample.
func (s *Store) SetMetrics(m Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Metrics returns the last host sample.
func (s *Store) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}
