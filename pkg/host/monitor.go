package host

import (
	"sync"
	"time"
)

// Monitor keeps a sliding time window of streamed measurements and notifies
// registered callbacks as new ones arrive. The bridge uses it to expose the
// recent history without re-querying the device.
type Monitor struct {
	window time.Duration

	mu           sync.RWMutex
	measurements []Measurement
	shutdown     bool

	cbMu      sync.RWMutex
	callbacks []func([]Measurement)
}

// NewMonitor creates a Monitor retaining measurements for the given window.
func NewMonitor(window time.Duration) *Monitor {
	return &Monitor{window: window}
}

// Process consumes measurements from input until it closes. Run it in its
// own goroutine.
func (m *Monitor) Process(input <-chan Measurement) {
	for meas := range input {
		m.add(meas)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// add appends a measurement, trims the window by timestamp, and notifies.
func (m *Monitor) add(meas Measurement) {
	m.mu.Lock()
	m.measurements = append(m.measurements, meas)

	cutoff := meas.Timestamp.Add(-m.window)
	trim := 0
	for trim < len(m.measurements) && !m.measurements[trim].Timestamp.After(cutoff) {
		trim++
	}
	if trim > 0 {
		m.measurements = m.measurements[trim:]
	}
	notify := !m.shutdown
	m.mu.Unlock()

	if notify {
		m.notifyCallbacks()
	}
}

// Measurements returns a copy of the current window, oldest first.
func (m *Monitor) Measurements() []Measurement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Measurement, len(m.measurements))
	copy(out, m.measurements)
	return out
}

// Latest returns the most recent measurement.
func (m *Monitor) Latest() (Measurement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.measurements) == 0 {
		return Measurement{}, false
	}
	return m.measurements[len(m.measurements)-1], true
}

// OnUpdate registers a callback invoked with the current window after each
// new measurement. Callbacks should return quickly.
func (m *Monitor) OnUpdate(callback func([]Measurement)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// notifyCallbacks invokes callbacks with a copy of the window, without
// holding the data lock.
func (m *Monitor) notifyCallbacks() {
	window := m.Measurements()

	m.cbMu.RLock()
	callbacks := make([]func([]Measurement), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(window)
		}
	}
}
