// Package schedule holds the per-channel pulse configuration that the command
// interface mutates and the trigger handler reads at schedule-build time.
package schedule

import "sync"

// Channel is one output channel's pulse configuration. Delay and width are
// always relative to the shared trigger epoch, never to wall-clock time.
type Channel struct {
	// DelayMicros is the time from the trigger epoch to the rise event.
	DelayMicros uint32
	// WidthMicros is the rise-to-fall duration.
	WidthMicros uint32
	// Brightness is the duty level driven while the channel is up (0-255).
	// Binary outputs use 255.
	Brightness uint8
}

// Table is the channel schedule table. Setters with an out-of-range index are
// silent no-ops and getters report ok=false; this mirrors the wire protocol's
// "ignore invalid input" contract.
type Table struct {
	mu sync.Mutex
	ch []Channel
}

// NewTable creates a table of n channels, each starting from defaults.
func NewTable(n int, defaults Channel) *Table {
	ch := make([]Channel, n)
	for i := range ch {
		ch[i] = defaults
	}
	return &Table{ch: ch}
}

// Len returns the channel count.
func (t *Table) Len() int {
	return len(t.ch)
}

// Get returns channel i's configuration.
func (t *Table) Get(i int) (Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.ch) {
		return Channel{}, false
	}
	return t.ch[i], true
}

// Delay returns channel i's delay in microseconds.
func (t *Table) Delay(i int) (uint32, bool) {
	c, ok := t.Get(i)
	return c.DelayMicros, ok
}

// SetDelay sets channel i's delay in microseconds.
func (t *Table) SetDelay(i int, v uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.ch) {
		return
	}
	t.ch[i].DelayMicros = v
}

// Width returns channel i's width in microseconds.
func (t *Table) Width(i int) (uint32, bool) {
	c, ok := t.Get(i)
	return c.WidthMicros, ok
}

// SetWidth sets channel i's width in microseconds.
func (t *Table) SetWidth(i int, v uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.ch) {
		return
	}
	t.ch[i].WidthMicros = v
}

// Brightness returns channel i's duty level.
func (t *Table) Brightness(i int) (uint8, bool) {
	c, ok := t.Get(i)
	return c.Brightness, ok
}

// SetBrightness sets channel i's duty level.
func (t *Table) SetBrightness(i int, v uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.ch) {
		return
	}
	t.ch[i].Brightness = v
}

// Snapshot returns a consistent copy of every channel. The trigger handler
// builds its schedule from a snapshot so a concurrent setter can never tear
// an in-flight schedule; writes landing during a snapshot apply to the next
// trigger.
func (t *Table) Snapshot() []Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Channel, len(t.ch))
	copy(out, t.ch)
	return out
}
