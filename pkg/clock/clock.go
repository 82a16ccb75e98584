// Package clock provides the free-running microsecond counter that the event
// scheduler runs against. Ticks are uint32 and wrap around roughly every 71
// minutes, matching the device counter, so instants must always be compared
// with Before/Elapsed rather than with relational operators.
package clock

import (
	"sync"
	"time"
)

// Clock reads the free-running counter.
type Clock interface {
	// Micros returns the counter in microseconds. Wraps.
	Micros() uint32
	// Millis returns the counter in milliseconds. Wraps.
	Millis() uint32
}

// Before reports whether tick a is earlier than tick b. Correct across
// counter wraparound as long as the two ticks are less than half the counter
// range apart.
func Before(a, b uint32) bool {
	return int32(a-b) < 0
}

// Elapsed returns the ticks elapsed from a to b, correct across wraparound.
func Elapsed(a, b uint32) uint32 {
	return b - a
}

// Wall is a Clock backed by the process monotonic clock.
type Wall struct {
	start time.Time
}

// NewWall creates a Wall clock starting at zero.
func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

// Micros returns microseconds since the clock was created.
func (w *Wall) Micros() uint32 {
	return uint32(time.Since(w.start).Microseconds())
}

// Millis returns milliseconds since the clock was created.
func (w *Wall) Millis() uint32 {
	return uint32(time.Since(w.start).Milliseconds())
}

// Sim is a manually advanced Clock for tests and simulation.
type Sim struct {
	mu  sync.Mutex
	now uint32
}

// NewSim creates a Sim clock at tick zero.
func NewSim() *Sim {
	return &Sim{}
}

// Micros returns the current simulated tick.
func (s *Sim) Micros() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Millis returns the current simulated tick in milliseconds.
func (s *Sim) Millis() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now / 1000
}

// Advance moves the clock forward by d microseconds.
func (s *Sim) Advance(d uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += d
}

// Set jumps the clock to an absolute tick. Used to exercise wraparound.
func (s *Sim) Set(t uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}
