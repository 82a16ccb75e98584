package gpio

import (
	"sync"

	"github.com/sidekick-epics/sidekick/pkg/clock"
)

// Transition is one recorded level change on a fake output.
type Transition struct {
	// Micros is the clock reading when the level was driven.
	Micros uint32
	Level  uint8
}

var _ Output = (*FakeOutput)(nil)
var _ TriggerInput = (*FakeTrigger)(nil)

// FakeOutput records every level transition with its timestamp so tests can
// check pulse timing.
type FakeOutput struct {
	clk  clock.Clock
	name string

	mu          sync.Mutex
	level       uint8
	transitions []Transition
	closed      bool
}

// NewFakeOutput creates a fake output stamped from clk.
func NewFakeOutput(clk clock.Clock, name string) *FakeOutput {
	return &FakeOutput{clk: clk, name: name}
}

// Drive records the level change.
func (f *FakeOutput) Drive(level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
	f.transitions = append(f.transitions, Transition{Micros: f.clk.Micros(), Level: level})
	return nil
}

// Close marks the output closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Level returns the current driven level.
func (f *FakeOutput) Level() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Transitions returns a copy of all recorded transitions.
func (f *FakeOutput) Transitions() []Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Transition, len(f.transitions))
	copy(out, f.transitions)
	return out
}

// Reset clears the recorded transitions.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = f.transitions[:0]
}

// FakeTrigger is a trigger input whose edges are injected by the test.
type FakeTrigger struct {
	mu     sync.Mutex
	fn     EdgeFunc
	closed bool
}

// NewFakeTrigger creates a fake trigger input.
func NewFakeTrigger() *FakeTrigger {
	return &FakeTrigger{}
}

// Watch registers the edge handler.
func (f *FakeTrigger) Watch(fn EdgeFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	return nil
}

// Close stops edge delivery.
func (f *FakeTrigger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.fn = nil
	return nil
}

// Pulse injects one rising edge.
func (f *FakeTrigger) Pulse() {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}
