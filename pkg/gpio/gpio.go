// Package gpio drives the rig's output lines and watches the external
// trigger input. The real implementation uses the Linux GPIO character
// device; the fake implementation records transitions and injects edges for
// tests and simulation.
package gpio

// Output drives one physical output line. Level 0 releases the line, any
// nonzero level asserts it. Dimming electrical behavior is out of scope for
// the real lines, so they treat every nonzero level as high; the fake keeps
// the exact level so tests can check LED duty settings.
type Output interface {
	Drive(level uint8) error
	Close() error
}

// EdgeFunc is invoked once per rising edge on the trigger input. It runs on
// the event goroutine and must not block or do variable-duration work.
type EdgeFunc func()

// TriggerInput watches the external trigger line.
type TriggerInput interface {
	// Watch starts delivering edges to fn.
	Watch(fn EdgeFunc) error
	Close() error
}

// DefaultChip is the GPIO chip the Raspberry Pi header lines live on.
const DefaultChip = "gpiochip0"
