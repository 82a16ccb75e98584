//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

var _ Output = (*RealOutput)(nil)
var _ TriggerInput = (*RealTrigger)(nil)

// RealOutput drives an output line through the Linux GPIO character device.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests the line at offset on chip as an output, initially
// low.
func NewRealOutput(chip string, offset int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return &RealOutput{line: line}, nil
}

// Drive asserts the line for any nonzero level and releases it for zero.
func (o *RealOutput) Drive(level uint8) error {
	v := 0
	if level > 0 {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set line value: %w", err)
	}
	return nil
}

// Close releases the line, driving it low first so the rig is left in a
// known state.
func (o *RealOutput) Close() error {
	if o.line == nil {
		return nil
	}
	if err := o.line.SetValue(0); err != nil {
		o.line.Close()
		return fmt.Errorf("release line: %w", err)
	}
	if err := o.line.Close(); err != nil {
		return fmt.Errorf("close line: %w", err)
	}
	return nil
}

// RealTrigger watches a rising edge on the external trigger line.
type RealTrigger struct {
	chip   string
	offset int
	line   *gpiocdev.Line
}

// NewRealTrigger creates a trigger watcher for the line at offset on chip.
func NewRealTrigger(chip string, offset int) *RealTrigger {
	return &RealTrigger{chip: chip, offset: offset}
}

// Watch requests the line with rising-edge events and delivers each edge to
// fn. The handler runs on gpiocdev's event goroutine, so fn must stay short.
func (t *RealTrigger) Watch(fn EdgeFunc) error {
	line, err := gpiocdev.RequestLine(t.chip, t.offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { fn() }))
	if err != nil {
		return fmt.Errorf("request trigger line %d: %w", t.offset, err)
	}
	t.line = line
	return nil
}

// Close releases the trigger line.
func (t *RealTrigger) Close() error {
	if t.line == nil {
		return nil
	}
	if err := t.line.Close(); err != nil {
		return fmt.Errorf("close trigger line: %w", err)
	}
	return nil
}
