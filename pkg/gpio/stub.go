//go:build !linux

package gpio

import "errors"

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, offset int) (*RealOutput, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Drive is not implemented on non-Linux platforms.
func (o *RealOutput) Drive(level uint8) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

// RealTrigger is not available on non-Linux platforms.
type RealTrigger struct{}

// NewRealTrigger returns a stub on non-Linux platforms.
func NewRealTrigger(chip string, offset int) *RealTrigger {
	return &RealTrigger{}
}

// Watch is not implemented on non-Linux platforms.
func (t *RealTrigger) Watch(fn EdgeFunc) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (t *RealTrigger) Close() error {
	return nil
}
