package mqtt

import (
	"sync"

	"github.com/sidekick-epics/sidekick/pkg/host"
)

var _ Publisher = (*FakePublisher)(nil)

// FakePublisher records published measurements for tests.
type FakePublisher struct {
	mu        sync.Mutex
	published []host.Measurement
	closed    bool

	// PublishError, if set, is returned by Publish.
	PublishError error
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the measurement.
func (f *FakePublisher) Publish(m host.Measurement) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, m)
	return nil
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Published returns a copy of everything published so far.
func (f *FakePublisher) Published() []host.Measurement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]host.Measurement, len(f.published))
	copy(out, f.published)
	return out
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
