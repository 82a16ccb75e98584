package mqtt

import (
	"log"

	"github.com/sidekick-epics/sidekick/pkg/host"
)

// ringBuffer queues measurements while the broker is unreachable, keeping the
// newest capacity entries. The publisher holds the lock; the buffer itself
// does no locking.
type ringBuffer struct {
	buf      []host.Measurement
	capacity int
	head     int // next write position
	count    int
	overflow bool // a drop happened since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]host.Measurement, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(m host.Measurement) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: outage buffer full (%d measurements), oldest overwritten", r.capacity)
			r.overflow = true
		}
		// When full, head points at the oldest entry.
		r.buf[r.head] = m
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = m
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// drainAll returns the queued measurements oldest first and empties the
// buffer.
func (r *ringBuffer) drainAll() []host.Measurement {
	if r.count == 0 {
		return nil
	}

	result := make([]host.Measurement, r.count)
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
