// Package timer implements a fixed-capacity, deadline-ordered event scheduler
// for the run loop. Entries live in a small slot arena, so the hot path never
// allocates, and callbacks only ever run from Tick, so latency is bounded by the
// iteration time of the surrounding loop, not by interrupts.
package timer

import (
	"errors"
	"sync"

	"github.com/sidekick-epics/sidekick/pkg/clock"
)

// DefaultCapacity is the slot count used when no capacity is given.
const DefaultCapacity = 16

// ErrNoFreeSlot is returned when every slot is occupied. Callers are expected
// to treat this as a configuration error: log it and abandon the schedule.
var ErrNoFreeSlot = errors.New("timer: no free slot")

// Outcome tells the core what to do with a periodic entry after its callback
// has run.
type Outcome int

const (
	// Stop removes the entry.
	Stop Outcome = iota
	// Rearm keeps a periodic entry scheduled for one period later.
	Rearm
)

// Callback runs from Tick once the entry's deadline has elapsed. The return
// value is ignored for one-shot entries.
type Callback func(now uint32) Outcome

// Handle identifies a scheduled entry for cancellation.
type Handle struct {
	slot int
	seq  uint64
}

type entry struct {
	active   bool
	running  bool
	canceled bool
	deadline uint32
	period   uint32 // 0 for one-shot
	seq      uint64
	fire     Callback
}

// Core is the scheduler. Scheduling and cancellation are safe from any
// goroutine; callbacks execute only on the goroutine calling Tick.
type Core struct {
	clk   clock.Clock
	mu    sync.Mutex
	slots []entry
	seq   uint64
}

// New creates a Core with the given slot capacity (DefaultCapacity if <= 0).
func New(clk clock.Clock, capacity int) *Core {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Core{clk: clk, slots: make([]entry, capacity)}
}

// ScheduleAt registers a one-shot callback to run at or after the absolute
// deadline (in clock microseconds).
func (c *Core) ScheduleAt(deadline uint32, fire Callback) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule(deadline, 0, fire)
}

// ScheduleEvery registers a periodic callback. The first firing happens one
// period from now, so a freshly installed driver takes effect on the next
// period boundary.
func (c *Core) ScheduleEvery(period uint32, fire Callback) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule(c.clk.Micros()+period, period, fire)
}

// schedule claims a free slot. Caller holds c.mu.
func (c *Core) schedule(deadline, period uint32, fire Callback) (Handle, error) {
	for i := range c.slots {
		s := &c.slots[i]
		if s.active || s.running {
			continue
		}
		c.seq++
		*s = entry{
			active:   true,
			deadline: deadline,
			period:   period,
			seq:      c.seq,
			fire:     fire,
		}
		return Handle{slot: i, seq: c.seq}, nil
	}
	return Handle{}, ErrNoFreeSlot
}

// Cancel removes the entry identified by h. Canceling an already fired or
// reused slot is a no-op. An entry canceled while its callback is running
// will not be rearmed.
func (c *Core) Cancel(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.slot < 0 || h.slot >= len(c.slots) {
		return
	}
	s := &c.slots[h.slot]
	if s.seq != h.seq {
		return
	}
	if s.running {
		s.canceled = true
		return
	}
	s.active = false
}

// CancelAll removes every scheduled entry.
func (c *Core) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		s := &c.slots[i]
		if s.running {
			s.canceled = true
			continue
		}
		s.active = false
	}
}

// ActiveCount returns the number of one-shot entries scheduled and not yet
// fired. This is the trigger handler's busy predicate: long-lived periodic
// drivers do not count, pending pulse events do.
func (c *Core) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.slots {
		if c.slots[i].active && c.slots[i].period == 0 {
			n++
		}
	}
	return n
}

// PeriodicCount returns the number of installed periodic entries.
func (c *Core) PeriodicCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.slots {
		if c.slots[i].active && c.slots[i].period != 0 {
			n++
		}
	}
	return n
}

// Tick fires every entry whose deadline has elapsed, in deadline order with
// ties broken by scheduling order. It returns the number of callbacks run.
// Must be called frequently from the run loop; it is the only place
// callbacks execute.
func (c *Core) Tick() int {
	fired := 0
	for {
		now := c.clk.Micros()

		c.mu.Lock()
		idx := -1
		for i := range c.slots {
			s := &c.slots[i]
			if !s.active || clock.Before(now, s.deadline) {
				continue
			}
			if idx < 0 || earlier(s, &c.slots[idx]) {
				idx = i
			}
		}
		if idx < 0 {
			c.mu.Unlock()
			return fired
		}
		s := &c.slots[idx]
		fire := s.fire
		deadline := s.deadline
		period := s.period
		s.active = false
		s.running = true
		s.canceled = false
		c.mu.Unlock()

		// Callback runs without the lock so it may schedule or cancel.
		out := fire(now)
		fired++

		c.mu.Lock()
		s = &c.slots[idx]
		s.running = false
		if period != 0 && out == Rearm && !s.canceled {
			s.active = true
			s.deadline = deadline + period
		}
		s.canceled = false
		c.mu.Unlock()
	}
}

// earlier reports whether a fires before b: wrap-safe deadline order, stable
// by scheduling sequence on equal deadlines.
func earlier(a, b *entry) bool {
	if a.deadline != b.deadline {
		return clock.Before(a.deadline, b.deadline)
	}
	return a.seq < b.seq
}
