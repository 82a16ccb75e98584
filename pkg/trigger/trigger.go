// Package trigger turns an external edge or an internal repetition-rate timer
// into a full pulse schedule: one rise and one fall event per configured
// channel, all measured from a shared epoch t0.
package trigger

import (
	"log"
	"math"
	"sync"

	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/schedule"
	"github.com/sidekick-epics/sidekick/pkg/timer"
)

// Actions drive a channel's output at the scheduled instants. Both calls run
// from the timer core's Tick on the run-loop goroutine.
type Actions interface {
	Rise(ch int, c schedule.Channel)
	Fall(ch int, c schedule.Channel)
}

// Handler is the trigger state machine. It has no explicit Armed/Idle
// variable: the device is armed exactly while the timer core still holds
// one-shot events from the previous trigger.
type Handler struct {
	clk    clock.Clock
	core   *timer.Core
	table  *schedule.Table
	acts   Actions
	leadIn uint32

	// Gate, when set, can veto a trigger in addition to the busy test. The
	// photodiode variant uses it to hold off until the last result is ready.
	Gate func() bool

	mu      sync.Mutex
	count   uint64
	rep     timer.Handle
	repSet  bool
	rateHz  float64
	pending []timer.Handle
}

// New creates a Handler. leadInMicros is the margin added to "now" when
// computing t0, covering the scheduling overhead before the first rise.
func New(clk clock.Clock, core *timer.Core, table *schedule.Table, acts Actions, leadInMicros uint32) *Handler {
	return &Handler{
		clk:    clk,
		core:   core,
		table:  table,
		acts:   acts,
		leadIn: leadInMicros,
	}
}

// Trigger handles one trigger edge. If no previous schedule is still in
// flight it computes t0 = now + lead-in and enqueues a rise and fall event
// per channel; otherwise the edge is dropped whole. The edge counter
// increments either way. Safe to call from any goroutine; the critical
// section is short and never blocks on I/O.
func (h *Handler) Trigger() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	if h.core.ActiveCount() > 0 {
		return false
	}
	if h.Gate != nil && !h.Gate() {
		return false
	}

	snap := h.table.Snapshot()
	t0 := h.clk.Micros() + h.leadIn
	h.pending = h.pending[:0]
	for i := range snap {
		ch, c := i, snap[i]
		rise, err := h.core.ScheduleAt(t0+c.DelayMicros, func(now uint32) timer.Outcome {
			h.acts.Rise(ch, c)
			return timer.Stop
		})
		if err != nil {
			h.abandon(ch, err)
			return false
		}
		h.pending = append(h.pending, rise)

		fall, err := h.core.ScheduleAt(t0+c.DelayMicros+c.WidthMicros, func(now uint32) timer.Outcome {
			h.acts.Fall(ch, c)
			return timer.Stop
		})
		if err != nil {
			h.abandon(ch, err)
			return false
		}
		h.pending = append(h.pending, fall)
	}
	return true
}

// abandon cancels a partially built schedule so the device returns to Idle
// instead of firing a torso of it. Caller holds h.mu.
func (h *Handler) abandon(ch int, err error) {
	log.Printf("trigger: scheduling channel %d: %v, dropping trigger", ch, err)
	for _, p := range h.pending {
		h.core.Cancel(p)
	}
	h.pending = h.pending[:0]
}

// Armed reports whether a schedule is currently in flight.
func (h *Handler) Armed() bool {
	return h.core.ActiveCount() > 0
}

// Count returns the number of trigger edges seen, accepted or not.
func (h *Handler) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// SetCount overwrites the edge counter, used by the host for resync.
func (h *Handler) SetCount(n uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count = n
}

// SetRate installs the internal repetition-rate driver at hz triggers per
// second, replacing any previous driver. The new period takes effect on the
// next period boundary, not retroactively. A rate <= 0 removes the driver.
func (h *Handler) SetRate(hz float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.repSet {
		h.core.Cancel(h.rep)
		h.repSet = false
	}
	h.rateHz = hz
	if hz <= 0 {
		return
	}

	periodMillis := math.Round(1000 / hz)
	if periodMillis < 1 {
		periodMillis = 1
	}
	// Deadlines further out than half the counter range are not wrap-safe.
	const maxPeriodMillis = (1 << 31) / 1000
	if periodMillis > maxPeriodMillis {
		log.Printf("trigger: rate %g Hz period is beyond the scheduling range, disabling driver", hz)
		h.rateHz = 0
		return
	}
	rep, err := h.core.ScheduleEvery(uint32(periodMillis)*1000, func(now uint32) timer.Outcome {
		h.Trigger()
		return timer.Rearm
	})
	if err != nil {
		log.Printf("trigger: installing repetition driver: %v", err)
		h.rateHz = 0
		return
	}
	h.rep = rep
	h.repSet = true
}

// Rate returns the configured repetition rate in Hz (0 when disabled).
func (h *Handler) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rateHz
}
