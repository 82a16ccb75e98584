package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-epics/sidekick/pkg/clock"
)

func TestOneShotFiresAtDeadline(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	fired := 0
	_, err := core.ScheduleAt(1000, func(now uint32) Outcome {
		fired++
		return Stop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, core.ActiveCount())

	assert.Equal(t, 0, core.Tick(), "must not fire before the deadline")

	clk.Advance(999)
	assert.Equal(t, 0, core.Tick())

	clk.Advance(1)
	assert.Equal(t, 1, core.Tick())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, core.ActiveCount())

	// Fired entries stay gone.
	clk.Advance(1000)
	assert.Equal(t, 0, core.Tick())
	assert.Equal(t, 1, fired)
}

func TestFiringOrderIsDeadlineOrderWithStableTies(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	var order []string
	record := func(name string) Callback {
		return func(now uint32) Outcome {
			order = append(order, name)
			return Stop
		}
	}

	_, err := core.ScheduleAt(2000, record("late"))
	require.NoError(t, err)
	_, err = core.ScheduleAt(1000, record("early-first"))
	require.NoError(t, err)
	_, err = core.ScheduleAt(1000, record("early-second"))
	require.NoError(t, err)

	clk.Advance(5000)
	assert.Equal(t, 3, core.Tick())
	assert.Equal(t, []string{"early-first", "early-second", "late"}, order)
}

func TestDeadlineOrderAcrossWraparound(t *testing.T) {
	clk := clock.NewSim()
	clk.Set(0xFFFFFF00)
	core := New(clk, 0)

	fired := false
	deadline := clk.Micros() + 0x200 // wraps past zero
	_, err := core.ScheduleAt(deadline, func(now uint32) Outcome {
		fired = true
		return Stop
	})
	require.NoError(t, err)

	assert.Equal(t, 0, core.Tick())

	clk.Advance(0x200)
	assert.Equal(t, 1, core.Tick())
	assert.True(t, fired)
}

func TestPeriodicRearmsAndCatchesUp(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	fired := 0
	_, err := core.ScheduleEvery(100, func(now uint32) Outcome {
		fired++
		return Rearm
	})
	require.NoError(t, err)

	// First firing is one period out, not immediately.
	assert.Equal(t, 0, core.Tick())

	clk.Advance(100)
	assert.Equal(t, 1, core.Tick())
	assert.Equal(t, 1, fired)

	// A slow loop catches up one period at a time within a single Tick.
	clk.Advance(250)
	assert.Equal(t, 2, core.Tick())
	assert.Equal(t, 3, fired)
}

func TestPeriodicStopsOnStopOutcome(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	fired := 0
	_, err := core.ScheduleEvery(100, func(now uint32) Outcome {
		fired++
		return Stop
	})
	require.NoError(t, err)

	clk.Advance(1000)
	core.Tick()
	clk.Advance(1000)
	core.Tick()
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, core.PeriodicCount())
}

func TestCapacityExhaustionFailsLoudly(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 2)

	nop := func(now uint32) Outcome { return Stop }

	_, err := core.ScheduleAt(100, nop)
	require.NoError(t, err)
	_, err = core.ScheduleAt(200, nop)
	require.NoError(t, err)

	_, err = core.ScheduleAt(300, nop)
	assert.ErrorIs(t, err, ErrNoFreeSlot)

	// Slots free up once entries fire.
	clk.Advance(500)
	core.Tick()
	_, err = core.ScheduleAt(600, nop)
	assert.NoError(t, err)
}

func TestCancelPreventsFiring(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	fired := false
	h, err := core.ScheduleAt(100, func(now uint32) Outcome {
		fired = true
		return Stop
	})
	require.NoError(t, err)

	core.Cancel(h)
	assert.Equal(t, 0, core.ActiveCount())

	clk.Advance(500)
	assert.Equal(t, 0, core.Tick())
	assert.False(t, fired)
}

func TestCancelOfReusedSlotIsANoOp(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 1)

	h1, err := core.ScheduleAt(100, func(now uint32) Outcome { return Stop })
	require.NoError(t, err)
	core.Cancel(h1)

	fired := false
	_, err = core.ScheduleAt(100, func(now uint32) Outcome {
		fired = true
		return Stop
	})
	require.NoError(t, err)

	// Stale handle must not cancel the slot's new occupant.
	core.Cancel(h1)

	clk.Advance(500)
	core.Tick()
	assert.True(t, fired)
}

func TestActiveCountExcludesPeriodicDrivers(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	nop := func(now uint32) Outcome { return Rearm }
	_, err := core.ScheduleEvery(1000, nop)
	require.NoError(t, err)
	assert.Equal(t, 0, core.ActiveCount())
	assert.Equal(t, 1, core.PeriodicCount())

	_, err = core.ScheduleAt(100, func(now uint32) Outcome { return Stop })
	require.NoError(t, err)
	assert.Equal(t, 1, core.ActiveCount())
}

func TestCallbackMayScheduleMore(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	var second bool
	_, err := core.ScheduleAt(100, func(now uint32) Outcome {
		_, err := core.ScheduleAt(now+100, func(uint32) Outcome {
			second = true
			return Stop
		})
		assert.NoError(t, err)
		return Stop
	})
	require.NoError(t, err)

	clk.Advance(100)
	core.Tick()
	assert.False(t, second)

	clk.Advance(100)
	core.Tick()
	assert.True(t, second)
}

func TestCancelAll(t *testing.T) {
	clk := clock.NewSim()
	core := New(clk, 0)

	nop := func(now uint32) Outcome { return Stop }
	_, err := core.ScheduleAt(100, nop)
	require.NoError(t, err)
	_, err = core.ScheduleEvery(100, func(now uint32) Outcome { return Rearm })
	require.NoError(t, err)

	core.CancelAll()
	assert.Equal(t, 0, core.ActiveCount())
	assert.Equal(t, 0, core.PeriodicCount())

	clk.Advance(1000)
	assert.Equal(t, 0, core.Tick())
}
