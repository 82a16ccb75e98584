package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-epics/sidekick/pkg/adc"
	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/timer"
)

func TestContinuousAcquisition(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, FullScaleCounts: 4095, Mode: Continuous}
	acc := New(adc.Constant(2048), nil, cfg)

	assert.True(t, acc.Ready())
	assert.False(t, acc.Active())

	acc.Start(400_000, 7)
	assert.True(t, acc.Active())
	assert.False(t, acc.Ready(), "not ready while the window is open")

	for i := 0; i < 4; i++ {
		acc.Step()
	}
	acc.Stop()

	assert.False(t, acc.Active())
	assert.True(t, acc.Ready())

	want := 2048.0 * (3.3 / 4095.0) * 0.4
	res := acc.Result()
	assert.InDelta(t, want, res.VoltSeconds, 1e-12)
	assert.Equal(t, uint64(7), res.Trigger)

	// Reads are idempotent until the next window closes.
	assert.Equal(t, res, acc.Result())
}

func TestEmptyWindowYieldsZero(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, Mode: Continuous}
	acc := New(adc.Constant(4095), nil, cfg)

	acc.Start(100_000, 1)
	acc.Stop()

	res := acc.Result()
	assert.Equal(t, 0.0, res.VoltSeconds)
	assert.Equal(t, uint64(1), res.Trigger)
}

func TestStepOutsideWindowIsIgnored(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, Mode: Continuous}
	acc := New(adc.Constant(4095), nil, cfg)

	acc.Step()
	acc.Step()
	acc.Start(100_000, 1)
	acc.Stop()

	assert.Equal(t, 0.0, acc.Result().VoltSeconds)
}

func TestAverageOfVaryingSamples(t *testing.T) {
	samples := []uint16{1000, 2000, 3000}
	i := 0
	src := adc.Func(func() uint16 {
		v := samples[i%len(samples)]
		i++
		return v
	})

	cfg := Config{FullScaleVolts: 3.3, FullScaleCounts: 4095, Mode: Continuous}
	acc := New(src, nil, cfg)

	acc.Start(1_000_000, 3)
	for range samples {
		acc.Step()
	}
	acc.Stop()

	want := 2000.0 * (3.3 / 4095.0) * 1.0
	assert.InDelta(t, want, acc.Result().VoltSeconds, 1e-12)
}

func TestSubsampledAcquisition(t *testing.T) {
	clk := clock.NewSim()
	core := timer.New(clk, 0)
	cfg := Config{
		FullScaleVolts:       3.3,
		FullScaleCounts:      4095,
		Mode:                 Subsampled,
		SampleIntervalMicros: 200,
	}
	acc := New(adc.Constant(1024), core, cfg)

	acc.Start(1000, 5)
	require.Equal(t, 1, core.PeriodicCount())

	// Step is a no-op outside Continuous mode.
	acc.Step()

	for i := 0; i < 5; i++ {
		clk.Advance(200)
		core.Tick()
	}
	acc.Stop()

	assert.Equal(t, 0, core.PeriodicCount(), "stop must remove the sampler")

	want := 1024.0 * (3.3 / 4095.0) * 0.001
	res := acc.Result()
	assert.InDelta(t, want, res.VoltSeconds, 1e-12)
	assert.Equal(t, uint64(5), res.Trigger)

	// A stale tick after Stop must not sample into the closed window.
	clk.Advance(200)
	core.Tick()
	assert.InDelta(t, want, acc.Result().VoltSeconds, 1e-12)
}

func TestResultPairSurvivesOpenWindow(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, FullScaleCounts: 4095, Mode: Continuous}
	acc := New(adc.Constant(2048), nil, cfg)

	acc.Start(400_000, 1)
	acc.Step()
	acc.Stop()
	first := acc.Result()
	require.Equal(t, uint64(1), first.Trigger)

	// A second window opens; polls before it closes must still return the
	// completed pair, never trigger 2 with trigger 1's value.
	acc.Start(400_000, 2)
	acc.Step()
	assert.Equal(t, first, acc.Result())

	acc.Stop()
	res := acc.Result()
	assert.Equal(t, uint64(2), res.Trigger)
	assert.InDelta(t, first.VoltSeconds, res.VoltSeconds, 1e-12)
}

func TestDoubleStopIsIdempotent(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, Mode: Continuous}
	acc := New(adc.Constant(100), nil, cfg)

	acc.Start(100_000, 2)
	acc.Step()
	acc.Stop()
	first := acc.Result()

	acc.Stop()
	assert.Equal(t, first, acc.Result())
}

func TestOnResultPublishesCompletedPair(t *testing.T) {
	cfg := Config{FullScaleVolts: 3.3, FullScaleCounts: 4095, Mode: Continuous}
	acc := New(adc.Constant(4095), nil, cfg)

	var got []Result
	acc.OnResult = func(r Result) {
		got = append(got, r)
		// The callback may read back without deadlocking.
		assert.Equal(t, r, acc.Result())
	}

	acc.Start(500_000, 9)
	acc.Step()
	acc.Stop()

	require.Len(t, got, 1)
	assert.InDelta(t, 3.3*0.5, got[0].VoltSeconds, 1e-12)
	assert.Equal(t, uint64(9), got[0].Trigger)
}

func TestFullScaleCountsDefault(t *testing.T) {
	acc := New(adc.Constant(0), nil, Config{FullScaleVolts: 3.3})
	assert.Equal(t, float64(adc.FullScaleCounts), acc.cfg.FullScaleCounts)
}

func TestDebugFlag(t *testing.T) {
	acc := New(adc.Constant(0), nil, Config{FullScaleVolts: 3.3})
	assert.False(t, acc.Debug())
	acc.SetDebug(true)
	assert.True(t, acc.Debug())

	// The diagnostic record at Stop must not disturb the result.
	acc.Start(100_000, 1)
	acc.Step()
	acc.Stop()
	assert.Equal(t, uint64(1), acc.Result().Trigger)
}
