package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidekick-epics/sidekick/pkg/clock"
)

func TestConstantAndFunc(t *testing.T) {
	assert.Equal(t, uint16(2048), Constant(2048).Read())

	calls := 0
	src := Func(func() uint16 {
		calls++
		return uint16(calls)
	})
	assert.Equal(t, uint16(1), src.Read())
	assert.Equal(t, uint16(2), src.Read())
}

func TestSimStaysInRange(t *testing.T) {
	clk := clock.NewSim()
	src := NewSim(clk)

	for i := 0; i < 10_000; i++ {
		v := src.Read()
		assert.LessOrEqual(t, v, uint16(FullScaleCounts))
		clk.Advance(137)
	}
}

func TestSimFollowsBias(t *testing.T) {
	clk := clock.NewSim()
	src := NewSim(clk)
	src.AmplitudeCounts = 0
	src.NoiseCounts = 0
	src.BiasCounts = 1000

	assert.Equal(t, uint16(1000), src.Read())

	// Clipping at the rails.
	src.BiasCounts = 100_000
	assert.Equal(t, uint16(FullScaleCounts), src.Read())
	src.BiasCounts = -5
	assert.Equal(t, uint16(0), src.Read())
}

func TestSimSineSweepsAroundBias(t *testing.T) {
	clk := clock.NewSim()
	src := NewSim(clk)
	src.NoiseCounts = 0
	src.BiasCounts = 2048
	src.AmplitudeCounts = 1000
	src.PeriodMicros = 1_000_000

	// Quarter period: sine peak.
	clk.Set(250_000)
	peak := src.Read()
	assert.InDelta(t, 3048, float64(peak), 2)

	// Three quarters: sine trough.
	clk.Set(750_000)
	trough := src.Read()
	assert.InDelta(t, 1048, float64(trough), 2)
}
