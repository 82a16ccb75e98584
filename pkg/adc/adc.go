// Package adc abstracts the raw sample source the photodiode integrator
// reads. The real source is platform-specific; tests and mock runs use the
// synthetic Sim source.
package adc

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/sidekick-epics/sidekick/pkg/clock"
)

// FullScaleCounts is the top of the 12-bit converter range.
const FullScaleCounts = 4095

// Source yields one raw converter reading per call.
type Source interface {
	Read() uint16
}

// Func adapts a plain function to a Source.
type Func func() uint16

// Read calls f.
func (f Func) Read() uint16 {
	return f()
}

// Constant returns a Source that always reads v. Handy in tests.
func Constant(v uint16) Source {
	return Func(func() uint16 { return v })
}

// Sim generates a synthetic photodiode signal: a bias level plus a slow sine
// plus deterministic pseudo-noise, clipped to the converter range.
type Sim struct {
	clk clock.Clock

	// BiasCounts is the dark level in raw counts.
	BiasCounts float32
	// AmplitudeCounts is the sine amplitude in raw counts.
	AmplitudeCounts float32
	// PeriodMicros is the sine period.
	PeriodMicros uint32
	// NoiseCounts is the peak pseudo-noise amplitude in raw counts.
	NoiseCounts float32

	mu sync.Mutex
	n  uint32
}

// NewSim creates a Sim source with a mid-scale signal.
func NewSim(clk clock.Clock) *Sim {
	return &Sim{
		clk:             clk,
		BiasCounts:      2048,
		AmplitudeCounts: 1024,
		PeriodMicros:    1_000_000,
		NoiseCounts:     4,
	}
}

// Read returns the next synthetic sample.
func (s *Sim) Read() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.BiasCounts
	if s.PeriodMicros > 0 {
		phase := float32(s.clk.Micros()%s.PeriodMicros) / float32(s.PeriodMicros)
		v += s.AmplitudeCounts * math32.Sin(2*math32.Pi*phase)
	}
	s.n++
	v += (math32.Sin(float32(s.n)*0.7) + math32.Cos(float32(s.n)*1.3)) * s.NoiseCounts * 0.5

	if v < 0 {
		v = 0
	} else if v > FullScaleCounts {
		v = FullScaleCounts
	}
	return uint16(v)
}
