// Package acquire implements the photodiode integration window: accumulate
// raw samples between a start and a stop event, then convert the average to a
// volt-seconds result through the linear full-scale transfer function.
package acquire

import (
	"log"
	"sync"

	"github.com/sidekick-epics/sidekick/pkg/adc"
	"github.com/sidekick-epics/sidekick/pkg/timer"
)

// Mode selects how samples are taken while an acquisition is active.
type Mode int

const (
	// Continuous takes one sample per run-loop step; cadence is governed by
	// loop speed, which is an accepted source of measurement jitter.
	Continuous Mode = iota
	// Subsampled takes samples from an inner periodic timer entry at a fixed
	// interval.
	Subsampled
)

// Result is one completed integration. Value and trigger publish together;
// a reader can never observe a half-updated pair.
type Result struct {
	// VoltSeconds is the average voltage times the window duration.
	VoltSeconds float64
	// Trigger is the trigger count the result corresponds to.
	Trigger uint64
}

// Config holds the fixed acquisition parameters.
type Config struct {
	// FullScaleVolts maps a full-scale reading to physical volts.
	FullScaleVolts float64
	// FullScaleCounts is the converter's full-scale reading.
	FullScaleCounts float64
	Mode            Mode
	// SampleIntervalMicros is the inner sampler period in Subsampled mode.
	SampleIntervalMicros uint32
}

// Accumulator is the acquisition state machine. At most one acquisition is
// active at a time; the owner gates new triggers on Ready.
type Accumulator struct {
	src  adc.Source
	core *timer.Core
	cfg  Config

	mu             sync.Mutex
	sum            uint64
	count          uint64
	active         bool
	ready          bool
	debug          bool
	durationMicros uint32
	pendingTrig    uint64
	result         Result
	sampler        timer.Handle
	samplerSet     bool

	// OnResult, when set, is called with each completed result after it
	// becomes visible. The photodiode variant uses it for stream pushes.
	OnResult func(Result)
}

// New creates an Accumulator reading from src. core is only used in
// Subsampled mode for the inner sampler entry.
func New(src adc.Source, core *timer.Core, cfg Config) *Accumulator {
	if cfg.FullScaleCounts == 0 {
		cfg.FullScaleCounts = adc.FullScaleCounts
	}
	return &Accumulator{src: src, core: core, cfg: cfg, ready: true}
}

// Start begins an acquisition over a window of durationMicros attributed to
// the given trigger count. In Subsampled mode it installs the inner sampler.
func (a *Accumulator) Start(durationMicros uint32, trig uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sum = 0
	a.count = 0
	a.active = true
	a.ready = false
	a.durationMicros = durationMicros
	// The trigger stays pending until Stop so a mid-window read of result
	// never pairs the new count with the previous value.
	a.pendingTrig = trig

	if a.cfg.Mode == Subsampled && a.core != nil {
		h, err := a.core.ScheduleEvery(a.cfg.SampleIntervalMicros, func(now uint32) timer.Outcome {
			a.mu.Lock()
			if !a.active {
				a.mu.Unlock()
				return timer.Stop
			}
			a.mu.Unlock()
			a.sample()
			return timer.Rearm
		})
		if err != nil {
			log.Printf("acquire: installing sampler: %v", err)
		} else {
			a.sampler = h
			a.samplerSet = true
		}
	}
}

// Step takes one sample when a Continuous acquisition is active. Called once
// per run-loop iteration.
func (a *Accumulator) Step() {
	a.mu.Lock()
	if !a.active || a.cfg.Mode != Continuous {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.sample()
}

func (a *Accumulator) sample() {
	v := uint64(a.src.Read())
	a.mu.Lock()
	if a.active {
		a.sum += v
		a.count++
	}
	a.mu.Unlock()
}

// Stop ends the acquisition and publishes the result. A window that caught no
// samples yields exactly 0 rather than a division fault.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}
	a.active = false
	if a.samplerSet {
		a.core.Cancel(a.sampler)
		a.samplerSet = false
	}

	avg := 0.0
	if a.count > 0 {
		avg = float64(a.sum) / float64(a.count)
	}
	volts := avg * (a.cfg.FullScaleVolts / a.cfg.FullScaleCounts)
	a.result = Result{
		VoltSeconds: volts * (float64(a.durationMicros) * 1e-6),
		Trigger:     a.pendingTrig,
	}
	a.ready = true

	if a.debug {
		spacing := 0.0
		if a.count > 0 {
			spacing = float64(a.durationMicros) / float64(a.count)
		}
		log.Printf("acquire: sum=%d count=%d spacing=%.1fus result=%.6gVs trig=%d",
			a.sum, a.count, spacing, a.result.VoltSeconds, a.result.Trigger)
	}

	if a.OnResult != nil {
		res := a.result
		cb := a.OnResult
		a.mu.Unlock()
		cb(res)
		a.mu.Lock()
	}
}

// Active reports whether an acquisition window is open.
func (a *Accumulator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Ready reports whether a new acquisition may start.
func (a *Accumulator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Result returns the latest completed result. Reads are idempotent until the
// next Stop.
func (a *Accumulator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// SetDebug enables or disables the diagnostic record emitted at Stop.
func (a *Accumulator) SetDebug(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debug = on
}

// Debug reports the diagnostic flag.
func (a *Accumulator) Debug() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.debug
}
