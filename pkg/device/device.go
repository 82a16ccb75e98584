// Package device assembles the scheduling core, schedule table, trigger
// handler and command surface into the four rig variants, and runs the
// single-threaded cooperative loop that services all of them.
package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sidekick-epics/sidekick/pkg/acquire"
	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/command"
	"github.com/sidekick-epics/sidekick/pkg/gpio"
	"github.com/sidekick-epics/sidekick/pkg/schedule"
	"github.com/sidekick-epics/sidekick/pkg/timer"
	"github.com/sidekick-epics/sidekick/pkg/trigger"
)

// DefaultLoopSleep paces the run loop; short enough to keep event jitter in
// the low hundreds of microseconds, long enough not to spin a core.
const DefaultLoopSleep = 100 * time.Microsecond

// Options parameterizes a device variant. Zero fields take the variant's
// defaults.
type Options struct {
	Identity         string
	Channels         int
	LeadInMicros     uint32
	FixedWidthMicros uint32
	RateHz           float64
	TimerSlots       int
	LoopSleep        time.Duration
	Acquire          acquire.Config
	Stream           bool
}

// Device is one assembled rig variant.
type Device struct {
	clk   clock.Clock
	core  *timer.Core
	table *schedule.Table
	trig  *trigger.Handler
	disp  *command.Dispatcher
	outs  []gpio.Output

	r     io.Reader
	w     io.Writer
	wmu   sync.Mutex
	lines chan string

	acq       *acquire.Accumulator
	stream    bool
	loopSleep time.Duration

	onRise func(ch int, c schedule.Channel)
	onFall func(ch int, c schedule.Channel)
}

var _ trigger.Actions = (*Device)(nil)

// newDevice wires the shared pieces. Variant constructors register their
// command surface on top.
func newDevice(clk clock.Clock, rw io.ReadWriter, outs []gpio.Output, tableDefaults schedule.Channel, opts Options) *Device {
	d := &Device{
		clk:       clk,
		outs:      outs,
		r:         rw,
		w:         rw,
		lines:     make(chan string, 16),
		loopSleep: opts.LoopSleep,
	}
	if d.loopSleep == 0 {
		d.loopSleep = DefaultLoopSleep
	}
	d.core = timer.New(clk, opts.TimerSlots)
	d.table = schedule.NewTable(opts.Channels, tableDefaults)
	d.trig = trigger.New(clk, d.core, d.table, d, opts.LeadInMicros)
	d.disp = command.NewDispatcher(opts.Identity)
	return d
}

// Rise drives the channel's output to its configured duty level.
func (d *Device) Rise(ch int, c schedule.Channel) {
	if ch < len(d.outs) && d.outs[ch] != nil {
		if err := d.outs[ch].Drive(c.Brightness); err != nil {
			log.Printf("device: rise channel %d: %v", ch, err)
		}
	}
	if d.onRise != nil {
		d.onRise(ch, c)
	}
}

// Fall releases the channel's output.
func (d *Device) Fall(ch int, c schedule.Channel) {
	if ch < len(d.outs) && d.outs[ch] != nil {
		if err := d.outs[ch].Drive(0); err != nil {
			log.Printf("device: fall channel %d: %v", ch, err)
		}
	}
	if d.onFall != nil {
		d.onFall(ch, c)
	}
}

// Trigger handles one external trigger edge. Safe from any goroutine; wire it
// to gpio.TriggerInput.Watch.
func (d *Device) Trigger() bool {
	return d.trig.Trigger()
}

// Run executes the cooperative loop: advance the timer core, service one
// pending command line, take one acquisition sample, sleep briefly. Returns
// when ctx is canceled or the command stream ends.
func (d *Device) Run(ctx context.Context) error {
	done := make(chan struct{})
	go d.readLines(ctx, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		default:
		}

		d.core.Tick()

		select {
		case line := <-d.lines:
			d.handleLine(line)
		default:
		}

		if d.acq != nil {
			d.acq.Step()
		}

		time.Sleep(d.loopSleep)
	}
}

// readLines feeds newline-terminated commands from the serial link into the
// run loop.
func (d *Device) readLines(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(d.r)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case d.lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Printf("device: reading command stream: %v", err)
	}
}

// handleLine dispatches one command line. Lines that produce no response
// (sets, malformed input) write nothing back.
func (d *Device) handleLine(line string) {
	resp, ok := d.disp.Execute(line)
	if ok {
		d.writeLine(resp)
	}
}

// writeLine writes one CRLF-terminated line to the serial link. Shared by
// command responses and stream pushes.
func (d *Device) writeLine(s string) {
	d.wmu.Lock()
	defer d.wmu.Unlock()
	if _, err := fmt.Fprintf(d.w, "%s\r\n", s); err != nil {
		log.Printf("device: writing response: %v", err)
	}
}
