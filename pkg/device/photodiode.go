package device

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sidekick-epics/sidekick/pkg/acquire"
	"github.com/sidekick-epics/sidekick/pkg/adc"
	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/command"
	"github.com/sidekick-epics/sidekick/pkg/gpio"
	"github.com/sidekick-epics/sidekick/pkg/schedule"
)

const (
	// PhotodiodeDurationMicros is the default integration window.
	PhotodiodeDurationMicros = 400_000
	// PhotodiodeIdentity answers *IDN?.
	PhotodiodeIdentity = "SIDEKICK,PHOTODIODE,1CH,1.0"
)

// NewPhotodiode builds the photodiode integrator: the trigger opens an
// acquisition window after the configured delay, raw samples accumulate
// until the window closes, and the average converts to volt-seconds through
// the full-scale transfer function. gate, when non-nil, is asserted for the
// duration of the window.
//
// Commands: MEASurement:DURation (get/set, microseconds),
// MEASurement:DATa? (value and trigger count as one atomic pair),
// MEASurement:VALue?, SYStem:TRIGCount (get/set), SYStem:DEBUG (get/set).
// With Options.Stream, every completed acquisition additionally pushes an
// unsolicited "STREAM DAT: <value>, TRIG: <count>" line.
func NewPhotodiode(clk clock.Clock, rw io.ReadWriter, src adc.Source, gate gpio.Output, opts Options) *Device {
	opts.Channels = 1
	if opts.Identity == "" {
		opts.Identity = PhotodiodeIdentity
	}

	width := opts.FixedWidthMicros
	if width == 0 {
		width = PhotodiodeDurationMicros
	}

	d := newDevice(clk, rw, []gpio.Output{gate}, schedule.Channel{
		WidthMicros: width,
		Brightness:  255,
	}, opts)

	d.stream = opts.Stream
	d.acq = acquire.New(src, d.core, opts.Acquire)
	// Hold off new triggers until the previous result is published. The edge
	// counter still increments for dropped triggers.
	d.trig.Gate = d.acq.Ready

	d.onRise = func(_ int, c schedule.Channel) {
		d.acq.Start(c.WidthMicros, d.trig.Count())
	}
	d.onFall = func(int, schedule.Channel) {
		d.acq.Stop()
	}
	d.acq.OnResult = func(res acquire.Result) {
		if d.stream {
			d.writeLine(fmt.Sprintf("STREAM DAT: %g, TRIG: %d", res.VoltSeconds, res.Trigger))
		}
	}

	d.disp.Register("MEASurement", "DURation", false, command.Accessor{
		Get: func(int) (string, bool) {
			v, ok := d.table.Width(0)
			if !ok {
				return "", false
			}
			return strconv.FormatUint(uint64(v), 10), true
		},
		Set: func(_ int, value string) {
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return
			}
			d.table.SetWidth(0, uint32(v))
		},
	})

	d.disp.Register("MEASurement", "DATa", false, command.Accessor{
		Get: func(int) (string, bool) {
			res := d.acq.Result()
			return fmt.Sprintf("DAT: %g, TRIG: %d", res.VoltSeconds, res.Trigger), true
		},
	})

	d.disp.Register("MEASurement", "VALue", false, command.Accessor{
		Get: func(int) (string, bool) {
			return fmt.Sprintf("%g", d.acq.Result().VoltSeconds), true
		},
	})

	d.disp.Register("SYStem", "TRIGCount", false, command.Accessor{
		Get: func(int) (string, bool) {
			return strconv.FormatUint(d.trig.Count(), 10), true
		},
		Set: func(_ int, value string) {
			v, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return
			}
			d.trig.SetCount(v)
		},
	})

	d.disp.Register("SYStem", "DEBUG", false, command.Accessor{
		Get: func(int) (string, bool) {
			if d.acq.Debug() {
				return "1", true
			}
			return "0", true
		},
		Set: func(_ int, value string) {
			d.acq.SetDebug(value != "0")
		},
	})

	return d
}
