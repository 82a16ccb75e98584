package device

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/command"
	"github.com/sidekick-epics/sidekick/pkg/gpio"
	"github.com/sidekick-epics/sidekick/pkg/schedule"
)

const (
	// PulseGenChannels is the TTL channel count.
	PulseGenChannels = 8
	// PulseGenWidthMicros is the fixed TTL pulse width.
	PulseGenWidthMicros = 3000
	// PulseGenIdentity answers *IDN?.
	PulseGenIdentity = "SIDEKICK,PULSEGEN,8CH,1.0"
)

// NewPulseGen builds the TTL pulse generator: eight channels with
// command-settable delays, a fixed 3 ms pulse width, and an optional internal
// repetition-rate driver alongside the external trigger.
//
// Commands: DELay:CHannelN (get/set, microseconds, channels 1..8) and
// REPrate (get/set, Hz).
func NewPulseGen(clk clock.Clock, rw io.ReadWriter, outs []gpio.Output, opts Options) *Device {
	if opts.Channels == 0 {
		opts.Channels = PulseGenChannels
	}
	if opts.FixedWidthMicros == 0 {
		opts.FixedWidthMicros = PulseGenWidthMicros
	}
	if opts.Identity == "" {
		opts.Identity = PulseGenIdentity
	}

	d := newDevice(clk, rw, outs, schedule.Channel{
		WidthMicros: opts.FixedWidthMicros,
		Brightness:  255,
	}, opts)

	d.disp.Register("DELay", "CHannel", true, command.Accessor{
		Get: func(ch int) (string, bool) {
			v, ok := d.table.Delay(ch - 1)
			if !ok {
				return "", false
			}
			return strconv.FormatUint(uint64(v), 10), true
		},
		Set: func(ch int, value string) {
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return
			}
			d.table.SetDelay(ch-1, uint32(v))
		},
	})

	d.disp.Register("", "REPrate", false, command.Accessor{
		Get: func(int) (string, bool) {
			return fmt.Sprintf("%g", d.trig.Rate()), true
		},
		Set: func(_ int, value string) {
			hz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return
			}
			d.trig.SetRate(hz)
		},
	})

	if opts.RateHz > 0 {
		d.trig.SetRate(opts.RateHz)
	}
	return d
}
