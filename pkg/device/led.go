package device

import (
	"io"
	"strconv"

	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/command"
	"github.com/sidekick-epics/sidekick/pkg/gpio"
	"github.com/sidekick-epics/sidekick/pkg/schedule"
)

const (
	// LEDChannels is the flasher's LED count.
	LEDChannels = 6
	// LEDDurationMicros is the default per-LED on time.
	LEDDurationMicros = 100_000
	// LEDIdentity answers *IDN?.
	LEDIdentity = "SIDEKICK,LEDFLASH,6CH,1.0"
)

// NewLEDFlasher builds the LED flasher: six channels with per-channel on
// duration and duty level. The rise event drives the configured brightness,
// the fall event drives zero. No re-trigger is accepted until the full cycle
// across all LEDs completes.
//
// Commands: DURation:LEDN and BRIGhtness:LEDN (get/set, LEDs 1..6).
func NewLEDFlasher(clk clock.Clock, rw io.ReadWriter, outs []gpio.Output, opts Options) *Device {
	if opts.Channels == 0 {
		opts.Channels = LEDChannels
	}
	if opts.Identity == "" {
		opts.Identity = LEDIdentity
	}

	d := newDevice(clk, rw, outs, schedule.Channel{
		WidthMicros: LEDDurationMicros,
		Brightness:  255,
	}, opts)

	d.disp.Register("DURation", "LED", true, command.Accessor{
		Get: func(ch int) (string, bool) {
			v, ok := d.table.Width(ch - 1)
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
			d.table.SetWidth(ch-1, uint32(v))
		},
	})

	d.disp.Register("BRIGhtness", "LED", true, command.Accessor{
		Get: func(ch int) (string, bool) {
			v, ok := d.table.Brightness(ch - 1)
			if !ok {
				return "", false
			}
			return strconv.FormatUint(uint64(v), 10), true
		},
		Set: func(ch int, value string) {
			v, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return
			}
			if v > 255 {
				v = 255
			}
			d.table.SetBrightness(ch-1, uint8(v))
		},
	})

	return d
}
