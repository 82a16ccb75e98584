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
	// ShutterDurationMicros is the default open duration.
	ShutterDurationMicros = 100_000
	// ShutterIdentity answers *IDN?.
	ShutterIdentity = "SIDEKICK,SHUTTER,1CH,1.0"
)

// NewShutter builds the shutter driver: a single channel that opens on the
// trigger and closes after the configured duration.
//
// Commands: SHUtter:DURation (get/set, microseconds).
func NewShutter(clk clock.Clock, rw io.ReadWriter, out gpio.Output, opts Options) *Device {
	opts.Channels = 1
	if opts.Identity == "" {
		opts.Identity = ShutterIdentity
	}

	width := opts.FixedWidthMicros
	if width == 0 {
		width = ShutterDurationMicros
	}

	d := newDevice(clk, rw, []gpio.Output{out}, schedule.Channel{
		WidthMicros: width,
		Brightness:  255,
	}, opts)

	d.disp.Register("SHUtter", "DURation", false, command.Accessor{
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

	return d
}
