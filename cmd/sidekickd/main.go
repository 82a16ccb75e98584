// Command sidekickd runs one Sidekick rig device: it assembles the selected
// variant, binds the GPIO lines (real on a Raspberry Pi, simulated
// otherwise), and serves the text command protocol on a serial port or
// stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/sidekick-epics/sidekick/pkg/acquire"
	"github.com/sidekick-epics/sidekick/pkg/adc"
	"github.com/sidekick-epics/sidekick/pkg/clock"
	"github.com/sidekick-epics/sidekick/pkg/config"
	"github.com/sidekick-epics/sidekick/pkg/device"
	"github.com/sidekick-epics/sidekick/pkg/gpio"
)

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		portFlag    = flag.String("p", "", "Serial port override (e.g., /dev/ttyACM0)")
		variantFlag = flag.String("variant", "", "Device variant override (pulsegen, shutter, photodiode, led)")
		simFlag     = flag.Bool("sim", false, "Use simulated outputs instead of GPIO hardware")
		stdioFlag   = flag.Bool("stdio", false, "Serve the protocol on stdin/stdout instead of a serial port")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *variantFlag != "" {
		cfg.Device.Variant = *variantFlag
	}

	rw, err := openLink(cfg, *stdioFlag)
	if err != nil {
		log.Fatalf("Failed to open command link: %v", err)
	}

	clk := clock.NewWall()

	dev, closers, err := buildDevice(clk, rw, cfg, *simFlag)
	if err != nil {
		log.Fatalf("Failed to build device: %v", err)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("sidekickd: %s variant running", cfg.Device.Variant)
	if err := dev.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Run loop: %v", err)
	}
}

// openLink opens the command transport: stdio or the configured serial port.
func openLink(cfg *config.Config, stdio bool) (io.ReadWriter, error) {
	if stdio {
		return struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, nil
	}
	port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Serial.Port, err)
	}
	return port, nil
}

// buildDevice assembles the configured variant with real or simulated I/O.
func buildDevice(clk clock.Clock, rw io.ReadWriter, cfg *config.Config, sim bool) (*device.Device, []io.Closer, error) {
	var closers []io.Closer

	opts := device.Options{
		Identity:         cfg.Device.Identity,
		Channels:         cfg.Device.Channels,
		LeadInMicros:     cfg.Device.LeadInMicros,
		FixedWidthMicros: cfg.Device.FixedWidthMicros,
		RateHz:           cfg.Device.RateHz,
		TimerSlots:       cfg.Device.TimerSlots,
		Stream:           cfg.Measurement.Stream,
		Acquire:          acquireConfig(cfg),
	}

	outputs, err := buildOutputs(clk, cfg, sim)
	if err != nil {
		return nil, nil, err
	}
	for _, o := range outputs {
		closers = append(closers, o)
	}

	var dev *device.Device
	switch cfg.Device.Variant {
	case "pulsegen":
		dev = device.NewPulseGen(clk, rw, outputs, opts)
	case "shutter":
		var out gpio.Output
		if len(outputs) > 0 {
			out = outputs[0]
		}
		dev = device.NewShutter(clk, rw, out, opts)
	case "photodiode":
		src := adc.NewSim(clk)
		src.BiasCounts = float32(cfg.Sim.BiasCounts)
		src.AmplitudeCounts = float32(cfg.Sim.AmplitudeCounts)
		src.PeriodMicros = cfg.Sim.PeriodMicros
		src.NoiseCounts = float32(cfg.Sim.NoiseCounts)
		var gate gpio.Output
		if len(outputs) > 0 {
			gate = outputs[0]
		}
		dev = device.NewPhotodiode(clk, rw, src, gate, opts)
	case "led":
		dev = device.NewLEDFlasher(clk, rw, outputs, opts)
	default:
		return nil, nil, fmt.Errorf("unknown device variant %q", cfg.Device.Variant)
	}

	if cfg.Device.TriggerPin >= 0 && !sim {
		trig := gpio.NewRealTrigger(cfg.Device.Chip, cfg.Device.TriggerPin)
		if err := trig.Watch(func() { dev.Trigger() }); err != nil {
			return nil, nil, fmt.Errorf("watch trigger line: %w", err)
		}
		closers = append(closers, trig)
	}

	return dev, closers, nil
}

// buildOutputs creates one output line per configured pin, or fakes in sim
// mode.
func buildOutputs(clk clock.Clock, cfg *config.Config, sim bool) ([]gpio.Output, error) {
	n := cfg.Device.Channels
	outputs := make([]gpio.Output, 0, n)

	if sim || len(cfg.Device.OutputPins) == 0 {
		for i := 0; i < n; i++ {
			outputs = append(outputs, gpio.NewFakeOutput(clk, fmt.Sprintf("ch%d", i+1)))
		}
		return outputs, nil
	}

	for i, pin := range cfg.Device.OutputPins {
		if i >= n {
			break
		}
		out, err := gpio.NewRealOutput(cfg.Device.Chip, pin)
		if err != nil {
			for _, o := range outputs {
				o.Close()
			}
			return nil, fmt.Errorf("output pin %d: %w", pin, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// acquireConfig maps the measurement section onto the accumulator config.
func acquireConfig(cfg *config.Config) acquire.Config {
	mode := acquire.Continuous
	if cfg.Measurement.Mode == "subsampled" {
		mode = acquire.Subsampled
	}
	return acquire.Config{
		FullScaleVolts:       cfg.Measurement.FullScaleVolts,
		FullScaleCounts:      cfg.Measurement.FullScaleCounts,
		Mode:                 mode,
		SampleIntervalMicros: cfg.Measurement.SampleIntervalMicros,
	}
}
