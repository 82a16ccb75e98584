// Package config loads the rig configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the full daemon configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Device      DeviceConfig      `yaml:"device"`
	Measurement MeasurementConfig `yaml:"measurement"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Sim         SimConfig         `yaml:"sim"`
}

// SerialConfig contains the command link configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// DeviceConfig selects and parameterizes the device variant.
type DeviceConfig struct {
	// Variant is one of pulsegen, shutter, photodiode, led.
	Variant  string `yaml:"variant"`
	Identity string `yaml:"identity"`
	Channels int    `yaml:"channels"`
	// LeadInMicros is the margin between a trigger and the earliest rise.
	LeadInMicros uint32 `yaml:"lead_in_micros"`
	// FixedWidthMicros is the pulse width on variants without per-channel
	// width (the pulse generator's 3 ms TTL pulse).
	FixedWidthMicros uint32 `yaml:"fixed_width_micros"`
	// RateHz is the initial internal repetition rate (0 = external only).
	RateHz float64 `yaml:"rate_hz"`
	// TimerSlots is the event timer capacity.
	TimerSlots int `yaml:"timer_slots"`
	// TriggerPin is the external trigger line offset (-1 = none).
	TriggerPin int `yaml:"trigger_pin"`
	// OutputPins are the per-channel output line offsets.
	OutputPins []int `yaml:"output_pins"`
	// Chip is the GPIO character device name.
	Chip string `yaml:"chip"`
}

// MeasurementConfig contains the photodiode acquisition parameters.
type MeasurementConfig struct {
	FullScaleVolts  float64 `yaml:"full_scale_volts"`
	FullScaleCounts float64 `yaml:"full_scale_counts"`
	// Mode is "continuous" or "subsampled".
	Mode                 string `yaml:"mode"`
	SampleIntervalMicros uint32 `yaml:"sample_interval_micros"`
	// Stream enables the unsolicited STREAM push per completed acquisition.
	Stream bool `yaml:"stream"`
}

// MQTTConfig contains the measurement bridge broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	// BufferSize is how many measurements to hold while disconnected.
	BufferSize int `yaml:"buffer_size"`
}

// SimConfig shapes the synthetic photodiode signal used without hardware.
type SimConfig struct {
	BiasCounts      float64 `yaml:"bias_counts"`
	AmplitudeCounts float64 `yaml:"amplitude_counts"`
	PeriodMicros    uint32  `yaml:"period_micros"`
	NoiseCounts     float64 `yaml:"noise_counts"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyACM0",
			Baud: 115200,
		},
		Device: DeviceConfig{
			Variant:          "pulsegen",
			Channels:         8,
			LeadInMicros:     1500,
			FixedWidthMicros: 3000,
			RateHz:           0,
			TimerSlots:       16,
			TriggerPin:       -1,
			Chip:             "gpiochip0",
		},
		Measurement: MeasurementConfig{
			FullScaleVolts:       3.3,
			FullScaleCounts:      4095,
			Mode:                 "continuous",
			SampleIntervalMicros: 200,
			Stream:               true,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			Topic:      "lab/sidekick/photodiode",
			ClientID:   "sidekick-bridge",
			BufferSize: 256,
		},
		Sim: SimConfig{
			BiasCounts:      2048,
			AmplitudeCounts: 1024,
			PeriodMicros:    1_000_000,
			NoiseCounts:     4,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, defaults fill the gaps.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills required fields that the file left empty.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Device.Variant == "" {
		c.Device.Variant = def.Device.Variant
	}
	if c.Device.Channels == 0 {
		c.Device.Channels = def.Device.Channels
	}
	if c.Device.LeadInMicros == 0 {
		c.Device.LeadInMicros = def.Device.LeadInMicros
	}
	if c.Device.FixedWidthMicros == 0 {
		c.Device.FixedWidthMicros = def.Device.FixedWidthMicros
	}
	if c.Device.TimerSlots == 0 {
		c.Device.TimerSlots = def.Device.TimerSlots
	}
	if c.Device.Chip == "" {
		c.Device.Chip = def.Device.Chip
	}

	if c.Measurement.FullScaleVolts == 0 {
		c.Measurement.FullScaleVolts = def.Measurement.FullScaleVolts
	}
	if c.Measurement.FullScaleCounts == 0 {
		c.Measurement.FullScaleCounts = def.Measurement.FullScaleCounts
	}
	if c.Measurement.Mode == "" {
		c.Measurement.Mode = def.Measurement.Mode
	}
	if c.Measurement.SampleIntervalMicros == 0 {
		c.Measurement.SampleIntervalMicros = def.Measurement.SampleIntervalMicros
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if c.Sim.PeriodMicros == 0 {
		c.Sim.PeriodMicros = def.Sim.PeriodMicros
	}
	if c.Sim.BiasCounts == 0 {
		c.Sim.BiasCounts = def.Sim.BiasCounts
	}
	if c.Sim.AmplitudeCounts == 0 {
		c.Sim.AmplitudeCounts = def.Sim.AmplitudeCounts
	}
}
