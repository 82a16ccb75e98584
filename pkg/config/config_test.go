package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "pulsegen", cfg.Device.Variant)
	assert.Equal(t, 8, cfg.Device.Channels)
	assert.Equal(t, uint32(1500), cfg.Device.LeadInMicros)
	assert.Equal(t, uint32(3000), cfg.Device.FixedWidthMicros)
	assert.Equal(t, 16, cfg.Device.TimerSlots)
	assert.Equal(t, -1, cfg.Device.TriggerPin)
	assert.Equal(t, 3.3, cfg.Measurement.FullScaleVolts)
	assert.Equal(t, "continuous", cfg.Measurement.Mode)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 256, cfg.MQTT.BufferSize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFillsGapsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB3
device:
  variant: photodiode
measurement:
  mode: subsampled
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud, "missing baud falls back")
	assert.Equal(t, "photodiode", cfg.Device.Variant)
	assert.Equal(t, uint32(1500), cfg.Device.LeadInMicros)
	assert.Equal(t, "subsampled", cfg.Measurement.Mode)
	assert.Equal(t, uint32(200), cfg.Measurement.SampleIntervalMicros)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Serial.Port = "/dev/ttyACM7"
	cfg.Device.Variant = "led"
	cfg.Device.Channels = 6
	cfg.Device.OutputPins = []int{17, 27, 22, 5, 6, 13}
	cfg.Measurement.Stream = false
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
