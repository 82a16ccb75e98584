// Package mqtt publishes photodiode measurements to an MQTT broker, with an
// abstraction for testing and a bounded replay buffer for broker outages.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sidekick-epics/sidekick/pkg/host"
)

// DefaultTopic is the measurement topic when none is configured.
const DefaultTopic = "lab/sidekick/photodiode"

// Publisher publishes measurements to a broker.
type Publisher interface {
	// Publish sends one measurement. Errors must not crash the bridge.
	Publish(m host.Measurement) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the JSON message body.
type Payload struct {
	Timestamp   string  `json:"timestamp"`
	VoltSeconds float64 `json:"volt_seconds"`
	Trigger     uint64  `json:"trigger"`
}

// FormatPayload creates the JSON payload for a measurement.
func FormatPayload(m host.Measurement) ([]byte, error) {
	return json.Marshal(Payload{
		Timestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
		VoltSeconds: m.VoltSeconds,
		Trigger:     m.Trigger,
	})
}
