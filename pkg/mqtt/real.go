package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sidekick-epics/sidekick/pkg/host"
)

var _ Publisher = (*RealPublisher)(nil)

// RealPublisher publishes to an actual MQTT broker. Measurements arriving
// while the connection is down go into a bounded buffer and replay on
// reconnect, oldest first.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher connects to the broker and returns a publisher on topic.
func NewRealPublisher(broker, clientID, topic string, bufferSize int) (*RealPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	p := &RealPublisher{
		topic: topic,
		buf:   newRingBuffer(bufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.replay() })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends one measurement, buffering it when the broker is down.
func (p *RealPublisher) Publish(m host.Measurement) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m host.Measurement) error {
	payload, err := FormatPayload(m)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once): measurements are sparse and each one matters.
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// replay drains the outage buffer after a reconnect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	queued := p.buf.len()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if queued == 0 {
		return
	}
	log.Printf("mqtt: connection restored, replaying %d buffered measurements", queued)
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replaying buffered measurement: %v", err)
		}
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
