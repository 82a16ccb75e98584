// Command sidekick-bridge connects to a photodiode rig device and forwards
// its streamed measurements to an MQTT broker. When streaming is disabled on
// the device it falls back to polling MEASurement:DATa?.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/sidekick-epics/sidekick/pkg/config"
	"github.com/sidekick-epics/sidekick/pkg/host"
	"github.com/sidekick-epics/sidekick/pkg/mqtt"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port override")
		brokerFlag = flag.String("broker", "", "MQTT broker override (e.g., tcp://localhost:1883)")
		pollFlag   = flag.Duration("poll", 0, "Poll MEASurement:DATa? at this interval instead of relying on stream pushes")
		dryFlag    = flag.Bool("dry-run", false, "Log measurements instead of publishing")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *brokerFlag != "" {
		cfg.MQTT.Broker = *brokerFlag
	}

	client := host.New(cfg.Serial.Port, cfg.Serial.Baud)
	if err := client.Connect(); err != nil {
		log.Fatalf("Failed to connect to device: %v", err)
	}
	defer client.Close()

	idn, err := client.Identify()
	if err != nil {
		log.Fatalf("Failed to identify device: %v", err)
	}
	log.Printf("bridge: connected to %s on %s", idn, cfg.Serial.Port)

	var pub mqtt.Publisher
	if *dryFlag {
		pub = mqtt.NewFakePublisher()
	} else {
		pub, err = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, cfg.MQTT.BufferSize)
		if err != nil {
			log.Fatalf("Failed to connect to broker: %v", err)
		}
	}
	defer pub.Close()

	monitor := host.NewMonitor(10 * time.Minute)
	monitor.OnUpdate(func(window []host.Measurement) {
		m := window[len(window)-1]
		if *dryFlag {
			log.Printf("bridge: %g Vs (trigger %d)", m.VoltSeconds, m.Trigger)
		}
		if err := pub.Publish(m); err != nil {
			log.Printf("bridge: publishing measurement: %v", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *pollFlag > 0 {
		go poll(ctx, client, *pollFlag)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Process(client.Measurements())
	}()

	<-ctx.Done()
	client.Close()
	<-done
}

// poll queries the latest measurement pair on a fixed cadence and feeds it
// through the same path as stream pushes. Repeats of an unchanged trigger
// count are skipped.
func poll(ctx context.Context, client *host.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastTrig uint64
	seen := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := client.Query("MEASurement:DATa?")
			if err != nil {
				log.Printf("bridge: polling measurement: %v", err)
				continue
			}
			m, err := host.ParseData(resp)
			if err != nil {
				log.Printf("bridge: parsing %q: %v", resp, err)
				continue
			}
			if seen && m.Trigger == lastTrig {
				continue
			}
			lastTrig = m.Trigger
			seen = true
			client.Inject(m)
		}
	}
}
