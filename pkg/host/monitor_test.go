package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorCollectsWindow(t *testing.T) {
	m := NewMonitor(10 * time.Minute)

	_, ok := m.Latest()
	assert.False(t, ok)

	input := make(chan Measurement)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Process(input)
	}()

	base := time.Now()
	for i := 0; i < 3; i++ {
		input <- Measurement{Timestamp: base.Add(time.Duration(i) * time.Second), VoltSeconds: float64(i), Trigger: uint64(i)}
	}
	close(input)
	<-done

	got := m.Measurements()
	require.Len(t, got, 3)
	assert.Equal(t, 0.0, got[0].VoltSeconds)
	assert.Equal(t, 2.0, got[2].VoltSeconds)

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Trigger)
}

func TestMonitorTrimsByTimestamp(t *testing.T) {
	m := NewMonitor(time.Minute)

	base := time.Now()
	m.add(Measurement{Timestamp: base, Trigger: 1})
	m.add(Measurement{Timestamp: base.Add(30 * time.Second), Trigger: 2})
	m.add(Measurement{Timestamp: base.Add(2 * time.Minute), Trigger: 3})

	got := m.Measurements()
	require.Len(t, got, 1, "older measurements fall out of the window")
	assert.Equal(t, uint64(3), got[0].Trigger)
}

func TestMonitorNotifiesCallbacks(t *testing.T) {
	m := NewMonitor(time.Minute)

	var windows [][]Measurement
	m.OnUpdate(func(w []Measurement) {
		windows = append(windows, w)
	})

	m.add(Measurement{Timestamp: time.Now(), Trigger: 1})
	m.add(Measurement{Timestamp: time.Now(), Trigger: 2})

	require.Len(t, windows, 2)
	assert.Len(t, windows[0], 1)
	assert.Len(t, windows[1], 2)
	assert.Equal(t, uint64(2), windows[1][1].Trigger)
}
