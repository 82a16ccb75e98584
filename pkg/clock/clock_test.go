package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBefore(t *testing.T) {
	tests := []struct {
		name string
		a    uint32
		b    uint32
		want bool
	}{
		{
			name: "plainly earlier",
			a:    100,
			b:    200,
			want: true,
		},
		{
			name: "plainly later",
			a:    200,
			b:    100,
			want: false,
		},
		{
			name: "equal",
			a:    500,
			b:    500,
			want: false,
		},
		{
			name: "earlier across wraparound",
			a:    0xFFFFFF00,
			b:    0x00000100,
			want: true,
		},
		{
			name: "later across wraparound",
			a:    0x00000100,
			b:    0xFFFFFF00,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Before(tt.a, tt.b))
		})
	}
}

func TestElapsedAcrossWrap(t *testing.T) {
	assert.Equal(t, uint32(0x200), Elapsed(0xFFFFFF00, 0x00000100))
	assert.Equal(t, uint32(100), Elapsed(0, 100))
}

func TestSimClock(t *testing.T) {
	clk := NewSim()
	assert.Equal(t, uint32(0), clk.Micros())

	clk.Advance(1500)
	assert.Equal(t, uint32(1500), clk.Micros())
	assert.Equal(t, uint32(1), clk.Millis())

	clk.Set(0xFFFFFFFF)
	clk.Advance(1)
	assert.Equal(t, uint32(0), clk.Micros())
}

func TestWallClockMonotonic(t *testing.T) {
	clk := NewWall()
	a := clk.Micros()
	b := clk.Micros()
	assert.True(t, a == b || Before(a, b))
}
