package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func pcmSine(sr int, hz float64, durMs int, amp float64) []int16 {
	n := sr * durMs / 1000
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(amp * math.Sin(2*math.Pi*hz*float64(i)/float64(sr)))
	}
	return out
}

func TestNormalize_DividesBy32768(t *testing.T) {
	got := Normalize([]int16{0, 16384, -32768, 32767})
	assert.Equal(t, []float32{0, 0.5, -1, float32(32767) / 32768}, got)
}

func TestToPCM16_ClampsAndScales(t *testing.T) {
	got := ToPCM16([]float32{0, 0.5, 1, 1.7, -1, -3})
	assert.Equal(t, []int16{0, 16383, 32767, 32767, -32767, -32767}, got)
}

func TestBuffer_EmptyAndDuration(t *testing.T) {
	assert.True(t, Buffer{}.Empty())
	assert.True(t, Buffer{Samples: []float32{1}}.Empty(), "zero sample rate is unplayable")

	b := Buffer{Samples: make([]float32, 22050), SampleRate: 22050}
	assert.False(t, b.Empty())
	assert.Equal(t, time.Second, b.Duration())
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 1000, RMS([]int16{1000, -1000, 1000, -1000}), 0.001)
	// a sine of amplitude A has RMS A/sqrt(2)
	assert.InDelta(t, 8000/math.Sqrt2, RMS(pcmSine(16000, 200, 100, 8000)), 50)
}

func TestFramesFor(t *testing.T) {
	assert.Equal(t, 1600, FramesFor(100*time.Millisecond, CaptureSampleRate))
	assert.Equal(t, 0, FramesFor(0, CaptureSampleRate))
}
