// Package audio holds the PCM sample formats shared by capture, recognition,
// synthesis and playback.
package audio

import (
	"math"
	"time"
)

// CaptureSampleRate is the fixed microphone rate expected by the recognizer.
const CaptureSampleRate = 16000

// Buffer is a mono block of normalized samples paired with its sample rate.
// A synthesizer produces one per reply and the speaker consumes it once.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Empty reports whether there is nothing to play.
func (b Buffer) Empty() bool { return len(b.Samples) == 0 || b.SampleRate <= 0 }

// Duration is the rendered length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Empty() {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Normalize converts 16-bit PCM to floats in [-1, 1) by dividing by 32768.
func Normalize(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// ToPCM16 clamps samples to [-1, 1] and scales them by 32767.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// RMS returns the root mean square energy of a PCM frame.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// FramesFor returns how many samples cover d at the given rate.
func FramesFor(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}
