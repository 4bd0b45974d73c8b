// Package device connects the voice session to the sound card through
// PortAudio. Without the portaudio build tag every device reports
// ErrUnavailable, which keeps the rest of the module buildable on machines
// without the C library.
package device

import (
	"errors"
	"time"

	"github.com/chadiek/jarvis-voice/internal/audio"
)

// ErrUnavailable is returned by devices in builds without audio support.
var ErrUnavailable = errors.New("device: audio support not compiled in (build with -tags portaudio)")

// Config selects buffer sizes. Zero values pick defaults.
type Config struct {
	// InputFrames is the capture buffer in samples. Zero derives it from the
	// input device's low latency, with a floor of minInputFrames.
	InputFrames int
	// OutputFrames is the playback buffer in samples.
	OutputFrames int
}

const (
	minInputFrames      = 320 // 20ms at 16kHz
	defaultOutputFrames = 1024
)

// inputFrames picks a capture buffer that holds at least twice the device's
// reported latency so reads do not overflow.
func inputFrames(configured int, latency time.Duration) int {
	if configured > 0 {
		return configured
	}
	n := 2 * audio.FramesFor(latency, audio.CaptureSampleRate)
	if n < minInputFrames {
		n = minInputFrames
	}
	return n
}

func outputFrames(configured int) int {
	if configured > 0 {
		return configured
	}
	return defaultOutputFrames
}

// copyFrame copies buf after a blocking read. An overflow still leaves the
// buffer filled with the latest samples, so only other errors drop the frame.
func copyFrame(buf []int16, err, overflow error) (frame []int16, overflowed bool, _ error) {
	if err != nil && !errors.Is(err, overflow) {
		return nil, false, err
	}
	out := make([]int16, len(buf))
	copy(out, buf)
	return out, err != nil, nil
}

// fill copies the next chunk of src into out, zero padding the tail, and
// returns how many samples of src were consumed.
func fill(out, src []int16) int {
	n := copy(out, src)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return n
}
