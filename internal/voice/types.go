package voice

import (
	"context"
	"time"

	"github.com/chadiek/jarvis-voice/internal/audio"
)

// Recognizer is the minimal interface for streaming STT.
// Only one stream is alive at a time; the session never creates a second
// stream before releasing the first.
type Recognizer interface {
	NewStream() (RecognitionStream, error)
}

// RecognitionStream is owned by the capture loop that created it and must not
// be used from any other goroutine.
type RecognitionStream interface {
	// AcceptWaveform buffers normalized samples in [-1, 1].
	AcceptWaveform(sampleRate int, samples []float32)
	// IsReady reports whether enough audio is buffered for a decode step.
	IsReady() bool
	// Decode runs one decode step. It may block on inference.
	Decode() error
	// Result returns the current best hypothesis. It does not mutate the stream.
	Result() string
	Release()
}

// Synthesizer turns text into audio. An empty buffer means there is nothing
// to say and is not an error.
type Synthesizer interface {
	Generate(ctx context.Context, text string, speakerID int, speed float32) (audio.Buffer, error)
}

// Microphone acquires the capture device at 16kHz mono 16-bit PCM.
type Microphone interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream yields PCM frames in device order. Read returns io.EOF once
// the device stops delivering and must return promptly when ctx is done.
// Close releases the device and is called exactly once per opened stream.
type CaptureStream interface {
	Read(ctx context.Context) ([]int16, error)
	Close() error
}

// Speaker renders one buffer and returns after it has been heard.
type Speaker interface {
	Play(ctx context.Context, buf audio.Buffer) error
}

// Engines is what a Loader produces. Implementations that also satisfy
// io.Closer are closed when the session shuts down.
type Engines struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
}

// Loader constructs both engines from model files that are already on disk.
type Loader interface {
	Load(ctx context.Context) (Engines, error)
}

// Metrics receives session events; see internal/metrics.
type Metrics interface {
	CaptureStarted()
	CaptureEnded(reason string)
	FrameIngested(samples int)
	DecodeStep(err error)
	Transition(phase string)
	Synthesis(d time.Duration, err error)
	Playback(d time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) CaptureStarted()                {}
func (nopMetrics) CaptureEnded(string)            {}
func (nopMetrics) FrameIngested(int)              {}
func (nopMetrics) DecodeStep(error)               {}
func (nopMetrics) Transition(string)              {}
func (nopMetrics) Synthesis(time.Duration, error) {}
func (nopMetrics) Playback(time.Duration, error)  {}
