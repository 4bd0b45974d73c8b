//go:build portaudio

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chadiek/jarvis-voice/internal/audio"
	"github.com/chadiek/jarvis-voice/internal/voice"
	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// System owns the PortAudio library for the life of the process.
type System struct {
	cfg    Config
	logger *zap.Logger
}

// Open initializes PortAudio. Close must be called once all streams are done.
func Open(cfg Config, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &System{cfg: cfg, logger: logger.With(zap.String("component", "device"))}, nil
}

func (s *System) Close() error { return portaudio.Terminate() }

func (s *System) Microphone() *Microphone { return &Microphone{sys: s} }

func (s *System) Speaker() *Speaker { return &Speaker{sys: s} }

// classify maps PortAudio failures onto the session's device sentinels.
// Anything else is left as is and treated as a dropped frame by the caller.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, portaudio.DeviceUnavailable):
		return fmt.Errorf("%w: %v", voice.ErrPermissionDenied, err)
	case errors.Is(err, portaudio.InvalidDevice), errors.Is(err, portaudio.NotInitialized):
		return fmt.Errorf("%w: %v", voice.ErrDeviceLost, err)
	}
	return err
}

// Microphone opens a mono 16kHz input stream per capture.
type Microphone struct{ sys *System }

var _ voice.Microphone = (*Microphone)(nil)

func (m *Microphone) Open(ctx context.Context) (voice.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("default input device: %w", classify(err))
	}
	latency := dev.DefaultLowInputLatency
	frames := inputFrames(m.sys.cfg.InputFrames, latency)
	buf := make([]int16, frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.CaptureSampleRate, frames, buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", classify(err))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream: %w", classify(err))
	}
	m.sys.logger.Debug("input stream opened", zap.Int("frames", frames), zap.Duration("latency", latency))
	return &captureStream{stream: stream, buf: buf, logger: m.sys.logger}, nil
}

type captureStream struct {
	stream *portaudio.Stream
	buf    []int16
	once   sync.Once
	logger *zap.Logger
}

// Read blocks for one buffer of audio. Cancellation is observed between
// buffers.
func (c *captureStream) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, overflowed, err := copyFrame(c.buf, c.stream.Read(), portaudio.InputOverflowed)
	if err != nil {
		return nil, classify(err)
	}
	if overflowed {
		c.logger.Debug("input overflowed")
	}
	return frame, nil
}

func (c *captureStream) Close() error {
	var err error
	c.once.Do(func() {
		if stopErr := c.stream.Stop(); stopErr != nil {
			c.logger.Warn("input stream stop failed", zap.Error(stopErr))
		}
		err = c.stream.Close()
	})
	return err
}

// Speaker plays each reply on its own output stream at the reply's rate.
type Speaker struct{ sys *System }

var _ voice.Speaker = (*Speaker)(nil)

func (s *Speaker) Play(ctx context.Context, buf audio.Buffer) error {
	if buf.Empty() {
		return nil
	}
	frames := outputFrames(s.sys.cfg.OutputFrames)
	out := make([]int16, frames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(buf.SampleRate), frames, out)
	if err != nil {
		return fmt.Errorf("open output stream: %w", classify(err))
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", classify(err))
	}
	defer stream.Stop()

	pcm := audio.ToPCM16(buf.Samples)
	for off := 0; off < len(pcm); {
		if err := ctx.Err(); err != nil {
			return err
		}
		off += fill(out, pcm[off:])
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("write output stream: %w", classify(err))
		}
	}
	return nil
}
