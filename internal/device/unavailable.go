//go:build !portaudio

package device

import (
	"context"

	"github.com/chadiek/jarvis-voice/internal/audio"
	"github.com/chadiek/jarvis-voice/internal/voice"
	"go.uber.org/zap"
)

// System stands in for PortAudio in builds without the portaudio tag.
type System struct {
	cfg    Config
	logger *zap.Logger
}

func Open(cfg Config, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "device"))
	logger.Warn("built without portaudio, audio devices are disabled")
	return &System{cfg: cfg, logger: logger}, nil
}

func (s *System) Close() error { return nil }

func (s *System) Microphone() *Microphone { return &Microphone{} }

func (s *System) Speaker() *Speaker { return &Speaker{} }

type Microphone struct{}

var _ voice.Microphone = (*Microphone)(nil)

func (*Microphone) Open(context.Context) (voice.CaptureStream, error) { return nil, ErrUnavailable }

type Speaker struct{}

var _ voice.Speaker = (*Speaker)(nil)

func (*Speaker) Play(context.Context, audio.Buffer) error { return ErrUnavailable }
