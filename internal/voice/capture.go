package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chadiek/jarvis-voice/internal/audio"
	"github.com/chadiek/jarvis-voice/internal/vad"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// readRetryDelay paces retries after a transient device read error.
const readRetryDelay = 10 * time.Millisecond

// captureSession is one listen cycle. stopping is guarded by Session.mu; the
// remaining fields are written by the capture goroutine before done closes.
type captureSession struct {
	id       string
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool

	text   string
	err    error
	reason string
}

func newCaptureSession(cancel context.CancelFunc) *captureSession {
	return &captureSession{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *Session) runCapture(ctx context.Context, cs *captureSession, rec Recognizer) {
	defer s.wg.Done()
	s.captureCycle(ctx, cs, rec)

	// The capture may end on its own (end of stream, silence, device error).
	// Whoever marks it stopping first finishes the cycle.
	s.mu.Lock()
	owner := !cs.stopping
	cs.stopping = true
	s.mu.Unlock()
	cs.cancel()
	close(cs.done)
	if owner {
		_ = s.afterCapture(cs)
	}
}

// captureCycle owns the microphone and the recognition stream for one cycle.
// Both are released by deferred calls, so every return path unwinds them.
func (s *Session) captureCycle(ctx context.Context, cs *captureSession, rec Recognizer) {
	log := s.logger.With(zap.String("capture_id", cs.id))
	s.metrics.CaptureStarted()

	mic, err := s.mic.Open(ctx)
	if err != nil {
		cs.err = &Error{Kind: KindDevice, Op: "open microphone", Err: err}
		cs.reason = "device"
		return
	}
	defer func() {
		if err := mic.Close(); err != nil {
			log.Warn("microphone close failed", zap.Error(err))
		}
	}()

	stream, err := rec.NewStream()
	if err != nil {
		cs.err = &Error{Kind: KindDecode, Op: "create recognition stream", Err: err}
		cs.reason = "engine"
		return
	}
	defer stream.Release()

	var detector *vad.Detector
	if s.opts.AutoStopSilence > 0 {
		cfg := vad.DefaultConfig(s.opts.AutoStopSilence)
		cfg.Threshold = s.opts.VADThreshold
		detector = vad.New(cfg)
	}

	log.Info("capture started")
	for {
		if ctx.Err() != nil {
			cs.reason = "stopped"
			return
		}
		frame, err := mic.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				cs.reason = "stopped"
				return
			case errors.Is(err, io.EOF):
				cs.reason = "eof"
				return
			case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceLost):
				cs.err = &Error{Kind: KindDevice, Op: "read microphone", Err: err}
				cs.reason = "device"
				return
			}
			log.Debug("dropped frame", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if len(frame) == 0 {
			continue
		}
		s.ingest(log, cs, stream, frame)
		if detector != nil && detector.Push(frame) {
			log.Info("trailing silence, stopping")
			cs.reason = "silence"
			return
		}
	}
}

// ingest feeds one frame and runs a decode step when the engine is ready.
// Decode failures skip the frame's update and never end the capture.
func (s *Session) ingest(log *zap.Logger, cs *captureSession, stream RecognitionStream, frame []int16) {
	stream.AcceptWaveform(audio.CaptureSampleRate, audio.Normalize(frame))
	s.metrics.FrameIngested(len(frame))
	if !stream.IsReady() {
		return
	}
	err := decodeStep(stream)
	s.metrics.DecodeStep(err)
	if err != nil {
		log.Warn("decode step failed", zap.Error(&Error{Kind: KindDecode, Op: "decode", Err: err}))
		return
	}
	text := strings.TrimSpace(stream.Result())
	if text == "" {
		return
	}
	cs.text = text
	s.state.update(func(st State) State {
		st.Transcript = text
		return st
	})
}

func decodeStep(stream RecognitionStream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recognizer panic: %v", r)
		}
	}()
	return stream.Decode()
}

// speak runs on the worker goroutine. The whole text is generated once and
// the resulting buffer is played once.
func (s *Session) speak(ctx context.Context, syn Synthesizer, text string) {
	s.mu.Lock()
	s.setPhase(PhaseSpeaking, StatusSpeaking)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.replying = false
		s.setPhase(PhaseIdle, StatusReady)
		s.mu.Unlock()
	}()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	buf, err := generate(ctx, syn, text, s.opts.SpeakerID, s.opts.Speed)
	s.metrics.Synthesis(time.Since(start), err)
	if err != nil {
		s.logger.Error("synthesis failed", zap.Error(&Error{Kind: KindSynthesis, Op: "generate", Err: err}))
		return
	}
	if buf.Empty() {
		s.logger.Info("nothing to say", zap.String("text", text))
		return
	}

	start = time.Now()
	err = s.speaker.Play(ctx, buf)
	s.metrics.Playback(time.Since(start), err)
	if err != nil {
		s.logger.Error("playback failed", zap.Error(&Error{Kind: KindSynthesis, Op: "play", Err: err}))
		return
	}
	s.logger.Debug("reply played", zap.Duration("audio", buf.Duration()))
}

func generate(ctx context.Context, syn Synthesizer, text string, sid int, speed float32) (buf audio.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesizer panic: %v", r)
		}
	}()
	return syn.Generate(ctx, text, sid, speed)
}
