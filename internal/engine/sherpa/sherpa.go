package sherpa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chadiek/jarvis-voice/internal/assets"
	"github.com/chadiek/jarvis-voice/internal/audio"
	"github.com/chadiek/jarvis-voice/internal/voice"
	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
	"go.uber.org/zap"
)

// Loader builds both engines from Config. It satisfies voice.Loader.
type Loader struct {
	cfg    Config
	logger *zap.Logger
}

var _ voice.Loader = (*Loader)(nil)

func NewLoader(cfg Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg.withDefaults(), logger: logger.With(zap.String("component", "sherpa"))}
}

// Manifest is the set of files Load reads.
func (l *Loader) Manifest() assets.Manifest { return l.cfg.Manifest() }

func (l *Loader) Load(ctx context.Context) (voice.Engines, error) {
	start := time.Now()
	rec, err := l.newRecognizer()
	if err != nil {
		return voice.Engines{}, err
	}
	l.logger.Info("recognizer loaded", zap.Duration("took", time.Since(start)))
	if err := ctx.Err(); err != nil {
		rec.Close()
		return voice.Engines{}, err
	}

	start = time.Now()
	syn, err := l.newSynthesizer()
	if err != nil {
		rec.Close()
		return voice.Engines{}, err
	}
	l.logger.Info("synthesizer loaded", zap.Duration("took", time.Since(start)))
	return voice.Engines{Recognizer: rec, Synthesizer: syn}, nil
}

func (l *Loader) newRecognizer() (*Recognizer, error) {
	c := l.cfg
	cfg := sherpa.OfflineRecognizerConfig{}
	cfg.FeatConfig.SampleRate = audio.CaptureSampleRate
	cfg.FeatConfig.FeatureDim = 80
	cfg.ModelConfig.Whisper.Encoder = c.WhisperEncoder
	cfg.ModelConfig.Whisper.Decoder = c.WhisperDecoder
	cfg.ModelConfig.Whisper.Language = c.Language
	cfg.ModelConfig.Whisper.Task = c.Task
	cfg.ModelConfig.Tokens = c.WhisperTokens
	cfg.ModelConfig.NumThreads = c.NumThreads
	cfg.ModelConfig.Provider = c.Provider
	cfg.ModelConfig.ModelType = "whisper"
	cfg.DecodingMethod = "greedy_search"

	impl := sherpa.NewOfflineRecognizer(&cfg)
	if impl == nil {
		return nil, errors.New("sherpa: whisper recognizer could not be created, check the model files")
	}
	return &Recognizer{
		impl:     impl,
		interval: audio.FramesFor(c.DecodeInterval, audio.CaptureSampleRate),
		max:      audio.FramesFor(c.MaxWindow, audio.CaptureSampleRate),
	}, nil
}

func (l *Loader) newSynthesizer() (*Synthesizer, error) {
	c := l.cfg
	cfg := sherpa.OfflineTtsConfig{}
	cfg.Model.Vits.Model = c.VitsModel
	cfg.Model.Vits.Tokens = c.VitsTokens
	cfg.Model.Vits.Lexicon = c.VitsLexicon
	cfg.Model.Vits.DataDir = c.VitsDataDir
	cfg.Model.Vits.NoiseScale = 0.667
	cfg.Model.Vits.NoiseScaleW = 0.8
	cfg.Model.Vits.LengthScale = 1.0
	cfg.Model.NumThreads = c.NumThreads
	cfg.Model.Provider = c.Provider
	cfg.MaxNumSentences = 1

	impl := sherpa.NewOfflineTts(&cfg)
	if impl == nil {
		return nil, errors.New("sherpa: vits synthesizer could not be created, check the model files")
	}
	return &Synthesizer{impl: impl}, nil
}

// Recognizer wraps an offline Whisper recognizer. Calls into the native
// recognizer are serialized.
type Recognizer struct {
	mu       sync.Mutex
	impl     *sherpa.OfflineRecognizer
	interval int
	max      int
}

var _ voice.Recognizer = (*Recognizer)(nil)

func (r *Recognizer) NewStream() (voice.RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.impl == nil {
		return nil, errors.New("sherpa: recognizer closed")
	}
	return &stream{rec: r, utt: newUtterance(r.interval, r.max)}, nil
}

func (r *Recognizer) decode(window []float32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.impl == nil {
		return "", errors.New("sherpa: recognizer closed")
	}
	s := sherpa.NewOfflineStream(r.impl)
	if s == nil {
		return "", errors.New("sherpa: offline stream could not be created")
	}
	defer sherpa.DeleteOfflineStream(s)
	s.AcceptWaveform(audio.CaptureSampleRate, window)
	r.impl.Decode(s)
	res := s.GetResult()
	if res == nil {
		return "", nil
	}
	return res.Text, nil
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.impl != nil {
		sherpa.DeleteOfflineRecognizer(r.impl)
		r.impl = nil
	}
	return nil
}

type stream struct {
	rec *Recognizer
	utt *utterance
}

func (s *stream) AcceptWaveform(sampleRate int, samples []float32) {
	if sampleRate != audio.CaptureSampleRate {
		return
	}
	s.utt.accept(samples)
}

func (s *stream) IsReady() bool  { return s.utt.ready() }
func (s *stream) Decode() error  { return s.utt.decode(s.rec.decode) }
func (s *stream) Result() string { return s.utt.text() }
func (s *stream) Release()       { s.utt = newUtterance(s.utt.interval, s.utt.max) }

// Synthesizer wraps a VITS text-to-speech model.
type Synthesizer struct {
	mu   sync.Mutex
	impl *sherpa.OfflineTts
}

var _ voice.Synthesizer = (*Synthesizer)(nil)

// Generate cannot be interrupted once the native call starts; ctx is checked
// before it.
func (s *Synthesizer) Generate(ctx context.Context, text string, speakerID int, speed float32) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.impl == nil {
		return audio.Buffer{}, errors.New("sherpa: synthesizer closed")
	}
	return generated(s.impl.Generate(text, speakerID, speed)), nil
}

// generated converts engine output. A nil or silent result means there was
// nothing to say and yields an empty buffer.
func generated(out *sherpa.GeneratedAudio) audio.Buffer {
	if out == nil || len(out.Samples) == 0 {
		return audio.Buffer{}
	}
	return audio.Buffer{Samples: out.Samples, SampleRate: out.SampleRate}
}

func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.impl != nil {
		sherpa.DeleteOfflineTts(s.impl)
		s.impl = nil
	}
	return nil
}
