package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chadiek/jarvis-voice/internal/assets"
	"go.uber.org/zap"
)

type engineState int

const (
	engineUninitialized engineState = iota
	engineLoading
	engineReady
	engineFailed
)

// Options tunes a Session. Zero values are usable.
type Options struct {
	// Assets are verified before the Loader runs.
	Assets assets.Manifest
	// SpeakerID and Speed are passed to every Generate call. Speed 0 means 1.0.
	SpeakerID int
	Speed     float32
	// AutoStopSilence ends listening after this much trailing silence once
	// speech was heard. Zero disables it.
	AutoStopSilence time.Duration
	// VADThreshold is the RMS energy that counts as voice for auto-stop.
	VADThreshold float64

	Logger  *zap.Logger
	Metrics Metrics
}

// Session orchestrates microphone -> STT -> TTS -> speaker for one user.
// All exported methods are safe for concurrent use.
type Session struct {
	loader  Loader
	mic     Microphone
	speaker Speaker
	opts    Options
	logger  *zap.Logger
	metrics Metrics
	state   *broadcaster

	mu       sync.Mutex
	engine   engineState
	engines  Engines
	initErr  error
	capture  *captureSession
	replying bool
	closed   bool

	// jobs feeds the worker goroutine that owns model loading, generation
	// and playback, so no two engine calls overlap.
	jobs   chan func(context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession constructs a Session and starts its worker. Engines are not
// loaded until Initialize.
func NewSession(loader Loader, mic Microphone, speaker Speaker, opts Options) *Session {
	if opts.Speed <= 0 {
		opts.Speed = 1.0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		loader:  loader,
		mic:     mic,
		speaker: speaker,
		opts:    opts,
		logger:  logger.With(zap.String("component", "voice")),
		metrics: m,
		state:   newBroadcaster(State{Phase: PhaseIdle, Status: StatusInitializing}),
		jobs:    make(chan func(context.Context), 4),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.work()
	return s
}

// State returns the latest snapshot.
func (s *Session) State() State { return s.state.Load() }

// Subscribe returns a channel that receives the current snapshot followed by
// every later one. A subscriber that falls more than buffer snapshots behind
// loses the oldest ones but always ends on the latest. Call cancel to detach.
func (s *Session) Subscribe(buffer int) (<-chan State, func()) {
	return s.state.subscribe(buffer)
}

func (s *Session) work() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			job(s.ctx)
		}
	}
}

func (s *Session) submit(job func(context.Context)) error {
	select {
	case s.jobs <- job:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// setPhase publishes a lifecycle transition. Callers hold s.mu so that
// transitions are totally ordered with the guards that produce them.
func (s *Session) setPhase(phase Phase, status string) {
	s.state.update(func(st State) State { return st.enter(phase, status) })
	s.metrics.Transition(phase.String())
}

func (s *Session) setError(err error) {
	var status string
	var ve *Error
	switch {
	case errors.Is(err, ErrPermissionDenied):
		status = StatusPermissionDenied
	case errors.As(err, &ve) && ve.Kind == KindDevice:
		status = "Microphone unavailable: " + ve.Err.Error()
	default:
		status = "Error: " + err.Error()
	}
	s.state.update(func(st State) State {
		st = st.enter(PhaseError, status)
		st.Err = err.Error()
		return st
	})
	s.metrics.Transition(PhaseError.String())
}

// Initialize verifies the model files and loads both engines on the worker.
// On failure the session moves to PhaseError and stays usable: listening and
// speaking report ErrNotInitialized until a later Initialize succeeds.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch s.engine {
	case engineReady:
		s.mu.Unlock()
		return nil
	case engineLoading:
		s.mu.Unlock()
		return ErrInitializing
	}
	s.engine = engineLoading
	s.setPhase(PhaseIdle, StatusInitializing)
	s.mu.Unlock()

	result := make(chan error, 1)
	if err := s.submit(func(ctx context.Context) { result <- s.load(ctx) }); err != nil {
		s.mu.Lock()
		s.engine = engineUninitialized
		s.mu.Unlock()
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

func (s *Session) load(ctx context.Context) error {
	start := time.Now()
	engines, err := s.loadEngines(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.engine = engineFailed
		s.initErr = &Error{Kind: KindInitialization, Op: "initialize", Err: err}
		s.logger.Error("engine initialization failed", zap.Error(err))
		s.setError(err)
		return s.initErr
	}
	s.engine = engineReady
	s.engines = engines
	s.initErr = nil
	s.logger.Info("engines ready", zap.Duration("took", time.Since(start)))
	s.setPhase(PhaseIdle, StatusReady)
	return nil
}

func (s *Session) loadEngines(ctx context.Context) (Engines, error) {
	if err := s.opts.Assets.Verify(); err != nil {
		return Engines{}, err
	}
	engines, err := s.loader.Load(ctx)
	if err != nil {
		return Engines{}, err
	}
	if engines.Recognizer == nil || engines.Synthesizer == nil {
		closeEngines(engines)
		return Engines{}, errors.New("loader returned an incomplete engine set")
	}
	return engines, nil
}

// notReady is called with s.mu held.
func (s *Session) notReady() error {
	switch s.engine {
	case engineLoading:
		return ErrInitializing
	case engineFailed:
		return fmt.Errorf("%w: %w", ErrNotInitialized, s.initErr)
	}
	return ErrNotInitialized
}

// StartListening opens the microphone and streams it into a new recognition
// stream. It is a no-op returning a sentinel error when engines are not ready,
// a capture is already running or a reply is being spoken.
func (s *Session) StartListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.engine != engineReady:
		err := s.notReady()
		s.logger.Warn("start listening ignored", zap.Error(err))
		return err
	case s.capture != nil:
		return ErrAlreadyListening
	case s.replying:
		return ErrSpeechInProgress
	}

	ctx, cancel := context.WithCancel(s.ctx)
	cs := newCaptureSession(cancel)
	s.capture = cs
	s.setPhase(PhaseListening, StatusListening)

	rec := s.engines.Recognizer
	s.wg.Add(1)
	go s.runCapture(ctx, cs, rec)
	return nil
}

// StopListening cancels the running capture and waits until the microphone
// and recognition stream are released. If the capture heard anything, the
// text is spoken back; otherwise the session returns to Ready.
// Only text recognized during this capture is spoken, never a Transcript left
// over from an earlier one.
func (s *Session) StopListening() error {
	s.mu.Lock()
	cs := s.capture
	if cs == nil || cs.stopping {
		s.mu.Unlock()
		return ErrNotListening
	}
	cs.stopping = true
	s.mu.Unlock()

	cs.cancel()
	<-cs.done
	return s.afterCapture(cs)
}

// ToggleListening stops an active capture or starts a new one.
func (s *Session) ToggleListening() error {
	s.mu.Lock()
	listening := s.capture != nil && !s.capture.stopping
	s.mu.Unlock()
	if listening {
		return s.StopListening()
	}
	return s.StartListening()
}

// afterCapture runs once the capture goroutine has fully unwound.
func (s *Session) afterCapture(cs *captureSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == cs {
		s.capture = nil
	}
	s.metrics.CaptureEnded(cs.reason)
	log := s.logger.With(zap.String("capture_id", cs.id), zap.String("reason", cs.reason))

	if cs.err != nil {
		log.Error("capture failed", zap.Error(cs.err))
		s.setError(cs.err)
		return cs.err
	}
	s.setPhase(PhaseProcessing, StatusProcessing)
	if s.closed || cs.text == "" {
		log.Info("capture finished without speech")
		s.setPhase(PhaseIdle, StatusReady)
		return nil
	}
	log.Info("heard", zap.String("text", cs.text))
	s.replying = true
	if err := s.enqueueSpeech(cs.text); err != nil {
		s.replying = false
		s.setPhase(PhaseIdle, StatusReady)
		return err
	}
	return nil
}

// Speak synthesizes text and plays it. Generation and playback run on the
// worker; Speak returns once the reply is queued. A second call while a reply
// is pending or playing is rejected with ErrSpeechInProgress.
func (s *Session) Speak(text string) error {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.engine != engineReady:
		err := s.notReady()
		s.logger.Warn("speak ignored", zap.Error(err))
		return err
	case text == "":
		return ErrEmptyText
	case s.capture != nil:
		return ErrAlreadyListening
	case s.replying:
		return ErrSpeechInProgress
	}
	s.replying = true
	if err := s.enqueueSpeech(text); err != nil {
		s.replying = false
		return err
	}
	return nil
}

// enqueueSpeech is called with s.mu held and s.replying set. The jobs channel
// has room because at most one speech job and one load job exist at a time.
func (s *Session) enqueueSpeech(text string) error {
	syn := s.engines.Synthesizer
	job := func(ctx context.Context) { s.speak(ctx, syn, text) }
	select {
	case s.jobs <- job:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// Close stops any capture, drains the worker and frees the engines.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	// The capture goroutine finishes its own cycle.
	if cs := s.capture; cs != nil {
		cs.cancel()
	}
	s.mu.Unlock()

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	engines := s.engines
	s.engines = Engines{}
	s.engine = engineUninitialized
	s.mu.Unlock()
	closeEngines(engines)
	s.state.close()
	return nil
}

func closeEngines(e Engines) {
	if c, ok := e.Recognizer.(io.Closer); ok {
		_ = c.Close()
	}
	if c, ok := e.Synthesizer.(io.Closer); ok {
		_ = c.Close()
	}
}
