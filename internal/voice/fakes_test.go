package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chadiek/jarvis-voice/internal/audio"
	"github.com/stretchr/testify/require"
)

type readItem struct {
	frame []int16
	err   error
}

// fakeMic serves frames from a shared channel; a nil channel blocks reads
// until the capture is cancelled.
type fakeMic struct {
	openErr error
	frames  chan readItem

	opens        atomic.Int32
	closes       atomic.Int32
	doubleCloses atomic.Int32
	active       atomic.Int32
	maxActive    atomic.Int32
}

func newFakeMic() *fakeMic { return &fakeMic{frames: make(chan readItem, 256)} }

func (m *fakeMic) Open(ctx context.Context) (CaptureStream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens.Add(1)
	n := m.active.Add(1)
	for {
		max := m.maxActive.Load()
		if n <= max || m.maxActive.CompareAndSwap(max, n) {
			break
		}
	}
	return &fakeCapture{mic: m}, nil
}

func (m *fakeMic) push(frame []int16) { m.frames <- readItem{frame: frame} }

type fakeCapture struct {
	mic    *fakeMic
	closed atomic.Bool
}

func (c *fakeCapture) Read(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case it, ok := <-c.mic.frames:
		if !ok {
			return nil, io.EOF
		}
		return it.frame, it.err
	}
}

func (c *fakeCapture) Close() error {
	if c.closed.Swap(true) {
		c.mic.doubleCloses.Add(1)
		return errors.New("capture closed twice")
	}
	c.mic.closes.Add(1)
	c.mic.active.Add(-1)
	return nil
}

// fakeRecognizer is ready every readyEvery frames and answers each decode
// step with result(step, totalSamples).
type fakeRecognizer struct {
	readyEvery int
	result     func(step, total int) string
	decodeErr  func(step int) error

	streams     atomic.Int32
	releases    atomic.Int32
	doubleFrees atomic.Int32
	steps       atomic.Int32
	closed      atomic.Bool
	mu          sync.Mutex
	chunks      [][]float32
	streamErr   error
}

func (r *fakeRecognizer) NewStream() (RecognitionStream, error) {
	if r.streamErr != nil {
		return nil, r.streamErr
	}
	r.streams.Add(1)
	return &fakeStream{r: r}, nil
}

func (r *fakeRecognizer) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *fakeRecognizer) ingested() [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float32, len(r.chunks))
	copy(out, r.chunks)
	return out
}

type fakeStream struct {
	r        *fakeRecognizer
	pending  int
	total    int
	step     int
	result   string
	released atomic.Bool
}

func (s *fakeStream) AcceptWaveform(sampleRate int, samples []float32) {
	s.r.mu.Lock()
	s.r.chunks = append(s.r.chunks, append([]float32(nil), samples...))
	s.r.mu.Unlock()
	s.pending++
	s.total += len(samples)
}

func (s *fakeStream) IsReady() bool {
	every := s.r.readyEvery
	if every <= 0 {
		every = 1
	}
	return s.pending >= every
}

func (s *fakeStream) Decode() error {
	s.pending = 0
	step := s.step
	s.step++
	defer s.r.steps.Add(1)
	if s.r.decodeErr != nil {
		if err := s.r.decodeErr(step); err != nil {
			return err
		}
	}
	if s.r.result != nil {
		s.result = s.r.result(step, s.total)
	}
	return nil
}

func (s *fakeStream) Result() string { return s.result }

func (s *fakeStream) Release() {
	if s.released.Swap(true) {
		s.r.doubleFrees.Add(1)
		return
	}
	s.r.releases.Add(1)
}

type fakeSynth struct {
	gate  chan struct{}
	err   error
	empty bool

	mu     sync.Mutex
	texts  []string
	closed atomic.Bool
}

func (f *fakeSynth) Generate(ctx context.Context, text string, speakerID int, speed float32) (audio.Buffer, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return audio.Buffer{}, ctx.Err()
		}
	}
	if f.err != nil {
		return audio.Buffer{}, f.err
	}
	if f.empty {
		return audio.Buffer{}, nil
	}
	return audio.Buffer{Samples: make([]float32, 220), SampleRate: 22050}, nil
}

func (f *fakeSynth) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeSynth) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeSpeaker struct {
	mic      *fakeMic
	err      error
	plays    atomic.Int32
	overlaps atomic.Int32
}

func (s *fakeSpeaker) Play(ctx context.Context, buf audio.Buffer) error {
	s.plays.Add(1)
	if s.mic != nil && s.mic.active.Load() > 0 {
		s.overlaps.Add(1)
	}
	return s.err
}

type fakeLoader struct {
	engines Engines
	err     error
	loads   atomic.Int32
}

func (l *fakeLoader) Load(ctx context.Context) (Engines, error) {
	l.loads.Add(1)
	if l.err != nil {
		return Engines{}, l.err
	}
	return l.engines, nil
}

type harness struct {
	s       *Session
	mic     *fakeMic
	rec     *fakeRecognizer
	syn     *fakeSynth
	speaker *fakeSpeaker
	loader  *fakeLoader
}

func newHarness(opts Options) *harness {
	mic := newFakeMic()
	rec := &fakeRecognizer{}
	syn := &fakeSynth{}
	h := &harness{
		mic:     mic,
		rec:     rec,
		syn:     syn,
		speaker: &fakeSpeaker{mic: mic},
		loader:  &fakeLoader{engines: Engines{Recognizer: rec, Synthesizer: syn}},
	}
	h.s = NewSession(h.loader, h.mic, h.speaker, opts)
	return h
}

func (h *harness) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.s.Close(ctx)
}

// readyHarness returns an initialized harness that is closed with the test.
func readyHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := newHarness(opts)
	t.Cleanup(h.close)
	require.NoError(t, h.s.Initialize(context.Background()))
	return h
}

func waitState(t require.TestingT, s *Session, cond func(State) bool) {
	require.Eventually(t, func() bool { return cond(s.State()) }, 2*time.Second, 2*time.Millisecond)
}

func isReady(st State) bool { return st.Phase == PhaseIdle && st.Status == StatusReady }

// record drains a subscription into a slice until the session closes.
type recorder struct {
	mu     sync.Mutex
	states []State
	done   chan struct{}
}

func record(s *Session) *recorder {
	ch, _ := s.Subscribe(4096)
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for st := range ch {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) phases() []Phase {
	var out []Phase
	for _, st := range r.snapshot() {
		if len(out) == 0 || out[len(out)-1] != st.Phase {
			out = append(out, st.Phase)
		}
	}
	return out
}

func constFrame(n int, v int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		f[i] = v
	}
	return f
}

// busy reports whether a capture or a reply is still in flight.
func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil || s.replying
}
