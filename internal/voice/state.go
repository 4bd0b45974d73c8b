package voice

import (
	"sync"
	"sync/atomic"
)

// Phase is the coarse session phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseProcessing
	PhaseSpeaking
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Status labels shown to the user.
const (
	StatusInitializing     = "Initializing..."
	StatusReady            = "Ready"
	StatusListening        = "Listening..."
	StatusProcessing       = "Processing..."
	StatusSpeaking         = "Speaking..."
	StatusPermissionDenied = "Permission Denied"
)

// State is an immutable snapshot of the session. A new value is published on
// every transition and every decode step; published values are never mutated.
type State struct {
	Phase       Phase  `json:"phase"`
	Status      string `json:"status"`
	Transcript  string `json:"transcript"`
	IsListening bool   `json:"isListening"`
	IsSpeaking  bool   `json:"isSpeaking"`
	Err         string `json:"error,omitempty"`
}

// enter returns a copy of s in the given phase. The listening and speaking
// flags are derived from the phase so they can never both be set.
func (s State) enter(phase Phase, status string) State {
	s.Phase = phase
	s.Status = status
	s.IsListening = phase == PhaseListening
	s.IsSpeaking = phase == PhaseSpeaking
	if phase != PhaseError {
		s.Err = ""
	}
	return s
}

// broadcaster holds the latest State and fans it out to subscribers.
// Writers are serialized by mu; readers of Load never block.
type broadcaster struct {
	cur atomic.Pointer[State]

	mu     sync.Mutex
	subs   map[uint64]chan State
	nextID uint64
	closed bool
}

func newBroadcaster(initial State) *broadcaster {
	b := &broadcaster{subs: make(map[uint64]chan State)}
	b.cur.Store(&initial)
	return b
}

func (b *broadcaster) Load() State { return *b.cur.Load() }

// update derives the next snapshot from the current one and publishes it.
func (b *broadcaster) update(fn func(State) State) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := fn(*b.cur.Load())
	b.cur.Store(&next)
	for _, ch := range b.subs {
		offerLatest(ch, next)
	}
	return next
}

// offerLatest never blocks: when a subscriber is behind, its oldest pending
// snapshot is dropped so the newest always gets through.
func offerLatest(ch chan State, st State) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// subscribe returns a channel primed with the current snapshot.
func (b *broadcaster) subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch <- *b.cur.Load()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	ch <- *b.cur.Load()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
