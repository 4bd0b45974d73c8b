package voice

import (
	"errors"
	"fmt"
)

// Kind classifies session errors.
type Kind int

const (
	// KindInitialization covers missing or corrupt models and engine construction.
	KindInitialization Kind = iota + 1
	// KindDevice covers capture and playback devices, including permission.
	KindDevice
	// KindDecode is a transient fault in one decode step.
	KindDecode
	// KindSynthesis covers generation and playback of a reply.
	KindSynthesis
)

func (k Kind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindDevice:
		return "device"
	case KindDecode:
		return "decode"
	case KindSynthesis:
		return "synthesis"
	}
	return "unknown"
}

// Error carries the kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("voice: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Kind == kind
}

var (
	ErrNotInitialized   = errors.New("voice: engines not initialized")
	ErrInitializing     = errors.New("voice: engines are loading")
	ErrAlreadyListening = errors.New("voice: already listening")
	ErrNotListening     = errors.New("voice: not listening")
	ErrSpeechInProgress = errors.New("voice: reply already in progress")
	ErrEmptyText        = errors.New("voice: nothing to say")
	ErrClosed           = errors.New("voice: session closed")

	// ErrPermissionDenied is wrapped by device adapters when the OS refuses
	// access to the microphone.
	ErrPermissionDenied = errors.New("voice: microphone permission denied")
	// ErrDeviceLost is wrapped by device adapters when a device stops working
	// for good; any other read error is treated as a dropped frame.
	ErrDeviceLost = errors.New("voice: audio device lost")
)
