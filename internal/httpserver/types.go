package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/chadiek/jarvis-voice/internal/voice"
)

// Controller is the part of voice.Session the control server drives.
type Controller interface {
	Initialize(ctx context.Context) error
	State() voice.State
	Subscribe(buffer int) (<-chan voice.State, func())
	StartListening() error
	StopListening() error
	ToggleListening() error
	Speak(text string) error
}

// Metrics records requests and serves the scrape endpoint.
type Metrics interface {
	RecordHTTPRequest(method, path string, code int, d time.Duration)
	Handler() http.Handler
}
