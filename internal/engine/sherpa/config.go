// Package sherpa loads Whisper speech recognition and VITS speech synthesis
// through sherpa-onnx.
package sherpa

import (
	"time"

	"github.com/chadiek/jarvis-voice/internal/assets"
)

// Config names the model files and tuning for both engines.
type Config struct {
	WhisperEncoder string
	WhisperDecoder string
	WhisperTokens  string
	// Language is a Whisper language code; empty lets the model detect it.
	Language string
	Task     string

	VitsModel   string
	VitsTokens  string
	VitsLexicon string
	VitsDataDir string

	NumThreads int
	Provider   string

	// DecodeInterval is how much new audio makes a stream ready to decode.
	DecodeInterval time.Duration
	// MaxWindow caps the audio handed to one Whisper pass.
	MaxWindow time.Duration
}

const (
	defaultDecodeInterval = 500 * time.Millisecond
	defaultMaxWindow      = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Task == "" {
		c.Task = "transcribe"
	}
	if c.NumThreads <= 0 {
		c.NumThreads = 2
	}
	if c.Provider == "" {
		c.Provider = "cpu"
	}
	if c.DecodeInterval <= 0 {
		c.DecodeInterval = defaultDecodeInterval
	}
	if c.MaxWindow <= 0 || c.MaxWindow > defaultMaxWindow {
		c.MaxWindow = defaultMaxWindow
	}
	return c
}

// Manifest lists the files that must exist before Load is attempted.
// Optional VITS files are only listed when configured.
func (c Config) Manifest() assets.Manifest {
	m := assets.Manifest{
		{Name: "whisper encoder", Path: c.WhisperEncoder},
		{Name: "whisper decoder", Path: c.WhisperDecoder},
		{Name: "whisper tokens", Path: c.WhisperTokens},
		{Name: "vits model", Path: c.VitsModel},
		{Name: "vits tokens", Path: c.VitsTokens},
	}
	if c.VitsLexicon != "" {
		m = append(m, assets.Resource{Name: "vits lexicon", Path: c.VitsLexicon})
	}
	if c.VitsDataDir != "" {
		m = append(m, assets.Resource{Name: "vits data dir", Path: c.VitsDataDir, IsDir: true})
	}
	return m
}
