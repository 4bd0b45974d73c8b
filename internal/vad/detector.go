package vad

import (
	"time"

	"github.com/chadiek/jarvis-voice/internal/audio"
)

// Config holds the thresholds for end-of-utterance detection.
type Config struct {
	Threshold    float64       // RMS energy that counts as voice, 300 works for close mics
	SmoothFrames int           // majority window over per-frame votes
	Silence      time.Duration // trailing silence that ends an utterance
	SampleRate   int
}

// DefaultConfig returns thresholds tuned for a 16kHz close-talk microphone.
func DefaultConfig(silence time.Duration) Config {
	return Config{
		Threshold:    300,
		SmoothFrames: 4,
		Silence:      silence,
		SampleRate:   audio.CaptureSampleRate,
	}
}

// Detector is an energy VAD that tracks trailing silence after speech.
// It is owned by a single capture loop and is not safe for concurrent use.
type Detector struct {
	cfg       Config
	win       []bool
	heard     bool
	silentFor time.Duration
}

// New constructs a Detector, filling zero fields from DefaultConfig.
func New(cfg Config) *Detector {
	def := DefaultConfig(cfg.Silence)
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.SmoothFrames <= 0 {
		cfg.SmoothFrames = def.SmoothFrames
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	return &Detector{cfg: cfg}
}

// IsSpeech votes on one frame and returns the smoothed decision.
func (d *Detector) IsSpeech(frame []int16) bool {
	if len(frame) == 0 {
		return false
	}
	d.win = append(d.win, audio.RMS(frame) >= d.cfg.Threshold)
	if len(d.win) > d.cfg.SmoothFrames {
		d.win = d.win[len(d.win)-d.cfg.SmoothFrames:]
	}
	yes := 0
	for _, v := range d.win {
		if v {
			yes++
		}
	}
	return yes*2 >= len(d.win)
}

// Push feeds a frame and reports whether the utterance has ended:
// speech was heard and at least Silence of quiet audio followed it.
func (d *Detector) Push(frame []int16) bool {
	if d.IsSpeech(frame) {
		d.heard = true
		d.silentFor = 0
		return false
	}
	if !d.heard || d.cfg.Silence <= 0 {
		return false
	}
	d.silentFor += time.Duration(len(frame)) * time.Second / time.Duration(d.cfg.SampleRate)
	return d.silentFor >= d.cfg.Silence
}
