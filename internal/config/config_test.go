package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JARVIS_CONFIG", "")
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("JARVIS_HTTP_ADDRESS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddress)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Models.NumThreads)
	assert.Equal(t, float32(1.0), cfg.Voice.Speed)
	assert.Equal(t, 500*time.Millisecond, cfg.Voice.DecodeInterval)
	assert.Zero(t, cfg.Voice.AutoStopSilence)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_address: ":9000"
log:
  level: debug
  format: json
models:
  dir: /opt/models
  language: hi
voice:
  speaker_id: 3
  speed: 1.25
  auto_stop_silence: 1500ms
`), 0o600))
	t.Setenv("JARVIS_CONFIG", path)
	t.Setenv("JARVIS_HTTP_ADDRESS", "")
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("JARVIS_SPEAKER_ID", "7")
	t.Setenv("JARVIS_DECODE_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddress)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "hi", cfg.Models.Language)
	assert.Equal(t, 7, cfg.Voice.SpeakerID, "env wins over file")
	assert.Equal(t, float32(1.25), cfg.Voice.Speed)
	assert.Equal(t, 1500*time.Millisecond, cfg.Voice.AutoStopSilence)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.DecodeInterval)
	// Untouched by the file.
	assert.Equal(t, "tiny-encoder.int8.onnx", cfg.Models.WhisperEncoder)
	assert.Equal(t, "/opt/models/tiny-encoder.int8.onnx", cfg.ModelPath(cfg.Models.WhisperEncoder))
}

func TestLoad_LegacyHTTPAddress(t *testing.T) {
	t.Setenv("JARVIS_CONFIG", "")
	t.Setenv("JARVIS_HTTP_ADDRESS", "")
	t.Setenv("HTTP_ADDRESS", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddress)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("JARVIS_CONFIG", "")
	t.Setenv("JARVIS_NUM_THREADS", "many")
	t.Setenv("JARVIS_AUTO_STOP_SILENCE", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JARVIS_NUM_THREADS")
	assert.Contains(t, err.Error(), "JARVIS_AUTO_STOP_SILENCE")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("JARVIS_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Voice.Speed = 0
	cfg.Models.NumThreads = 0
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice.speed")
	assert.Contains(t, err.Error(), "num_threads")
	assert.Contains(t, err.Error(), "log.format")
}

func TestModelPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("models", "tokens.txt"), cfg.ModelPath("tokens.txt"))
	assert.Equal(t, "/abs/tokens.txt", cfg.ModelPath("/abs/tokens.txt"))
	assert.Empty(t, cfg.ModelPath(""))
}
