package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from defaults, then an
// optional YAML file named by JARVIS_CONFIG, then environment variables.
type Config struct {
	HTTPAddress string       `yaml:"http_address"`
	AuthToken   string       `yaml:"auth_token"`
	Log         LogConfig    `yaml:"log"`
	Models      ModelsConfig `yaml:"models"`
	Voice       VoiceConfig  `yaml:"voice"`
	Audio       AudioConfig  `yaml:"audio"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ModelsConfig names the model files. Relative paths resolve against Dir.
type ModelsConfig struct {
	Dir            string `yaml:"dir"`
	WhisperEncoder string `yaml:"whisper_encoder"`
	WhisperDecoder string `yaml:"whisper_decoder"`
	WhisperTokens  string `yaml:"whisper_tokens"`
	Language       string `yaml:"language"`
	Task           string `yaml:"task"`
	VitsModel      string `yaml:"vits_model"`
	VitsTokens     string `yaml:"vits_tokens"`
	VitsLexicon    string `yaml:"vits_lexicon"`
	VitsDataDir    string `yaml:"vits_data_dir"`
	NumThreads     int    `yaml:"num_threads"`
	Provider       string `yaml:"provider"`
}

type VoiceConfig struct {
	SpeakerID       int           `yaml:"speaker_id"`
	Speed           float32       `yaml:"speed"`
	DecodeInterval  time.Duration `yaml:"decode_interval"`
	AutoStopSilence time.Duration `yaml:"auto_stop_silence"`
	VADThreshold    float64       `yaml:"vad_threshold"`
}

type AudioConfig struct {
	InputFrames  int `yaml:"input_frames"`
	OutputFrames int `yaml:"output_frames"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddress: "127.0.0.1:8080",
		Log:         LogConfig{Level: "info", Format: "console"},
		Models: ModelsConfig{
			Dir:            "models",
			WhisperEncoder: "tiny-encoder.int8.onnx",
			WhisperDecoder: "tiny-decoder.int8.onnx",
			WhisperTokens:  "tokens.txt",
			Task:           "transcribe",
			VitsModel:      "model-pratham.onnx",
			VitsTokens:     "tokens-pratham.txt",
			NumThreads:     2,
			Provider:       "cpu",
		},
		Voice: VoiceConfig{
			Speed:          1.0,
			DecodeInterval: 500 * time.Millisecond,
			VADThreshold:   300,
		},
	}
}

// Load reads .env (if present), the YAML file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("JARVIS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.HTTPAddress, "JARVIS_HTTP_ADDRESS", "HTTP_ADDRESS")
	str(&c.AuthToken, "JARVIS_AUTH_TOKEN")
	str(&c.Log.Level, "JARVIS_LOG_LEVEL")
	str(&c.Log.Format, "JARVIS_LOG_FORMAT")
	str(&c.Models.Dir, "JARVIS_MODELS_DIR")
	str(&c.Models.Language, "JARVIS_LANGUAGE")
	str(&c.Models.Provider, "JARVIS_PROVIDER")
	num(&c.Models.NumThreads, "JARVIS_NUM_THREADS")
	num(&c.Voice.SpeakerID, "JARVIS_SPEAKER_ID")
	dur(&c.Voice.DecodeInterval, "JARVIS_DECODE_INTERVAL")
	dur(&c.Voice.AutoStopSilence, "JARVIS_AUTO_STOP_SILENCE")
	float(&c.Voice.VADThreshold, "JARVIS_VAD_THRESHOLD")
	num(&c.Audio.InputFrames, "JARVIS_INPUT_FRAMES")
	num(&c.Audio.OutputFrames, "JARVIS_OUTPUT_FRAMES")

	var speed float64
	float(&speed, "JARVIS_SPEED")
	if speed != 0 {
		c.Voice.Speed = float32(speed)
	}
	return errors.Join(errs...)
}

// Validate rejects values the engines cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddress == "" {
		errs = append(errs, errors.New("http_address is empty"))
	}
	if c.Models.NumThreads < 1 {
		errs = append(errs, fmt.Errorf("models.num_threads must be positive, got %d", c.Models.NumThreads))
	}
	if c.Voice.Speed <= 0 {
		errs = append(errs, fmt.Errorf("voice.speed must be positive, got %g", c.Voice.Speed))
	}
	if c.Voice.SpeakerID < 0 {
		errs = append(errs, fmt.Errorf("voice.speaker_id must not be negative, got %d", c.Voice.SpeakerID))
	}
	if c.Voice.DecodeInterval <= 0 {
		errs = append(errs, errors.New("voice.decode_interval must be positive"))
	}
	if c.Voice.AutoStopSilence < 0 {
		errs = append(errs, errors.New("voice.auto_stop_silence must not be negative"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ModelPath resolves a model file name against Models.Dir. Empty stays empty.
func (c Config) ModelPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Models.Dir, name)
}
