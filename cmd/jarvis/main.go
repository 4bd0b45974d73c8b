package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadiek/jarvis-voice/internal/config"
	"github.com/chadiek/jarvis-voice/internal/device"
	"github.com/chadiek/jarvis-voice/internal/engine/sherpa"
	"github.com/chadiek/jarvis-voice/internal/httpserver"
	"github.com/chadiek/jarvis-voice/internal/logging"
	"github.com/chadiek/jarvis-voice/internal/metrics"
	"github.com/chadiek/jarvis-voice/internal/voice"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("jarvis stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("jarvis", logger)

	sys, err := device.Open(device.Config{
		InputFrames:  cfg.Audio.InputFrames,
		OutputFrames: cfg.Audio.OutputFrames,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			logger.Warn("audio shutdown failed", zap.Error(err))
		}
	}()

	loader := sherpa.NewLoader(engineConfig(cfg), logger)
	session := voice.NewSession(loader, sys.Microphone(), sys.Speaker(), voice.Options{
		Assets:          loader.Manifest(),
		SpeakerID:       cfg.Voice.SpeakerID,
		Speed:           cfg.Voice.Speed,
		AutoStopSilence: cfg.Voice.AutoStopSilence,
		VADThreshold:    cfg.Voice.VADThreshold,
		Logger:          logger,
		Metrics:         collector,
	})

	srv := httpserver.New(session, httpserver.Options{
		AuthToken: cfg.AuthToken,
		Metrics:   collector,
		Logger:    logger,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failed load leaves the session in its error state; the server
		// keeps running so /initialize can retry.
		if err := session.Initialize(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("models not loaded", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("control server listening", zap.String("addr", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = server.Close()
		}
		if err := session.Close(sctx); err != nil {
			logger.Warn("session close timed out", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func engineConfig(cfg config.Config) sherpa.Config {
	m := cfg.Models
	return sherpa.Config{
		WhisperEncoder: cfg.ModelPath(m.WhisperEncoder),
		WhisperDecoder: cfg.ModelPath(m.WhisperDecoder),
		WhisperTokens:  cfg.ModelPath(m.WhisperTokens),
		Language:       m.Language,
		Task:           m.Task,
		VitsModel:      cfg.ModelPath(m.VitsModel),
		VitsTokens:     cfg.ModelPath(m.VitsTokens),
		VitsLexicon:    cfg.ModelPath(m.VitsLexicon),
		VitsDataDir:    cfg.ModelPath(m.VitsDataDir),
		NumThreads:     m.NumThreads,
		Provider:       m.Provider,
		DecodeInterval: cfg.Voice.DecodeInterval,
	}
}
