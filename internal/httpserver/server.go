package httpserver

import (
	"errors"
	"net/http"

	"github.com/chadiek/jarvis-voice/internal/voice"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Options configures the control server. Zero values are usable.
type Options struct {
	// AuthToken, when set, is required by every route except /healthz and
	// /metrics.
	AuthToken string
	Metrics   Metrics
	Logger    *zap.Logger
}

// Server bundles the router and its dependencies.
type Server struct {
	Router *echo.Echo

	ctrl   Controller
	logger *zap.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

type speakRequest struct {
	Text string `json:"text"`
}

// New wires the control routes for ctrl.
func New(ctrl Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "http"))
	s := &Server{
		Router: NewRouter(logger, opts.Metrics),
		ctrl:   ctrl,
		logger: logger,
	}
	e := s.Router

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	auth := requireToken(opts.AuthToken)
	e.POST("/initialize", s.handleInitialize, auth)
	e.GET("/state", s.handleState, auth)
	e.GET("/state/stream", s.handleStream, auth)
	e.POST("/listen/start", s.action(ctrl.StartListening), auth)
	e.POST("/listen/stop", s.action(ctrl.StopListening), auth)
	e.POST("/listen/toggle", s.action(ctrl.ToggleListening), auth)
	e.POST("/speak", s.handleSpeak, auth)
	return s
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.State())
}

// handleInitialize retries model loading, typically after the model files
// were fixed.
func (s *Server) handleInitialize(c echo.Context) error {
	if err := s.ctrl.Initialize(c.Request().Context()); err != nil {
		if voice.IsKind(err, voice.KindInitialization) {
			return c.JSON(http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.ctrl.State())
}

func (s *Server) action(fn func() error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := fn(); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, s.ctrl.State())
	}
}

func (s *Server) handleSpeak(c echo.Context) error {
	var req speakRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid body"})
	}
	if err := s.ctrl.Speak(req.Text); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, s.ctrl.State())
}

func (s *Server) fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(code, errorBody{Error: err.Error()})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voice.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, voice.ErrAlreadyListening),
		errors.Is(err, voice.ErrNotListening),
		errors.Is(err, voice.ErrSpeechInProgress):
		return http.StatusConflict
	case errors.Is(err, voice.ErrNotInitialized):
		return http.StatusPreconditionFailed
	case errors.Is(err, voice.ErrInitializing), errors.Is(err, voice.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
