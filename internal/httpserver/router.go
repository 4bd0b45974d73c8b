package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewRouter creates a configured Echo instance with panic recovery and
// request logging. m may be nil.
func NewRouter(logger *zap.Logger, m Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger, m))
	return e
}

func requestLogger(logger *zap.Logger, m Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			took := time.Since(start)
			status := c.Response().Status
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			if m != nil {
				m.RecordHTTPRequest(c.Request().Method, path, status, took)
			}
			logger.Debug("request",
				zap.String("method", c.Request().Method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Duration("took", took))
			return nil
		}
	}
}
