package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	streamBuffer = 16
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin may watch the state; mutating routes sit behind the token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes every state snapshot as a JSON text frame until the
// client goes away or the session closes.
func (s *Server) handleStream(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	states, cancel := s.ctrl.Subscribe(streamBuffer)
	defer cancel()

	// Reads only detect the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case st, ok := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return nil
			}
			if err := conn.WriteJSON(st); err != nil {
				s.logger.Debug("ws write failed", zap.Error(err))
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
