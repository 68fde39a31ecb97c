package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/dev-starline/thecalcify/internal/errors"
	"github.com/dev-starline/thecalcify/internal/platform/correlation"
)

const maxCommandSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is checked before the upgrade, together with the rest of
	// the handshake auth.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket authenticates the handshake, upgrades the connection
// and runs its read pump. Browser clients are admitted by Origin,
// mobile clients by the shared key in the auth query parameter.
func (s *Server) handleWebSocket(c echo.Context) error {
	user := strings.TrimSpace(c.QueryParam("user"))
	clientType := c.QueryParam("type")
	authKey := c.QueryParam("auth")

	if err := s.authenticateHandshake(c.Request(), clientType, authKey); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake error response.
		slog.Warn("WebSocket upgrade failed", "remote", c.RealIP(), "error", err)
		return nil
	}

	connID, err := s.hub.Register(conn)
	if err != nil {
		slog.Warn("Connection rejected", "remote", c.RealIP(), "error", err)
		return nil
	}

	ctx := c.Request().Context()
	if user != "" {
		s.hub.JoinIdentity(ctx, connID, user)
	}

	go s.readPump(connID, conn)
	return nil
}

func (s *Server) authenticateHandshake(r *http.Request, clientType, authKey string) error {
	if clientType == "mobile" {
		if subtle.ConstantTimeCompare([]byte(authKey), []byte(s.config.MobileAuthKey)) != 1 {
			return apperrors.UnauthorizedError("invalid mobile auth key")
		}
		return nil
	}

	if len(s.config.AllowedOrigins) == 0 {
		return nil
	}
	origin := r.Header.Get("Origin")
	if origin == "" || !s.originAllowed(origin) {
		return apperrors.UnauthorizedError("origin not allowed").WithContext("origin", origin)
	}
	return nil
}

func (s *Server) originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.config.AllowedOrigins {
		if host == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// readPump consumes inbound commands until the connection drops, then
// unregisters it. A background context keeps command handling alive
// past the handshake request; the connection ID doubles as the
// correlation ID so logs from one socket line up.
func (s *Server) readPump(connID string, conn *websocket.Conn) {
	defer s.hub.Unregister(connID)

	ctx := correlation.WithID(context.Background(), connID)
	conn.SetReadLimit(maxCommandSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Connection read failed", "conn_id", connID, "error", err)
			}
			return
		}
		s.hub.HandleCommand(ctx, connID, raw)
	}
}
