// Package server exposes the HTTP surface: the WebSocket endpoint for
// terminals, the key-authed publish API for the admin system, and the
// ops endpoints (health, version, metrics).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/dev-starline/thecalcify/internal/config"
	"github.com/dev-starline/thecalcify/internal/coordination"
	"github.com/dev-starline/thecalcify/internal/domain"
)

// appService is the slice of the application service the HTTP surface
// uses.
type appService interface {
	EnqueueRefresh(username string)
	ActiveUsers(ctx context.Context, username string) ([]domain.ClientAccess, error)
	NotifyNews(clients []domain.ClientAccess, news any)
	UpsertSelfTick(ctx context.Context, tick domain.Tick) error
	RemoveSelfTick(ctx context.Context, symbol string) error
}

// liveHub is the slice of the WebSocket hub the server drives.
type liveHub interface {
	Register(conn *websocket.Conn) (string, error)
	Unregister(connID string)
	HandleCommand(ctx context.Context, connID string, raw []byte)
	JoinIdentity(ctx context.Context, connID, room string)
	ConnectionCount() int
}

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app       appService
	hub       liveHub
	instances *coordination.InstanceRegistry

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the HTTP surface: the WebSocket endpoint, the publish
// API used by the admin system, and the ops endpoints. instances may be
// nil when instance coordination is disabled.
func NewServer(cfg *config.Config, app appService, hub liveHub, instances *coordination.InstanceRegistry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		hub:          hub,
		instances:    instances,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
