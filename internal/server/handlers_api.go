package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dev-starline/thecalcify/internal/domain"
	apperrors "github.com/dev-starline/thecalcify/internal/errors"
)

type refreshRequest struct {
	Username string `json:"username"`
}

// handleRefreshUser schedules a background re-push of the entitlement
// snapshot after the admin system updated it. Returns 202 immediately;
// the push happens on the refresh worker.
func (s *Server) handleRefreshUser(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	s.app.EnqueueRefresh(strings.TrimSpace(req.Username))

	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "scheduled"}); err != nil {
		return fmt.Errorf("failed to write refresh response: %w", err)
	}
	return nil
}

// handleActiveUsers returns the entitlement snapshot rows, optionally
// filtered by the username query parameter.
func (s *Server) handleActiveUsers(c echo.Context) error {
	users, err := s.app.ActiveUsers(c.Request().Context(), strings.TrimSpace(c.QueryParam("username")))
	if err != nil {
		return apperrors.ExternalError("user details unavailable", err)
	}

	if err := c.JSON(http.StatusOK, users); err != nil {
		return fmt.Errorf("failed to write active users response: %w", err)
	}
	return nil
}

type newsRequest struct {
	Clients []domain.ClientAccess `json:"clients"`
	News    map[string]any        `json:"news"`
}

// handleNews fans a news notification out to the targeted clients'
// identity rooms.
func (s *Server) handleNews(c echo.Context) error {
	var req newsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if len(req.Clients) == 0 {
		return apperrors.ValidationError("clients must not be empty")
	}
	if len(req.News) == 0 {
		return apperrors.ValidationError("news payload must not be empty")
	}

	s.app.NotifyNews(req.Clients, req.News)

	if err := c.JSON(http.StatusOK, map[string]string{"status": "delivered"}); err != nil {
		return fmt.Errorf("failed to write news response: %w", err)
	}
	return nil
}

// handleUpsertSelfRate stores a self-maintained instrument value and
// pushes it through the live pipeline.
func (s *Server) handleUpsertSelfRate(c echo.Context) error {
	var tick domain.Tick
	if err := c.Bind(&tick); err != nil {
		return apperrors.ValidationError("invalid tick body")
	}
	if strings.TrimSpace(tick.Identifier) == "" {
		return apperrors.ValidationError("identifier is required")
	}

	if err := s.app.UpsertSelfTick(c.Request().Context(), tick); err != nil {
		return apperrors.ExternalError("failed to store rate", err).WithContext("symbol", tick.Identifier)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "stored"}); err != nil {
		return fmt.Errorf("failed to write self rate response: %w", err)
	}
	return nil
}

// handleRemoveSelfRate removes a self-maintained instrument.
func (s *Server) handleRemoveSelfRate(c echo.Context) error {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		return apperrors.ValidationError("symbol is required")
	}

	if err := s.app.RemoveSelfTick(c.Request().Context(), symbol); err != nil {
		return apperrors.ExternalError("failed to remove rate", err).WithContext("symbol", symbol)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "removed"}); err != nil {
		return fmt.Errorf("failed to write self rate response: %w", err)
	}
	return nil
}

// handleInstances lists the live fan-out instances of this deployment.
func (s *Server) handleInstances(c echo.Context) error {
	if s.instances == nil {
		return apperrors.NotFoundError("instance coordination disabled")
	}

	infos, err := s.instances.ActiveInstances(c.Request().Context())
	if err != nil {
		return apperrors.ExternalError("instance registry unavailable", err)
	}

	if err := c.JSON(http.StatusOK, infos); err != nil {
		return fmt.Errorf("failed to write instances response: %w", err)
	}
	return nil
}
