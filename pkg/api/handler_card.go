package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/maestro/pkg/services"
)

// agentCardHandler handles GET /.well-known/agent-card.json?slug=<slug>,
// serving the agent's synthesized A2A card.
func (s *Server) agentCardHandler(c *echo.Context) error {
	slug := c.QueryParam("slug")
	if slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "slug query parameter is required")
	}

	agent, err := s.agents.GetBySlug(c.Request().Context(), slug)
	if errors.Is(err, services.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	if err != nil {
		return mapServiceError(err)
	}
	if agent.Metadata.Card == nil {
		return echo.NewHTTPError(http.StatusNotFound, "agent has no card")
	}
	return c.JSON(http.StatusOK, agent.Metadata.Card)
}
