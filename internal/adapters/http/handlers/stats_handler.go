package handlers

import (
	"libris/internal/core/services"
	"libris/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// StatsHandler handles the admin statistics endpoint
type StatsHandler struct {
	statsService *services.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Overview returns the admin statistics overview
// @Summary Statistics overview
// @Description Aggregate user, catalog and loan statistics (admin only)
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /stats/overview [get]
func (h *StatsHandler) Overview(c *fiber.Ctx) error {
	data, err := h.statsService.GetOverview(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to compute statistics")
	}
	return response.Success(c, "", data)
}
