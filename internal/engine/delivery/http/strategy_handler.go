package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ignitex-signal-engine/internal/engine/dto"
	"ignitex-signal-engine/internal/engine/service"
	"ignitex-signal-engine/pkg/logger"
)

// StrategyHandler exposes the per-strategy kill switch and stats.
type StrategyHandler struct {
	stats  service.StrategyStatsService
	logger *logger.Logger
}

// NewStrategyHandler creates a new StrategyHandler.
func NewStrategyHandler(stats service.StrategyStatsService, log *logger.Logger) *StrategyHandler {
	return &StrategyHandler{stats: stats, logger: log}
}

// RegisterRoutes registers the strategy routes to the Echo group.
func (h *StrategyHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetStrategies)
	g.POST("/:name/enable", h.EnableStrategy)
	g.POST("/:name/disable", h.DisableStrategy)
}

// GetStrategies returns all known strategies with their stats.
func (h *StrategyHandler) GetStrategies(c echo.Context) error {
	stats, err := h.stats.All(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to load strategy stats", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load strategies"})
	}

	out := make([]dto.StrategyResponse, 0, len(stats))
	for _, stat := range stats {
		out = append(out, dto.StrategyResponse{
			StrategyName: stat.StrategyName,
			Enabled:      stat.Enabled,
			Wins:         stat.Wins,
			Losses:       stat.Losses,
			TotalSignals: stat.TotalSignals,
			WinRate:      stat.WinRate,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// EnableStrategy re-enables a strategy's submissions.
func (h *StrategyHandler) EnableStrategy(c echo.Context) error {
	return h.setEnabled(c, true)
}

// DisableStrategy blocks a strategy's submissions before classification.
func (h *StrategyHandler) DisableStrategy(c echo.Context) error {
	return h.setEnabled(c, false)
}

func (h *StrategyHandler) setEnabled(c echo.Context, enabled bool) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Strategy name is required"})
	}
	if err := h.stats.SetEnabled(c.Request().Context(), name, enabled); err != nil {
		h.logger.Error("Failed to update strategy kill switch",
			logger.ErrorField(err), logger.Field("strategy", name))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update strategy"})
	}
	return c.NoContent(http.StatusNoContent)
}
