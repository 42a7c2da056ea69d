package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"ignitex-signal-engine/internal/engine/dto"
	"ignitex-signal-engine/internal/engine/service"
	"ignitex-signal-engine/pkg/logger"
)

// SignalHandler exposes signal ingestion and the active set.
type SignalHandler struct {
	engine service.EngineService
	logger *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(engine service.EngineService, log *logger.Logger) *SignalHandler {
	return &SignalHandler{engine: engine, logger: log}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Submit)
	g.GET("", h.GetActiveSignals)
	g.DELETE("", h.ClearAllSignals)
}

// Submit ingests one candidate detection from the upstream detector.
func (h *SignalHandler) Submit(c echo.Context) error {
	var req dto.SubmitDetectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	result, err := h.engine.Submit(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		if errors.Is(err, service.ErrEngineStopped) {
			return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("Failed to submit detection", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to submit detection"})
	}

	status := http.StatusAccepted
	if !result.Accepted {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// GetActiveSignals returns the active set, newest first.
func (h *SignalHandler) GetActiveSignals(c echo.Context) error {
	signals := h.engine.ActiveSignals()
	out := make([]dto.SignalResponse, 0, len(signals))
	for _, signal := range signals {
		out = append(out, dto.NewSignalResponse(signal))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return c.JSON(http.StatusOK, out)
}

// ClearAllSignals atomically empties the active set. Metrics and history are
// untouched.
func (h *SignalHandler) ClearAllSignals(c echo.Context) error {
	if err := h.engine.ClearAllSignals(c.Request().Context()); err != nil {
		h.logger.Error("Failed to clear signals", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to clear signals"})
	}
	return c.NoContent(http.StatusNoContent)
}
