package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ignitex-signal-engine/internal/engine/dto"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/engine/service"
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/logger"
)

// PipelineHandler exposes the pipeline control surface consumed by the
// operator dashboard.
type PipelineHandler struct {
	engine service.EngineService
	policy *policy.Store
	logger *logger.Logger
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(engine service.EngineService, store *policy.Store, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{engine: engine, policy: store, logger: log}
}

// RegisterRoutes registers the pipeline routes to the Echo group.
func (h *PipelineHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/metrics", h.GetMetrics)
	g.POST("/metrics/reset", h.ResetMetrics)
	g.GET("/thresholds", h.GetThresholds)
	g.PUT("/thresholds", h.SetThresholds)
	g.GET("/tiers", h.GetTierConfig)
	g.PUT("/tiers", h.SetTierConfig)
	g.GET("/tiers/intervals", h.GetTierStates)
	g.PUT("/tiers/:tier/interval", h.SetDropInterval)
	g.GET("/regime", h.GetRegime)
	g.PUT("/regime", h.SetRegime)
	g.POST("/start", h.Start)
	g.POST("/stop", h.Stop)
	g.GET("/state", h.GetState)
}

// GetMetrics returns a consistent snapshot of all pipeline counters.
func (h *PipelineHandler) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Metrics())
}

// ResetMetrics zeroes the counters ("clear decks").
func (h *PipelineHandler) ResetMetrics(c echo.Context) error {
	h.engine.ResetMetrics()
	return c.NoContent(http.StatusNoContent)
}

// GetThresholds returns the current filtering thresholds.
func (h *PipelineHandler) GetThresholds(c echo.Context) error {
	thresholds := h.policy.Thresholds()
	return c.JSON(http.StatusOK, dto.ThresholdsResponse{
		Quality:         thresholds.QualityThreshold,
		ML:              thresholds.MLThreshold,
		StrategyWinRate: thresholds.StrategyWinRateThreshold,
	})
}

// SetThresholds applies a new threshold policy atomically.
func (h *PipelineHandler) SetThresholds(c echo.Context) error {
	var req dto.UpdateThresholdsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.Quality == nil || req.ML == nil || req.StrategyWinRate == nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "quality, ml and strategy_win_rate are required"})
	}

	if err := h.policy.SetThresholds(c.Request().Context(), *req.Quality, *req.ML, *req.StrategyWinRate); err != nil {
		return h.configError(c, err)
	}
	return h.GetThresholds(c)
}

// GetTierConfig returns the tier gating policy.
func (h *PipelineHandler) GetTierConfig(c echo.Context) error {
	cfg := h.policy.TierConfig()
	return c.JSON(http.StatusOK, dto.TierConfigResponse{
		AcceptHigh:   cfg.AcceptHigh,
		AcceptMedium: cfg.AcceptMedium,
		AcceptLow:    cfg.AcceptLow,
		HighPriority: string(cfg.HighPriority),
	})
}

// SetTierConfig applies a new tier gating policy.
func (h *PipelineHandler) SetTierConfig(c echo.Context) error {
	var req dto.UpdateTierConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.AcceptHigh == nil || req.AcceptMedium == nil || req.AcceptLow == nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "accept_high, accept_medium and accept_low are required"})
	}

	cfg := policy.TierConfig{
		AcceptHigh:   *req.AcceptHigh,
		AcceptMedium: *req.AcceptMedium,
		AcceptLow:    *req.AcceptLow,
		HighPriority: entity.SignalPriority(req.HighPriority),
	}
	if err := h.policy.SetTierConfig(c.Request().Context(), cfg); err != nil {
		return h.configError(c, err)
	}
	return h.GetTierConfig(c)
}

// GetTierStates returns per-subscription-tier publication state.
func (h *PipelineHandler) GetTierStates(c echo.Context) error {
	states := h.engine.TierStates()
	out := make([]dto.TierStateResponse, 0, len(states))
	for _, tier := range entity.SubscriptionTiers {
		state := states[tier]
		resp := dto.TierStateResponse{
			Tier:       string(tier),
			IntervalMs: state.Interval.Milliseconds(),
		}
		if !state.LastPublishedAt.IsZero() {
			lastPublishedAt := state.LastPublishedAt
			resp.LastPublishedAt = &lastPublishedAt
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, out)
}

// SetDropInterval changes one subscription tier's publication interval. The
// change applies on the next scheduling decision.
func (h *PipelineHandler) SetDropInterval(c echo.Context) error {
	var req dto.UpdateIntervalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.IntervalMs <= 0 {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "interval_ms must be positive"})
	}

	tier := entity.SubscriptionTier(c.Param("tier"))
	interval := millisToDuration(req.IntervalMs)
	if err := h.policy.SetDropInterval(c.Request().Context(), tier, interval); err != nil {
		return h.configError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetRegime returns the operator regime override.
func (h *PipelineHandler) GetRegime(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.RegimeResponse{Regime: string(h.policy.RegimeOverride())})
}

// SetRegime pins or releases the regime override.
func (h *PipelineHandler) SetRegime(c echo.Context) error {
	var req dto.UpdateRegimeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if err := h.policy.SetRegimeOverride(c.Request().Context(), entity.MarketRegime(req.Regime)); err != nil {
		return h.configError(c, err)
	}
	return h.GetRegime(c)
}

// Start launches the pipeline.
func (h *PipelineHandler) Start(c echo.Context) error {
	if err := h.engine.Start(c.Request().Context()); err != nil {
		if errors.Is(err, service.ErrEngineRunning) {
			return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("Failed to start engine", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to start engine"})
	}
	return c.JSON(http.StatusOK, dto.EngineStateResponse{Running: true})
}

// Stop halts intake without corrupting in-flight signals.
func (h *PipelineHandler) Stop(c echo.Context) error {
	if err := h.engine.Stop(); err != nil {
		if errors.Is(err, service.ErrEngineStopped) {
			return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("Failed to stop engine", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to stop engine"})
	}
	return c.JSON(http.StatusOK, dto.EngineStateResponse{Running: false})
}

// GetState reports whether the pipeline is running.
func (h *PipelineHandler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.EngineStateResponse{Running: h.engine.Running()})
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (h *PipelineHandler) configError(c echo.Context, err error) error {
	if errors.Is(err, policy.ErrInvalidConfig) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}
	h.logger.Error("Failed to apply configuration", logger.ErrorField(err))
	return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to apply configuration"})
}
