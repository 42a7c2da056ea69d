package dto

import "time"

// UpdateThresholdsRequest sets the filtering thresholds. All three are
// required so a preset apply is one atomic write.
type UpdateThresholdsRequest struct {
	Quality         *float64 `json:"quality" validate:"required,gte=0,lte=100"`
	ML              *float64 `json:"ml" validate:"required,gte=0,lte=1"`
	StrategyWinRate *float64 `json:"strategy_win_rate" validate:"required,gte=0,lte=100"`
}

// ThresholdsResponse mirrors the current threshold policy.
type ThresholdsResponse struct {
	Quality         float64 `json:"quality"`
	ML              float64 `json:"ml"`
	StrategyWinRate float64 `json:"strategy_win_rate"`
}

// UpdateTierConfigRequest sets which quality tiers pass the gate.
type UpdateTierConfigRequest struct {
	AcceptHigh   *bool  `json:"accept_high" validate:"required"`
	AcceptMedium *bool  `json:"accept_medium" validate:"required"`
	AcceptLow    *bool  `json:"accept_low" validate:"required"`
	HighPriority string `json:"high_priority" validate:"required,oneof=HIGH MEDIUM"`
}

// TierConfigResponse mirrors the current tier gating policy.
type TierConfigResponse struct {
	AcceptHigh   bool   `json:"accept_high"`
	AcceptMedium bool   `json:"accept_medium"`
	AcceptLow    bool   `json:"accept_low"`
	HighPriority string `json:"high_priority"`
}

// UpdateIntervalRequest changes one subscription tier's publication interval.
type UpdateIntervalRequest struct {
	IntervalMs int64 `json:"interval_ms" validate:"required,gt=0"`
}

// TierStateResponse is one subscription tier's publication state.
type TierStateResponse struct {
	Tier            string     `json:"tier"`
	IntervalMs      int64      `json:"interval_ms"`
	LastPublishedAt *time.Time `json:"last_published_at,omitempty"`
}

// UpdateRegimeRequest pins or releases the operator regime override.
type UpdateRegimeRequest struct {
	Regime string `json:"regime" validate:"required,oneof=AUTO TRENDING_UP TRENDING_DOWN SIDEWAYS VOLATILE"`
}

// RegimeResponse mirrors the current regime override.
type RegimeResponse struct {
	Regime string `json:"regime"`
}

// StrategyResponse is one strategy's stats and kill-switch state.
type StrategyResponse struct {
	StrategyName string  `json:"strategy_name"`
	Enabled      bool    `json:"enabled"`
	Wins         int64   `json:"wins"`
	Losses       int64   `json:"losses"`
	TotalSignals int64   `json:"total_signals"`
	WinRate      float64 `json:"win_rate"`
}

// EngineStateResponse reports whether the pipeline is running.
type EngineStateResponse struct {
	Running bool `json:"running"`
}
