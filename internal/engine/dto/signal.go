package dto

import (
	"time"

	"ignitex-signal-engine/internal/entity"
)

// SignalResponse is the outward view of a signal.
type SignalResponse struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Direction      string     `json:"direction"`
	StrategyName   string     `json:"strategy_name"`
	EntryPrice     float64    `json:"entry_price"`
	StopLoss       float64    `json:"stop_loss"`
	Targets        []float64  `json:"targets"`
	Confidence     float64    `json:"confidence"`
	QualityScore   float64    `json:"quality_score"`
	WinProbability float64    `json:"win_probability"`
	Tier           string     `json:"tier"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	Regime         string     `json:"regime,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// NewSignalResponse maps a signal entity to its API view.
func NewSignalResponse(signal entity.Signal) SignalResponse {
	resp := SignalResponse{
		ID:             signal.ID,
		Symbol:         signal.Symbol,
		Direction:      string(signal.Direction),
		StrategyName:   signal.StrategyName,
		EntryPrice:     signal.EntryPrice,
		StopLoss:       signal.StopLoss,
		Targets:        signal.Targets,
		Confidence:     signal.Confidence,
		QualityScore:   signal.QualityScore,
		WinProbability: signal.WinProbability,
		Tier:           string(signal.Tier),
		Priority:       string(signal.Priority),
		Status:         string(signal.Status),
		Regime:         string(signal.RegimeAtCreation),
		CreatedAt:      signal.CreatedAt,
	}
	if signal.PublishedAt.Valid {
		publishedAt := signal.PublishedAt.Time
		resp.PublishedAt = &publishedAt
	}
	if signal.ExpiresAt.Valid {
		expiresAt := signal.ExpiresAt.Time
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
