package dto

// SubmitDetectionRequest is the inbound contract from the detector layer: one
// candidate at a time, no batching. Confidence and Agreement drive tier
// classification; WinProbability is the upstream model's estimate. Optional
// score fields use pointers so a missing value is distinguishable from zero.
type SubmitDetectionRequest struct {
	Symbol         string    `json:"symbol" validate:"required"`
	Direction      string    `json:"direction" validate:"required,oneof=LONG SHORT"`
	StrategyName   string    `json:"strategy_name" validate:"required"`
	EntryPrice     float64   `json:"entry_price" validate:"required,gt=0"`
	StopLoss       float64   `json:"stop_loss" validate:"omitempty,gt=0"`
	Targets        []float64 `json:"targets" validate:"omitempty,dive,gt=0"`
	Confidence     *float64  `json:"confidence" validate:"omitempty,gte=0,lte=100"`
	Agreement      *float64  `json:"agreement" validate:"omitempty,gte=0,lte=100"`
	QualityScore   *float64  `json:"quality_score" validate:"omitempty,gte=0,lte=100"`
	WinProbability *float64  `json:"win_probability" validate:"omitempty,gte=0,lte=1"`
	Regime         string    `json:"regime" validate:"omitempty,oneof=TRENDING_UP TRENDING_DOWN SIDEWAYS VOLATILE"`
}

// SubmitResult reports what happened to a submitted detection. Accepted means
// it entered the pipeline, not that it will publish.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	SignalID string `json:"signal_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
