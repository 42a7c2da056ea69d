package pipeline

import (
	"context"

	"ignitex-signal-engine/internal/entity"
)

// Scorer estimates the probability, in [0,1], that a signal reaches its first
// target. The model behind it is external; implementations may call out.
type Scorer interface {
	WinProbability(ctx context.Context, signal *entity.Signal) (float64, error)
}

// ModelScore reads the probability the upstream model attached to the
// detection at ingestion. The default scorer: the engine filters on the
// model's number, it does not re-derive it.
type ModelScore struct{}

func (ModelScore) WinProbability(_ context.Context, signal *entity.Signal) (float64, error) {
	return signal.WinProbability, nil
}
