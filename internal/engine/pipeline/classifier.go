package pipeline

import (
	"errors"
	"fmt"

	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/entity"
)

// ErrInvalidDetection marks a malformed detection that never enters the
// pipeline. Counted apart from filter rejections.
var ErrInvalidDetection = errors.New("invalid detection")

// Tier boundaries. A detection needs both scores at or above a boundary to
// earn the tier.
const (
	highTierMin   = 70.0
	mediumTierMin = 55.0
)

// Classifier assigns a quality tier from a detection's confidence and
// agreement scores.
type Classifier struct {
	metrics *metrics.Aggregator
}

// NewClassifier creates a new Classifier.
func NewClassifier(m *metrics.Aggregator) *Classifier {
	return &Classifier{metrics: m}
}

// Classify validates the scores and writes the tier onto the signal. A score
// outside [0,100] is a classification error, never a silent LOW default.
func (c *Classifier) Classify(signal *entity.Signal) error {
	if signal.Confidence < 0 || signal.Confidence > 100 {
		c.metrics.ObserveValidationError()
		return fmt.Errorf("%w: confidence %v out of [0,100]", ErrInvalidDetection, signal.Confidence)
	}
	if signal.Agreement < 0 || signal.Agreement > 100 {
		c.metrics.ObserveValidationError()
		return fmt.Errorf("%w: agreement %v out of [0,100]", ErrInvalidDetection, signal.Agreement)
	}

	switch {
	case signal.Confidence >= highTierMin && signal.Agreement >= highTierMin:
		signal.Tier = entity.TierHigh
	case signal.Confidence >= mediumTierMin && signal.Agreement >= mediumTierMin:
		signal.Tier = entity.TierMedium
	default:
		signal.Tier = entity.TierLow
	}

	c.metrics.ObserveClassified(signal.Tier)
	return nil
}
