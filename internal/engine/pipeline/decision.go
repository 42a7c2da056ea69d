package pipeline

// Outcome is the result of a pipeline stage for one signal.
type Outcome string

const (
	OutcomePass      Outcome = "PASS"
	OutcomeReject    Outcome = "REJECT"
	OutcomePublished Outcome = "PUBLISHED"
	OutcomeDeferred  Outcome = "DEFERRED"
)

// Rejection and deferral reasons surfaced in metrics and history.
const (
	ReasonTierDisabled     = "tier_disabled"
	ReasonRegimeMismatch   = "regime_mismatch"
	ReasonMLThreshold      = "ml_threshold"
	ReasonStrategyVeto     = "strategy_veto"
	ReasonScorerError      = "scorer_error"
	ReasonDuplicate        = "duplicate"
	ReasonExpired          = "expired"
	ReasonPersistRetry     = "persist_retry"
	ReasonStageTimeout     = "stage_timeout"
	ReasonCancelled        = "cancelled"
	ReasonStrategyDisabled = "strategy_disabled"
	ReasonIntakeThrottled  = "intake_throttled"
	ReasonMissingTargets   = "missing_targets"
)

// Decision carries a stage outcome; rejections and deferrals always carry a
// reason, passes never do.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Pass returns a passing decision.
func Pass() Decision {
	return Decision{Outcome: OutcomePass}
}

// Reject returns a rejecting decision with the given reason.
func Reject(reason string) Decision {
	return Decision{Outcome: OutcomeReject, Reason: reason}
}

// Rejected reports whether the decision is a rejection.
func (d Decision) Rejected() bool {
	return d.Outcome == OutcomeReject
}
