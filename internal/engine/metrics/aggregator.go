package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"ignitex-signal-engine/internal/entity"
)

// Stage names used for rejection accounting.
const (
	StageIntake     = "intake"
	StageBeta       = "beta"
	StageGamma      = "gamma"
	StageDelta      = "delta"
	StagePublishing = "publishing"
)

// PipelineMetrics is a point-in-time snapshot of every pipeline counter.
// Conservation holds in any snapshot: received == passed + rejected for each
// filtering stage.
type PipelineMetrics struct {
	IntakeReceived   int64 `json:"intake_received"`
	IntakeAccepted   int64 `json:"intake_accepted"`
	IntakeRejected   int64 `json:"intake_rejected"`
	ValidationErrors int64 `json:"validation_errors"`

	BetaSignalsScored int64 `json:"beta_signals_scored"`
	BetaHighQuality   int64 `json:"beta_high_quality"`
	BetaMediumQuality int64 `json:"beta_medium_quality"`
	BetaLowQuality    int64 `json:"beta_low_quality"`

	GammaSignalsReceived int64 `json:"gamma_signals_received"`
	GammaSignalsPassed   int64 `json:"gamma_signals_passed"`
	GammaSignalsRejected int64 `json:"gamma_signals_rejected"`

	DeltaProcessed    int64   `json:"delta_processed"`
	DeltaPassed       int64   `json:"delta_passed"`
	DeltaRejected     int64   `json:"delta_rejected"`
	DeltaQualityScore float64 `json:"delta_quality_score"`

	PublishingStarted       int64 `json:"publishing_started"`
	PublishingAddedToArray  int64 `json:"publishing_added_to_array"`
	PublishingSavedToDB     int64 `json:"publishing_saved_to_db"`
	PublishingEventsEmitted int64 `json:"publishing_events_emitted"`
	PublishingComplete      int64 `json:"publishing_complete"`
	PublishingFailed        int64 `json:"publishing_failed"`
	PublishingDeferred      int64 `json:"publishing_deferred"`
	PublishingDeduplicated  int64 `json:"publishing_deduplicated"`
	DeferredExpired         int64 `json:"deferred_expired"`

	RejectionReasons map[string]int64 `json:"rejection_reasons"`
}

// Aggregator accumulates pipeline counters under a single mutex so that
// snapshots are never torn. Every increment is mirrored into prometheus for
// scraping; the mutex-guarded struct stays authoritative because prometheus
// counters cannot be read as a consistent group.
type Aggregator struct {
	mu sync.Mutex
	m  PipelineMetrics

	deltaQualitySum   float64
	deltaQualityCount int64

	stageOutcomes *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	activeSignals prometheus.Gauge
}

// NewAggregator creates an aggregator registered against reg. Passing nil
// uses a private registry, which keeps tests isolated.
func NewAggregator(reg prometheus.Registerer) *Aggregator {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	a := &Aggregator{
		m: PipelineMetrics{RejectionReasons: make(map[string]int64)},
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ignitex",
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Signals observed per pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ignitex",
			Subsystem: "pipeline",
			Name:      "rejections_total",
			Help:      "Signals rejected per stage and reason.",
		}, []string{"stage", "reason"}),
		activeSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ignitex",
			Subsystem: "pipeline",
			Name:      "active_signals",
			Help:      "Number of signals currently in the active set.",
		}),
	}
	reg.MustRegister(a.stageOutcomes, a.rejections, a.activeSignals)
	return a
}

// ObserveIntake records an ingestion attempt. Rejected intakes carry a reason.
func (a *Aggregator) ObserveIntake(accepted bool, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.IntakeReceived++
	if accepted {
		a.m.IntakeAccepted++
		a.stageOutcomes.WithLabelValues(StageIntake, "pass").Inc()
		return
	}
	a.m.IntakeRejected++
	a.m.RejectionReasons[reason]++
	a.stageOutcomes.WithLabelValues(StageIntake, "reject").Inc()
	a.rejections.WithLabelValues(StageIntake, reason).Inc()
}

// ObserveValidationError records a malformed detection. Validation errors are
// counted apart from filter rejections.
func (a *Aggregator) ObserveValidationError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.ValidationErrors++
	a.stageOutcomes.WithLabelValues(StageBeta, "error").Inc()
}

// ObserveClassified records a tier assignment from the classifier.
func (a *Aggregator) ObserveClassified(tier entity.SignalTier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.BetaSignalsScored++
	switch tier {
	case entity.TierHigh:
		a.m.BetaHighQuality++
	case entity.TierMedium:
		a.m.BetaMediumQuality++
	default:
		a.m.BetaLowQuality++
	}
	a.stageOutcomes.WithLabelValues(StageBeta, string(tier)).Inc()
}

// ObserveGamma records a regime-matcher decision.
func (a *Aggregator) ObserveGamma(passed bool, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.GammaSignalsReceived++
	if passed {
		a.m.GammaSignalsPassed++
		a.stageOutcomes.WithLabelValues(StageGamma, "pass").Inc()
		return
	}
	a.m.GammaSignalsRejected++
	a.m.RejectionReasons[reason]++
	a.stageOutcomes.WithLabelValues(StageGamma, "reject").Inc()
	a.rejections.WithLabelValues(StageGamma, reason).Inc()
}

// ObserveDelta records a quality-filter decision along with the signal's
// informational quality score.
func (a *Aggregator) ObserveDelta(passed bool, reason string, qualityScore float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.DeltaProcessed++
	a.deltaQualitySum += qualityScore
	a.deltaQualityCount++
	a.m.DeltaQualityScore = a.deltaQualitySum / float64(a.deltaQualityCount)
	if passed {
		a.m.DeltaPassed++
		a.stageOutcomes.WithLabelValues(StageDelta, "pass").Inc()
		return
	}
	a.m.DeltaRejected++
	a.m.RejectionReasons[reason]++
	a.stageOutcomes.WithLabelValues(StageDelta, "reject").Inc()
	a.rejections.WithLabelValues(StageDelta, reason).Inc()
}

// Publication commit ladder. Each step increments once per signal and only
// after every earlier step has incremented for the same signal; the gate
// enforces the ordering, the aggregator just counts.

func (a *Aggregator) PublishingStarted() { a.inc(&a.m.PublishingStarted, "started") }

func (a *Aggregator) PublishingAddedToArray() { a.inc(&a.m.PublishingAddedToArray, "added_to_array") }

func (a *Aggregator) PublishingSavedToDB() { a.inc(&a.m.PublishingSavedToDB, "saved_to_db") }

func (a *Aggregator) PublishingEventsEmitted() {
	a.inc(&a.m.PublishingEventsEmitted, "events_emitted")
}

func (a *Aggregator) PublishingComplete() { a.inc(&a.m.PublishingComplete, "complete") }

func (a *Aggregator) PublishingFailed() { a.inc(&a.m.PublishingFailed, "failed") }

func (a *Aggregator) PublishingDeferred() { a.inc(&a.m.PublishingDeferred, "deferred") }

// PublishingDeduplicated records a duplicate signal turned away by the gate.
func (a *Aggregator) PublishingDeduplicated(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.PublishingDeduplicated++
	a.m.RejectionReasons[reason]++
	a.stageOutcomes.WithLabelValues(StagePublishing, "deduplicated").Inc()
	a.rejections.WithLabelValues(StagePublishing, reason).Inc()
}

// DeferredExpired records a deferred signal that expired before any tier
// became due for it.
func (a *Aggregator) DeferredExpired(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.DeferredExpired++
	a.m.RejectionReasons[reason]++
	a.rejections.WithLabelValues(StagePublishing, reason).Inc()
}

// ObserveRejection tallies a terminal rejection reason outside the per-stage
// counters, e.g. a stage timeout or cancellation on shutdown.
func (a *Aggregator) ObserveRejection(stage, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.RejectionReasons[reason]++
	a.rejections.WithLabelValues(stage, reason).Inc()
}

// SetActiveSignals updates the active-set gauge.
func (a *Aggregator) SetActiveSignals(n int) {
	a.activeSignals.Set(float64(n))
}

func (a *Aggregator) inc(field *int64, outcome string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*field++
	a.stageOutcomes.WithLabelValues(StagePublishing, outcome).Inc()
}

// Snapshot returns a consistent copy of all counters.
func (a *Aggregator) Snapshot() PipelineMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.m
	out.RejectionReasons = make(map[string]int64, len(a.m.RejectionReasons))
	for k, v := range a.m.RejectionReasons {
		out.RejectionReasons[k] = v
	}
	return out
}

// Reset zeroes every counter. Only invoked by explicit operator action.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m = PipelineMetrics{RejectionReasons: make(map[string]int64)}
	a.deltaQualitySum = 0
	a.deltaQualityCount = 0
}
