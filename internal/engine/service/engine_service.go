package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"ignitex-signal-engine/internal/engine/config"
	"ignitex-signal-engine/internal/engine/dto"
	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/pipeline"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/engine/repository"
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/common"
	"ignitex-signal-engine/pkg/logger"
	"ignitex-signal-engine/pkg/utils"
)

var (
	// ErrEngineStopped is returned when a submission or stop arrives while
	// the pipeline is not running.
	ErrEngineStopped = errors.New("engine is stopped")
	// ErrEngineRunning is returned by Start when the pipeline already runs.
	ErrEngineRunning = errors.New("engine is already running")
	// ErrValidation marks a malformed detection payload.
	ErrValidation = errors.New("invalid detection")
)

// EngineService runs the signal quality-gate pipeline and exposes the
// operator control surface.
type EngineService interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	Submit(ctx context.Context, req *dto.SubmitDetectionRequest) (*dto.SubmitResult, error)
	ActiveSignals() []entity.Signal
	TierStates() map[entity.SubscriptionTier]pipeline.TierStateView
	ClearAllSignals(ctx context.Context) error
	Metrics() metrics.PipelineMetrics
	ResetMetrics()
}

// NewEngineService wires the pipeline stages. notifier may be nil to disable
// out-of-band broadcasting.
func NewEngineService(
	cfg *config.Config,
	store *policy.Store,
	stats StrategyStatsService,
	agg *metrics.Aggregator,
	signalRepo repository.SignalRepository,
	historyRepo repository.SignalHistoryRepository,
	emitter pipeline.Emitter,
	scorer pipeline.Scorer,
	notifier pipeline.Broadcaster,
	log *logger.Logger,
) EngineService {
	compat := make(pipeline.CompatibilityTable, len(cfg.Engine.RegimeCompatibility))
	for strategyName, regimes := range cfg.Engine.RegimeCompatibility {
		for _, regime := range regimes {
			compat[strategyName] = append(compat[strategyName], entity.MarketRegime(regime))
		}
	}

	return &engineService{
		cfg:         cfg,
		policy:      store,
		stats:       stats,
		metrics:     agg,
		signalRepo:  signalRepo,
		historyRepo: historyRepo,
		emitter:     emitter,
		classifier:  pipeline.NewClassifier(agg),
		matcher:     pipeline.NewRegimeMatcher(compat, agg),
		filter:      pipeline.NewQualityFilter(scorer, agg),
		gate:        pipeline.NewGate(signalRepo, historyRepo, emitter, store, agg, log, cfg.Engine.DedupTTL, notifier),
		validate:    validator.New(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.Engine.IntakeRatePerSec), cfg.Engine.IntakeBurst),
		logger:      log,
	}
}

type engineService struct {
	cfg         *config.Config
	policy      *policy.Store
	stats       StrategyStatsService
	metrics     *metrics.Aggregator
	signalRepo  repository.SignalRepository
	historyRepo repository.SignalHistoryRepository
	emitter     pipeline.Emitter
	classifier  *pipeline.Classifier
	matcher     *pipeline.RegimeMatcher
	filter      *pipeline.QualityFilter
	gate        *pipeline.Gate
	validate    *validator.Validate
	limiter     *rate.Limiter
	logger      *logger.Logger

	mu       sync.RWMutex
	running  atomic.Bool
	intake   chan *entity.Signal
	stopChan chan struct{}
	wg       sync.WaitGroup
	cron     *cron.Cron
}

// Start restores persisted state and launches the worker pool, the gate
// flush ticker, and the stats refresh schedule.
func (s *engineService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrEngineRunning
	}

	if err := s.policy.LoadPersisted(ctx); err != nil {
		return fmt.Errorf("failed to restore policy: %w", err)
	}
	if err := s.stats.Refresh(ctx); err != nil {
		s.logger.Warn("Failed to refresh strategy stats on start", logger.ErrorField(err))
	}
	if active, err := s.signalRepo.FindActive(ctx); err != nil {
		s.logger.Warn("Failed to restore active signals", logger.ErrorField(err))
	} else {
		s.gate.Restore(active)
	}

	if spec := s.cfg.Engine.StatsRefreshCron; spec != "" {
		c := cron.New()
		if _, err := c.AddFunc(spec, s.refreshStats); err != nil {
			return fmt.Errorf("invalid stats refresh schedule %q: %w", spec, err)
		}
		s.cron = c
	}

	s.intake = make(chan *entity.Signal, s.cfg.Engine.IntakeBuffer)
	s.stopChan = make(chan struct{})

	for i := 0; i < s.cfg.Engine.Workers; i++ {
		s.wg.Add(1)
		utils.GoSafe(s.worker)
	}
	s.wg.Add(1)
	utils.GoSafe(s.flushLoop)

	if s.cron != nil {
		s.cron.Start()
	}

	s.running.Store(true)
	s.logger.Info("Pipeline engine started", logger.Field("workers", s.cfg.Engine.Workers))
	return nil
}

// Stop halts intake and waits for in-flight signals to finish their trip
// through the pipeline. Signals still queued in the intake channel receive a
// terminal cancelled outcome instead of being silently dropped.
func (s *engineService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return ErrEngineStopped
	}
	s.running.Store(false)

	close(s.stopChan)
	s.wg.Wait()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Engine.StageTimeout)
	defer cancel()
	for {
		select {
		case signal := <-s.intake:
			s.cancelSignal(ctx, signal)
		default:
			s.logger.Info("Pipeline engine stopped")
			return nil
		}
	}
}

// Running reports whether the pipeline accepts submissions.
func (s *engineService) Running() bool {
	return s.running.Load()
}

// Submit validates a detection, consults the strategy kill switch and the
// intake rate guard, and hands the signal to the worker pool. Filter-type
// refusals come back as a non-accepted SubmitResult, malformed payloads as
// ErrValidation.
func (s *engineService) Submit(ctx context.Context, req *dto.SubmitDetectionRequest) (*dto.SubmitResult, error) {
	// Held across the running check and the intake send so Stop cannot slip
	// between them and orphan an accepted signal in a drained channel.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running.Load() {
		return nil, ErrEngineStopped
	}

	if err := s.validate.Struct(req); err != nil {
		s.metrics.ObserveValidationError()
		s.metrics.ObserveIntake(false, "validation_error")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Canonical score migration: a detection may carry confidence, a quality
	// score, or both. Resolve the fallback once here so no downstream
	// consumer ever reads an optional field.
	confidence := req.Confidence
	if confidence == nil {
		confidence = req.QualityScore
	}
	if confidence == nil || req.Agreement == nil {
		s.metrics.ObserveValidationError()
		s.metrics.ObserveIntake(false, "validation_error")
		return nil, fmt.Errorf("%w: confidence and agreement are required", ErrValidation)
	}

	if !s.stats.Enabled(req.StrategyName) {
		s.metrics.ObserveIntake(false, pipeline.ReasonStrategyDisabled)
		return &dto.SubmitResult{Accepted: false, Reason: pipeline.ReasonStrategyDisabled}, nil
	}

	if !s.limiter.Allow() {
		s.metrics.ObserveIntake(false, pipeline.ReasonIntakeThrottled)
		return &dto.SubmitResult{Accepted: false, Reason: pipeline.ReasonIntakeThrottled}, nil
	}

	signal := s.newSignal(req, *confidence, *req.Agreement)

	select {
	case s.intake <- signal:
		s.metrics.ObserveIntake(true, "")
		return &dto.SubmitResult{Accepted: true, SignalID: signal.ID}, nil
	case <-ctx.Done():
		s.metrics.ObserveIntake(false, pipeline.ReasonStageTimeout)
		return nil, ctx.Err()
	}
}

func (s *engineService) newSignal(req *dto.SubmitDetectionRequest, confidence, agreement float64) *entity.Signal {
	now := time.Now()

	qualityScore := confidence
	if req.QualityScore != nil {
		qualityScore = *req.QualityScore
	}
	winProbability := confidence / 100
	if req.WinProbability != nil {
		winProbability = *req.WinProbability
	}

	return &entity.Signal{
		ID:               uuid.NewString(),
		Symbol:           req.Symbol,
		Direction:        entity.SignalDirection(req.Direction),
		StrategyName:     req.StrategyName,
		EntryPrice:       req.EntryPrice,
		StopLoss:         req.StopLoss,
		Targets:          req.Targets,
		Confidence:       confidence,
		Agreement:        agreement,
		QualityScore:     qualityScore,
		WinProbability:   winProbability,
		RegimeAtCreation: entity.MarketRegime(req.Regime),
		CreatedAt:        now,
		ExpiresAt:        sql.NullTime{Time: now.Add(s.cfg.Engine.SignalTTL), Valid: true},
	}
}

func (s *engineService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopChan:
			return
		case signal := <-s.intake:
			s.process(signal)
		}
	}
}

// process carries one signal through the stages strictly in order. The trip
// runs under its own bounded context so shutdown never leaves a signal
// half-processed.
func (s *engineService) process(signal *entity.Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Engine.StageTimeout)
	defer cancel()

	if err := s.classifier.Classify(signal); err != nil {
		s.logger.Warn("Detection failed classification",
			logger.ErrorField(err), logger.Field("signal_id", signal.ID))
		s.finalizeRejected(ctx, signal, "validation_error")
		return
	}

	if signal.Tier != entity.TierLow && len(signal.Targets) == 0 {
		s.metrics.ObserveRejection(metrics.StageBeta, pipeline.ReasonMissingTargets)
		s.finalizeRejected(ctx, signal, pipeline.ReasonMissingTargets)
		return
	}

	if decision := s.matcher.Admit(signal, s.policy.TierConfig(), s.policy.RegimeOverride()); decision.Rejected() {
		s.finalizeRejected(ctx, signal, decision.Reason)
		return
	}

	if s.timedOut(ctx, signal, metrics.StageGamma) {
		return
	}

	if decision := s.filter.Filter(ctx, signal, s.policy.Thresholds(), s.stats); decision.Rejected() {
		s.finalizeRejected(ctx, signal, decision.Reason)
		return
	}

	if s.timedOut(ctx, signal, metrics.StageDelta) {
		return
	}

	decision := s.gate.Publish(ctx, signal)
	switch decision.Outcome {
	case pipeline.OutcomePublished:
		s.logger.Info("Signal published",
			logger.Field("signal_id", signal.ID),
			logger.Field("symbol", signal.Symbol),
			logger.Field("tier", signal.Tier))
	case pipeline.OutcomeDeferred:
		s.logger.Debug("Signal deferred",
			logger.Field("signal_id", signal.ID),
			logger.Field("reason", decision.Reason))
	case pipeline.OutcomeReject:
		s.finalizeRejected(ctx, signal, decision.Reason)
	}
}

func (s *engineService) timedOut(ctx context.Context, signal *entity.Signal, stage string) bool {
	if ctx.Err() == nil {
		return false
	}
	s.metrics.ObserveRejection(stage, pipeline.ReasonStageTimeout)
	finalizeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.finalizeRejected(finalizeCtx, signal, pipeline.ReasonStageTimeout)
	return true
}

func (s *engineService) finalizeRejected(ctx context.Context, signal *entity.Signal, reason string) {
	signal.Status = entity.StatusRejected
	history := &entity.SignalHistory{
		SignalID:     signal.ID,
		StrategyName: signal.StrategyName,
		Outcome:      entity.OutcomeRejected,
		Reason:       sql.NullString{String: reason, Valid: true},
		RecordedAt:   time.Now(),
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		s.logger.Error("Failed to record rejection",
			logger.ErrorField(err), logger.Field("signal_id", signal.ID))
	}
}

func (s *engineService) cancelSignal(ctx context.Context, signal *entity.Signal) {
	s.metrics.ObserveRejection(metrics.StageIntake, pipeline.ReasonCancelled)
	signal.Status = entity.StatusCancelled
	history := &entity.SignalHistory{
		SignalID:     signal.ID,
		StrategyName: signal.StrategyName,
		Outcome:      entity.OutcomeCancelled,
		Reason:       sql.NullString{String: pipeline.ReasonCancelled, Valid: true},
		RecordedAt:   time.Now(),
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		s.logger.Error("Failed to record cancellation",
			logger.ErrorField(err), logger.Field("signal_id", signal.ID))
	}
}

func (s *engineService) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Engine.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Engine.StageTimeout)
			s.gate.Flush(ctx)
			if err := s.emitter.Emit(ctx, common.RedisStreamMetricsUpdated, s.metrics.Snapshot()); err != nil {
				s.logger.Debug("Failed to emit metrics snapshot", logger.ErrorField(err))
			}
			cancel()
		}
	}
}

func (s *engineService) refreshStats() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Engine.StageTimeout)
	defer cancel()
	if err := s.stats.Refresh(ctx); err != nil {
		s.logger.Error("Failed to refresh strategy stats", logger.ErrorField(err))
	}
}

// ActiveSignals returns the current active set.
func (s *engineService) ActiveSignals() []entity.Signal {
	return s.gate.ActiveSignals()
}

// TierStates returns per-subscription-tier publication state.
func (s *engineService) TierStates() map[entity.SubscriptionTier]pipeline.TierStateView {
	return s.gate.TierStates()
}

// ClearAllSignals empties the active set without touching metrics.
func (s *engineService) ClearAllSignals(ctx context.Context) error {
	return s.gate.Clear(ctx)
}

// Metrics returns a consistent snapshot of the pipeline counters.
func (s *engineService) Metrics() metrics.PipelineMetrics {
	return s.metrics.Snapshot()
}

// ResetMetrics zeroes the counters. Operator action only.
func (s *engineService) ResetMetrics() {
	s.metrics.Reset()
}
