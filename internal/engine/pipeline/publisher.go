package pipeline

import (
	"context"
	"database/sql"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"

	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/common"
	"ignitex-signal-engine/pkg/logger"
)

// Deferral reasons returned by the gate.
const (
	ReasonRateLimited = "rate_limited"
)

// SignalStore persists signals for the gate. Upsert must be idempotent on the
// signal id so retries after a partial publish cannot duplicate.
type SignalStore interface {
	Upsert(ctx context.Context, signal *entity.Signal) error
	UpdateStatus(ctx context.Context, id string, status entity.SignalStatus) error
	UpdateStatuses(ctx context.Context, from, to entity.SignalStatus) error
}

// HistoryStore appends lifecycle records for published and terminated signals.
type HistoryStore interface {
	Create(ctx context.Context, history *entity.SignalHistory) error
}

// Emitter broadcasts engine events to subscribers. Delivery is at least once;
// consumers de-duplicate by signal id.
type Emitter interface {
	Emit(ctx context.Context, stream string, payload interface{}) error
}

// Broadcaster pushes a published signal to an out-of-band channel such as a
// Telegram chat. Best effort only.
type Broadcaster interface {
	NotifyPublished(signal *entity.Signal) error
}

// IntervalSource supplies the current per-tier publication interval. Reading
// it at every scheduling decision is what makes interval updates take effect
// on the next decision without touching last-published timestamps.
type IntervalSource interface {
	DropInterval(tier entity.SubscriptionTier) time.Duration
}

// PublishedEvent is the payload emitted on the signal.published stream.
type PublishedEvent struct {
	SignalID         string    `json:"signal_id"`
	Symbol           string    `json:"symbol"`
	Direction        string    `json:"direction"`
	StrategyName     string    `json:"strategy_name"`
	Tier             string    `json:"tier"`
	Priority         string    `json:"priority"`
	EntryPrice       float64   `json:"entry_price"`
	StopLoss         float64   `json:"stop_loss"`
	Targets          []float64 `json:"targets"`
	WinProbability   float64   `json:"win_probability"`
	SubscriptionTier string    `json:"subscription_tier,omitempty"`
	PublishedAt      time.Time `json:"published_at"`
}

// TierStateView is the operator-facing view of one subscription tier's
// publication state.
type TierStateView struct {
	Interval        time.Duration `json:"interval_ms"`
	LastPublishedAt time.Time     `json:"last_published_at"`
}

// gateEntry tracks one signal through the sequential commit ladder. Each flag
// flips exactly once, in order, so a retry resumes where the previous attempt
// failed instead of re-running earlier steps.
type gateEntry struct {
	signal         *entity.Signal
	started        bool
	added          bool
	persisted      bool
	emitted        bool
	completed      bool
	expiredCounted bool
}

// Gate commits approved signals to the active set and delivers them to
// subscription tiers under per-tier rate limits.
type Gate struct {
	mu        sync.Mutex
	active    map[string]*entity.Signal
	queues    map[entity.SubscriptionTier][]*gateEntry
	lastDrop  map[entity.SubscriptionTier]time.Time
	dedup     *gocache.Cache
	breaker   *gobreaker.CircuitBreaker
	store     SignalStore
	history   HistoryStore
	emitter   Emitter
	notifier  Broadcaster
	intervals IntervalSource
	metrics   *metrics.Aggregator
	logger    *logger.Logger

	now func() time.Time
}

// NewGate creates a publication gate. notifier may be nil.
func NewGate(
	store SignalStore,
	history HistoryStore,
	emitter Emitter,
	intervals IntervalSource,
	m *metrics.Aggregator,
	log *logger.Logger,
	dedupTTL time.Duration,
	notifier Broadcaster,
) *Gate {
	g := &Gate{
		active:    make(map[string]*entity.Signal),
		queues:    make(map[entity.SubscriptionTier][]*gateEntry),
		lastDrop:  make(map[entity.SubscriptionTier]time.Time),
		dedup:     gocache.New(dedupTTL, 2*dedupTTL),
		store:     store,
		history:   history,
		emitter:   emitter,
		notifier:  notifier,
		intervals: intervals,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "signal-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
	})
	return g
}

// Publish runs the gate for one admitted signal: de-duplication, per-tier
// scheduling, and the commit ladder. Returns PUBLISHED when at least one tier
// received the signal, DEFERRED when every tier is still inside its interval
// or persistence must be retried, REJECTED for duplicates.
func (g *Gate) Publish(ctx context.Context, signal *entity.Signal) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := dedupKey(signal)
	if _, found := g.dedup.Get(key); found {
		g.metrics.PublishingDeduplicated(ReasonDuplicate)
		return Reject(ReasonDuplicate)
	}
	g.dedup.Set(key, signal.ID, gocache.DefaultExpiration)

	entry := &gateEntry{signal: signal}
	for _, tier := range entity.SubscriptionTiers {
		g.queues[tier] = append(g.queues[tier], entry)
	}

	g.pump(ctx)

	switch {
	case entry.completed:
		return Decision{Outcome: OutcomePublished}
	case entry.started:
		g.metrics.PublishingDeferred()
		return Decision{Outcome: OutcomeDeferred, Reason: ReasonPersistRetry}
	default:
		g.metrics.PublishingDeferred()
		return Decision{Outcome: OutcomeDeferred, Reason: ReasonRateLimited}
	}
}

// Flush re-checks the per-tier queues, retries failed commits, and expires
// overdue signals. Driven by the engine's ticker.
func (g *Gate) Flush(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pump(ctx)
	g.sweepExpired(ctx)
}

// pump scans each subscription tier queue in FIFO order and delivers entries
// while the tier is due. Callers hold g.mu.
func (g *Gate) pump(ctx context.Context) {
	// The same entry sits in every tier queue; a failed commit is counted
	// once per pass, not once per tier.
	failed := make(map[*gateEntry]bool)
	for _, tier := range entity.SubscriptionTiers {
		queue := g.queues[tier]
		kept := queue[:0]
		for i, entry := range queue {
			now := g.now()
			if entry.signal.Expired(now) {
				g.dropExpired(ctx, entry)
				continue
			}
			if !g.tierDue(tier, now) {
				kept = append(kept, queue[i:]...)
				break
			}
			if !entry.completed && (failed[entry] || !g.commit(ctx, entry)) {
				// Persistence or emission failed; keep the entry at the
				// head and resume the ladder on the next flush.
				failed[entry] = true
				kept = append(kept, queue[i:]...)
				break
			}
			g.deliver(ctx, entry, tier, now)
		}
		for i := len(kept); i < len(queue); i++ {
			queue[i] = nil
		}
		g.queues[tier] = kept
	}
}

// commit runs the sequential publication ladder for one signal. Every step
// increments its counter only after all earlier ones have for this signal;
// on failure the entry's flags record how far it got.
func (g *Gate) commit(ctx context.Context, entry *gateEntry) bool {
	signal := entry.signal
	now := g.now()

	if !entry.started {
		g.metrics.PublishingStarted()
		entry.started = true
	}

	if !entry.added {
		signal.Status = entity.StatusActive
		signal.PublishedAt = sql.NullTime{Time: now, Valid: true}
		g.active[signal.ID] = signal
		g.metrics.SetActiveSignals(len(g.active))
		g.metrics.PublishingAddedToArray()
		entry.added = true
	}

	if !entry.persisted {
		if err := g.persist(ctx, signal); err != nil {
			g.logger.Error("Failed to persist published signal",
				logger.ErrorField(err), logger.Field("signal_id", signal.ID))
			g.metrics.PublishingFailed()
			return false
		}
		g.metrics.PublishingSavedToDB()
		entry.persisted = true

		g.recordHistory(ctx, signal, entity.OutcomePending, "")
	}

	if !entry.emitted {
		if err := g.emitter.Emit(ctx, common.RedisStreamSignalPublished, newPublishedEvent(signal, "")); err != nil {
			g.logger.Error("Failed to emit published signal event",
				logger.ErrorField(err), logger.Field("signal_id", signal.ID))
			g.metrics.PublishingFailed()
			return false
		}
		g.metrics.PublishingEventsEmitted()
		entry.emitted = true

		if g.notifier != nil {
			if err := g.notifier.NotifyPublished(signal); err != nil {
				g.logger.Warn("Failed to broadcast published signal",
					logger.ErrorField(err), logger.Field("signal_id", signal.ID))
			}
		}
	}

	if !entry.completed {
		g.metrics.PublishingComplete()
		entry.completed = true
	}
	return true
}

// deliver marks the tier's drop and emits the tier-tagged event. Setting the
// timestamp here, after a successful commit, is what enforces the interval:
// the next queue entry stops being due immediately.
func (g *Gate) deliver(ctx context.Context, entry *gateEntry, tier entity.SubscriptionTier, now time.Time) {
	g.lastDrop[tier] = now
	if err := g.emitter.Emit(ctx, common.RedisStreamSignalPublished, newPublishedEvent(entry.signal, tier)); err != nil {
		g.logger.Warn("Failed to emit tier delivery event",
			logger.ErrorField(err),
			logger.Field("signal_id", entry.signal.ID),
			logger.Field("tier", tier))
	}
}

func (g *Gate) tierDue(tier entity.SubscriptionTier, now time.Time) bool {
	last, ok := g.lastDrop[tier]
	if !ok || last.IsZero() {
		return true
	}
	return now.Sub(last) >= g.intervals.DropInterval(tier)
}

func (g *Gate) dropExpired(ctx context.Context, entry *gateEntry) {
	if entry.expiredCounted {
		return
	}
	entry.expiredCounted = true
	g.metrics.DeferredExpired(ReasonExpired)
	if !entry.added {
		// Never committed; record the terminal outcome so the signal does
		// not vanish without trace.
		entry.signal.Status = entity.StatusExpired
		g.recordHistory(ctx, entry.signal, entity.OutcomeExpired, ReasonExpired)
	}
}

// sweepExpired retires active signals whose expiry passed. Callers hold g.mu.
func (g *Gate) sweepExpired(ctx context.Context) {
	now := g.now()
	for id, signal := range g.active {
		if !signal.Expired(now) {
			continue
		}
		delete(g.active, id)
		signal.Status = entity.StatusExpired
		if err := g.store.UpdateStatus(ctx, id, entity.StatusExpired); err != nil {
			g.logger.Error("Failed to mark signal expired",
				logger.ErrorField(err), logger.Field("signal_id", id))
		}
		g.recordHistory(ctx, signal, entity.OutcomeExpired, ReasonExpired)
	}
	g.metrics.SetActiveSignals(len(g.active))
}

func (g *Gate) persist(ctx context.Context, signal *entity.Signal) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.store.Upsert(ctx, signal)
	})
	return err
}

func (g *Gate) recordHistory(ctx context.Context, signal *entity.Signal, outcome entity.SignalOutcome, reason string) {
	history := &entity.SignalHistory{
		SignalID:     signal.ID,
		StrategyName: signal.StrategyName,
		Outcome:      outcome,
		RecordedAt:   g.now(),
	}
	if reason != "" {
		history.Reason = sql.NullString{String: reason, Valid: true}
	}
	if err := g.history.Create(ctx, history); err != nil {
		g.logger.Error("Failed to record signal history",
			logger.ErrorField(err), logger.Field("signal_id", signal.ID))
	}
}

// ActiveSignals returns a copy of the active set.
func (g *Gate) ActiveSignals() []entity.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]entity.Signal, 0, len(g.active))
	for _, signal := range g.active {
		out = append(out, *signal)
	}
	return out
}

// TierStates returns the per-tier publication state for the control surface.
func (g *Gate) TierStates() map[entity.SubscriptionTier]TierStateView {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[entity.SubscriptionTier]TierStateView, len(entity.SubscriptionTiers))
	for _, tier := range entity.SubscriptionTiers {
		out[tier] = TierStateView{
			Interval:        g.intervals.DropInterval(tier),
			LastPublishedAt: g.lastDrop[tier],
		}
	}
	return out
}

// Restore reloads the active set from persisted state after a restart. The
// store, not in-memory counters, is the source of truth for committed
// signals.
func (g *Gate) Restore(signals []entity.Signal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range signals {
		signal := signals[i]
		g.active[signal.ID] = &signal
		g.dedup.Set(dedupKey(&signal), signal.ID, gocache.DefaultExpiration)
	}
	g.metrics.SetActiveSignals(len(g.active))
}

// Clear atomically empties the active set and the deferred queues. Cleared
// signals move through the normal lifecycle (status + history), and metrics
// are left untouched: clearing is a state transition, not a counter reset.
func (g *Gate) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cleared := g.active
	g.active = make(map[string]*entity.Signal)

	queued := make(map[string]*entity.Signal)
	for _, tier := range entity.SubscriptionTiers {
		for _, entry := range g.queues[tier] {
			if !entry.added {
				queued[entry.signal.ID] = entry.signal
			}
		}
		g.queues[tier] = nil
	}

	if err := g.store.UpdateStatuses(ctx, entity.StatusActive, entity.StatusCancelled); err != nil {
		g.logger.Error("Failed to cancel active signals in store", logger.ErrorField(err))
	}

	for _, signal := range cleared {
		signal.Status = entity.StatusCancelled
		g.recordHistory(ctx, signal, entity.OutcomeCancelled, "clear_all")
	}
	for _, signal := range queued {
		signal.Status = entity.StatusCancelled
		g.recordHistory(ctx, signal, entity.OutcomeCancelled, "clear_all")
	}

	g.metrics.SetActiveSignals(0)
	return nil
}

func newPublishedEvent(signal *entity.Signal, tier entity.SubscriptionTier) PublishedEvent {
	return PublishedEvent{
		SignalID:         signal.ID,
		Symbol:           signal.Symbol,
		Direction:        string(signal.Direction),
		StrategyName:     signal.StrategyName,
		Tier:             string(signal.Tier),
		Priority:         string(signal.Priority),
		EntryPrice:       signal.EntryPrice,
		StopLoss:         signal.StopLoss,
		Targets:          signal.Targets,
		WinProbability:   signal.WinProbability,
		SubscriptionTier: string(tier),
		PublishedAt:      signal.PublishedAt.Time,
	}
}

func dedupKey(signal *entity.Signal) string {
	return signal.Symbol + "|" + string(signal.Direction) + "|" + signal.StrategyName
}
