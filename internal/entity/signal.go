package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SignalDirection is the trade direction of a signal.
type SignalDirection string

const (
	DirectionLong  SignalDirection = "LONG"
	DirectionShort SignalDirection = "SHORT"
)

// SignalTier is the quality tier assigned by the classifier.
type SignalTier string

const (
	TierHigh   SignalTier = "HIGH"
	TierMedium SignalTier = "MEDIUM"
	TierLow    SignalTier = "LOW"
)

// SignalPriority is the urgency label attached after tier gating.
type SignalPriority string

const (
	PriorityHigh   SignalPriority = "HIGH"
	PriorityMedium SignalPriority = "MEDIUM"
)

// SignalStatus tracks a signal through its lifecycle.
type SignalStatus string

const (
	StatusActive    SignalStatus = "ACTIVE"
	StatusRejected  SignalStatus = "REJECTED"
	StatusCancelled SignalStatus = "CANCELLED"
	StatusExpired   SignalStatus = "EXPIRED"
	StatusClosed    SignalStatus = "CLOSED"
)

// MarketRegime is a market-condition label used to gate strategy applicability.
type MarketRegime string

const (
	RegimeAuto         MarketRegime = "AUTO"
	RegimeTrendingUp   MarketRegime = "TRENDING_UP"
	RegimeTrendingDown MarketRegime = "TRENDING_DOWN"
	RegimeSideways     MarketRegime = "SIDEWAYS"
	RegimeVolatile     MarketRegime = "VOLATILE"
)

// SubscriptionTier is a subscriber plan with its own publication cadence.
type SubscriptionTier string

const (
	SubscriptionFree SubscriptionTier = "FREE"
	SubscriptionPro  SubscriptionTier = "PRO"
	SubscriptionMax  SubscriptionTier = "MAX"
)

// SubscriptionTiers lists all plans in delivery order, fastest cadence first.
var SubscriptionTiers = []SubscriptionTier{SubscriptionMax, SubscriptionPro, SubscriptionFree}

type Signal struct {
	ID               string                      `json:"id" gorm:"primaryKey"`
	Symbol           string                      `json:"symbol"`
	Direction        SignalDirection             `json:"direction"`
	StrategyName     string                      `json:"strategy_name"`
	EntryPrice       float64                     `json:"entry_price"`
	StopLoss         float64                     `json:"stop_loss"`
	Targets          datatypes.JSONSlice[float64] `json:"targets" gorm:"type:jsonb"`
	Confidence       float64                     `json:"confidence"`
	Agreement        float64                     `json:"agreement"`
	QualityScore     float64                     `json:"quality_score"`
	WinProbability   float64                     `json:"win_probability"`
	Tier             SignalTier                  `json:"tier"`
	Priority         SignalPriority              `json:"priority"`
	Status           SignalStatus                `json:"status"`
	RegimeAtCreation MarketRegime                `json:"regime_at_creation"`
	CreatedAt        time.Time                   `json:"created_at"`
	PublishedAt      sql.NullTime                `json:"published_at"`
	ExpiresAt        sql.NullTime                `json:"expires_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
	DeletedAt        gorm.DeletedAt              `json:"deleted_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// Expired reports whether the signal's expiry has passed at the given time.
func (s *Signal) Expired(now time.Time) bool {
	return s.ExpiresAt.Valid && now.After(s.ExpiresAt.Time)
}
