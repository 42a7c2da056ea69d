package entity

import (
	"database/sql"
	"time"
)

// SignalOutcome is the terminal (or pending) result recorded for a signal.
type SignalOutcome string

const (
	OutcomePending   SignalOutcome = "PENDING"
	OutcomeRejected  SignalOutcome = "REJECTED"
	OutcomeCancelled SignalOutcome = "CANCELLED"
	OutcomeExpired   SignalOutcome = "EXPIRED"
	OutcomeWin       SignalOutcome = "WIN"
	OutcomeLoss      SignalOutcome = "LOSS"
)

type SignalHistory struct {
	ID           int64          `json:"id"`
	SignalID     string         `json:"signal_id"`
	StrategyName string         `json:"strategy_name"`
	Outcome      SignalOutcome  `json:"outcome"`
	Reason       sql.NullString `json:"reason"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

func (SignalHistory) TableName() string {
	return "signal_history"
}
