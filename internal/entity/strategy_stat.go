package entity

import "time"

// StrategyStat holds the historical performance of one strategy. WinRate is a
// percentage in [0,100] and feeds the quality filter's veto.
type StrategyStat struct {
	StrategyName string    `json:"strategy_name" gorm:"primaryKey"`
	Enabled      bool      `json:"enabled"`
	Wins         int64     `json:"wins"`
	Losses       int64     `json:"losses"`
	TotalSignals int64     `json:"total_signals"`
	WinRate      float64   `json:"win_rate"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (StrategyStat) TableName() string {
	return "strategy_stats"
}
