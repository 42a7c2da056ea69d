package entity

import (
	"time"

	"gorm.io/datatypes"
)

// EngineSetting is a persisted key/value pair backing the runtime policy
// store, so operator-tuned thresholds survive a restart.
type EngineSetting struct {
	Key       string         `json:"key" gorm:"primaryKey"`
	Value     datatypes.JSON `json:"value" gorm:"type:jsonb"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (EngineSetting) TableName() string {
	return "engine_settings"
}
