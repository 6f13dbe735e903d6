package model

import (
	"time"

	"gorm.io/datatypes"
)

// 运行状态。
const (
	HistoryStatusCompleted = "completed"
	HistoryStatusFailed    = "failed"
)

// RunHistory 记录一次抓取/订阅运行的结果，由 GORM 持久化。
type RunHistory struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      string            `gorm:"index" json:"user_id"`
	Keyword     string            `json:"keyword"`
	Platform    string            `json:"platform"`
	Trigger     string            `json:"trigger"`
	ResultCount int               `json:"result_count"`
	Status      string            `json:"status"`
	Detail      datatypes.JSONMap `json:"detail"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
