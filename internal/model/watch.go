package model

// NotifyTarget 描述通知目的地，邮件与 Telegram 可同时配置。
type NotifyTarget struct {
	Email          string `json:"email,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Watch 表示一条舆情订阅定义。IntervalSeconds 是两次运行的最小间隔，
// 阈值为 nil 表示未配置，LastRun 为上次成功运行的 epoch 秒（0 为从未运行）。
type Watch struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	Keyword           string       `json:"keyword"`
	Platform          string       `json:"platform"`
	MaxCount          int          `json:"max_count"`
	IntervalSeconds   int64        `json:"interval_seconds"`
	PositiveThreshold *int         `json:"positive_threshold,omitempty"`
	NegativeThreshold *int         `json:"negative_threshold,omitempty"`
	Notify            NotifyTarget `json:"notify"`
	Enabled           bool         `json:"enabled"`
	LastRun           int64        `json:"last_run"`
	CreatedAt         int64        `json:"created_at"`
	UpdatedAt         int64        `json:"updated_at"`
}

// RunSummary 是一次订阅执行的结构化结果。
// OK=false 表示运行前置失败；OK=true 且 Total=0 表示本次无可用数据。
type RunSummary struct {
	OK        bool     `json:"ok"`
	Triggered bool     `json:"triggered"`
	Message   string   `json:"msg,omitempty"`
	Keyword   string   `json:"keyword,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	Total     int      `json:"total"`
	Valid     int      `json:"valid"`
	Positive  int      `json:"positive"`
	Negative  int      `json:"negative"`
	Reasons   []string `json:"reasons,omitempty"`
}
