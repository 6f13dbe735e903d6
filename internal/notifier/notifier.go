package notifier

import (
	"context"

	"opinion-radar/internal/model"
)

// Notifier 把一条告警投递到目标描述的渠道。
// 投递是 fire-and-forget：失败由实现记录日志并返回错误，调用方不重试。
type Notifier interface {
	Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error
}
