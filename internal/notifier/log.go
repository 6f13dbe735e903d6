package notifier

import (
	"context"

	"github.com/sirupsen/logrus"

	"opinion-radar/internal/model"
)

// LogNotifier 仅打印告警内容，开发阶段或渠道未配置时使用。
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier 创建日志通知器。
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logrus.WithField("component", "notify")}
}

// Notify 打印主题与正文。
func (n *LogNotifier) Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error {
	n.log.Infof("alert: %s\n%s", subject, body)
	return nil
}
