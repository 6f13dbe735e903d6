package notifier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"opinion-radar/internal/model"
)

// Dispatcher 按通知目标配置的渠道逐一投递：邮箱走邮件、chat id 走
// Telegram，两者都未配置时退回 fallback（一般是日志通知器）。
// 单一渠道失败不阻断其他渠道，所有错误合并返回。
type Dispatcher struct {
	email    Notifier
	telegram Notifier
	fallback Notifier
	log      *logrus.Entry
}

// NewDispatcher 创建分发器；任一渠道可为 nil。
func NewDispatcher(email, telegram, fallback Notifier) *Dispatcher {
	return &Dispatcher{
		email:    email,
		telegram: telegram,
		fallback: fallback,
		log:      logrus.WithField("component", "notify-dispatch"),
	}
}

// Notify 投递到目标的全部已配置渠道。
func (d *Dispatcher) Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error {
	delivered := false
	var firstErr error

	if target.Email != "" && d.email != nil {
		delivered = true
		if err := d.email.Notify(ctx, target, subject, body); err != nil {
			d.log.WithError(err).Warnf("email delivery to %s failed", target.Email)
			firstErr = fmt.Errorf("email: %w", err)
		}
	}

	if target.TelegramChatID != 0 && d.telegram != nil {
		delivered = true
		if err := d.telegram.Notify(ctx, target, subject, body); err != nil {
			d.log.WithError(err).Warnf("telegram delivery to %d failed", target.TelegramChatID)
			if firstErr == nil {
				firstErr = fmt.Errorf("telegram: %w", err)
			}
		}
	}

	if !delivered && d.fallback != nil {
		return d.fallback.Notify(ctx, target, subject, body)
	}
	return firstErr
}
