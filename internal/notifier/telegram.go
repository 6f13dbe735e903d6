package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"opinion-radar/internal/model"
)

// TelegramConfig 机器人配置。
type TelegramConfig struct {
	Token string `yaml:"token" json:"token"`
}

// telegramAPI 抽象 Bot 发送接口，便于测试替换。
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier 把告警推送到目标 chat；目标未配置 chat id 时跳过。
type TelegramNotifier struct {
	bot telegramAPI
}

// NewTelegramNotifier 创建通知器，token 无效时返回错误。
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

// Notify 发送一条文本消息。
func (n *TelegramNotifier) Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error {
	if target.TelegramChatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(target.TelegramChatID, subject+"\n\n"+body)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
