package notifier

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"opinion-radar/internal/model"
)

// EmailConfig 邮件配置。
type EmailConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
	From      string `yaml:"from" json:"from"`
	FromAlias string `yaml:"from_alias" json:"from_alias"`
}

// EmailMessage 表示一封邮件。
type EmailMessage struct {
	From    string
	Alias   string
	To      []string
	Subject string
	Body    string
}

// EmailSender 抽象发送接口，便于测试替换。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	data := buildEmailData(msg)
	return smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(data))
}

// EmailNotifier 把告警投递到目标邮箱；目标未配置邮箱时跳过。
type EmailNotifier struct {
	cfg    EmailConfig
	sender EmailSender
}

// NewEmailNotifier 创建 EmailNotifier。
func NewEmailNotifier(cfg EmailConfig, sender EmailSender) *EmailNotifier {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.FromAlias == "" {
		cfg.FromAlias = "舆情监控系统"
	}
	return &EmailNotifier{cfg: cfg, sender: sender}
}

// Notify 发送一封纯文本告警邮件。
func (n *EmailNotifier) Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error {
	if target.Email == "" {
		return nil
	}
	msg := EmailMessage{
		From:    n.cfg.From,
		Alias:   n.cfg.FromAlias,
		To:      []string{target.Email},
		Subject: subject,
		Body:    body,
	}
	return n.sender.Send(ctx, msg)
}

func buildEmailData(msg EmailMessage) string {
	from := msg.From
	if msg.Alias != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.Alias), msg.From)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
