package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// NotificationResult 通知发送结果
type NotificationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Notifier sends backup outcome notifications. Implementations never return errors;
// failures are reported in the result and must not affect the backup outcome.
// Notifier 备份结果通知
type Notifier interface {
	SendBackupNotification(ctx context.Context, userID int64, subject, text, html string) *NotificationResult
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) SendBackupNotification(context.Context, int64, string, string, string) *NotificationResult {
	return &NotificationResult{Success: true}
}

// MailConfig SMTP 配置
type MailConfig struct {
	IsEnable bool     `yaml:"is-enable"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port" default:"587"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	SSL      bool     `yaml:"ssl"`
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier delivers notifications over SMTP to the configured recipients.
type MailNotifier struct {
	config MailConfig
	sender mailSender
	logger *zap.Logger
}

// NewMailNotifier 创建 SMTP 通知器
func NewMailNotifier(c MailConfig, logger *zap.Logger) *MailNotifier {
	d := gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	d.SSL = c.SSL
	return &MailNotifier{config: c, sender: d, logger: logger}
}

// NewNotifier returns a MailNotifier when mail is enabled, otherwise a no-op.
func NewNotifier(c MailConfig, logger *zap.Logger) Notifier {
	if !c.IsEnable || c.Host == "" || len(c.To) == 0 {
		return NopNotifier{}
	}
	return NewMailNotifier(c, logger)
}

func (n *MailNotifier) SendBackupNotification(ctx context.Context, userID int64, subject, text, html string) *NotificationResult {
	if err := ctx.Err(); err != nil {
		return &NotificationResult{Error: err.Error()}
	}

	m := gomail.NewMessage()
	from := n.config.From
	if from == "" {
		from = n.config.Username
	}
	m.SetHeader("From", from)
	m.SetHeader("To", n.config.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	if html != "" {
		m.AddAlternative("text/html", html)
	}

	if err := n.sender.DialAndSend(m); err != nil {
		n.logger.Warn("send backup notification failed",
			zap.Int64("uid", userID),
			zap.String("to", strings.Join(n.config.To, ",")),
			zap.Error(err))
		return &NotificationResult{Error: err.Error()}
	}
	return &NotificationResult{Success: true}
}
