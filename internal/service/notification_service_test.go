package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type mockMailSender struct {
	sent []*gomail.Message
	err  error
}

func (m *mockMailSender) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

func TestMailNotifier(t *testing.T) {
	cfg := MailConfig{IsEnable: true, Host: "smtp.local", Port: 587, From: "backup@local", To: []string{"ops@local"}}
	sender := &mockMailSender{}
	n := NewMailNotifier(cfg, zap.NewNop())
	n.sender = sender

	r := n.SendBackupNotification(context.Background(), 7, "Backup succeeded: nightly", "ok", "<pre>ok</pre>")
	assert.True(t, r.Success)
	if assert.Len(t, sender.sent, 1) {
		assert.Equal(t, []string{"Backup succeeded: nightly"}, sender.sent[0].GetHeader("Subject"))
		assert.Equal(t, []string{"ops@local"}, sender.sent[0].GetHeader("To"))
	}

	sender.err = errors.New("smtp down")
	r = n.SendBackupNotification(context.Background(), 7, "s", "t", "")
	assert.False(t, r.Success)
	assert.Equal(t, "smtp down", r.Error)
}

func TestNewNotifierDisabled(t *testing.T) {
	n := NewNotifier(MailConfig{}, zap.NewNop())
	_, ok := n.(NopNotifier)
	assert.True(t, ok)
	assert.True(t, n.SendBackupNotification(context.Background(), 1, "s", "t", "h").Success)
}
