package services

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/launchpad/launch"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func relayWithCapture(cfg SMTPConfig, mode MailMode) (*MailRelay, *[]capturedMail) {
	var sent []capturedMail
	r := NewMailRelay(cfg, mode, "test@example.com", nil)
	r.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return r, &sent
}

var fullSMTP = SMTPConfig{Host: "smtp.example.com", Port: "587", Username: "bot@example.com", Password: "secret"}

func TestMailRelay_TestModeRedirects(t *testing.T) {
	r, sent := relayWithCapture(fullSMTP, MailTest)

	require.NoError(t, r.Send(context.Background(), Mail{To: "priya@example.com", Subject: "Hi", Message: "Body"}))

	require.Len(t, *sent, 1)
	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "bot@example.com", got.from)
	assert.Equal(t, []string{"test@example.com"}, got.to)
	assert.Contains(t, got.msg, "To: test@example.com\r\n")
	assert.Contains(t, got.msg, "Content-Type: text/html")
	assert.Contains(t, got.msg, "<p>Body</p>")
}

func TestMailRelay_LiveModeKeepsRecipient(t *testing.T) {
	cfg := fullSMTP
	cfg.From = "launchpad@example.com"
	r, sent := relayWithCapture(cfg, MailLive)

	require.NoError(t, r.Send(context.Background(), Mail{To: "priya@example.com", Subject: "Hi"}))
	assert.Equal(t, []string{"priya@example.com"}, (*sent)[0].to)
	assert.Equal(t, "launchpad@example.com", (*sent)[0].from)
}

func TestMailRelay_SimulatesWithoutHost(t *testing.T) {
	r, sent := relayWithCapture(SMTPConfig{}, MailLive)

	require.NoError(t, r.Send(context.Background(), Mail{To: "priya@example.com", Subject: "Hi"}))
	assert.Empty(t, *sent)
}

func TestMailRelay_Errors(t *testing.T) {
	r, _ := relayWithCapture(SMTPConfig{Host: "smtp.example.com"}, MailLive)
	assert.EqualError(t, r.Send(context.Background(), Mail{To: "a@example.com", Subject: "Hi"}), "SMTP not fully configured")
	assert.Error(t, r.Send(context.Background(), Mail{Subject: "Hi"}))
	assert.Error(t, r.Send(context.Background(), Mail{To: "a@example.com"}))

	r, _ = relayWithCapture(fullSMTP, MailLive)
	r.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	err := r.Send(context.Background(), Mail{To: "a@example.com", Subject: "Hi"})
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Send(ctx, Mail{To: "a@example.com", Subject: "Hi"}), context.Canceled)
}

func TestMailRelay_RefusesHeaderLineBreaks(t *testing.T) {
	r, sent := relayWithCapture(fullSMTP, MailLive)

	err := r.Send(context.Background(), Mail{To: "priya@example.com", Subject: "Ship\r\nBcc: someone@example.com"})
	assert.Error(t, err)
	err = r.Send(context.Background(), Mail{To: "priya@example.com\r\nBcc: someone@example.com", Subject: "Hi"})
	assert.Error(t, err)

	// Stored tasks that predate name validation still cannot inject headers.
	alert := launch.Alert{
		ID:             "a1",
		TaskName:       "Ship\r\nBcc: someone@example.com",
		Department:     launch.DepartmentDesign,
		RecipientEmail: "priya@example.com",
	}
	err = NewDispatcher(r, nil).Notify(context.Background(), alert)
	assert.ErrorIs(t, err, launch.ErrNotification)

	assert.Empty(t, *sent)
}

func TestMailRelay_EncodesSubject(t *testing.T) {
	r, sent := relayWithCapture(fullSMTP, MailLive)

	require.NoError(t, r.Send(context.Background(), Mail{To: "priya@example.com", Subject: "[DELAY] Task Overdue: Café"}))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, (*sent)[0].msg, "Café")
}
