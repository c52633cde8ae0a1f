package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
)

// MailMode selects where outbound mail really goes.
type MailMode string

const (
	// MailLive delivers to the addressed recipient.
	MailLive MailMode = "live"
	// MailTest delivers every message to a fixed test address.
	MailTest MailMode = "test"
)

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Configured reports whether enough is set to talk to a server.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port != "" && c.Username != "" && c.Password != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailRelay is the mail boundary: it applies the test-mode redirect and
// hands the message to SMTP. Without SMTP settings it logs the message and
// reports success.
type MailRelay struct {
	smtp          SMTPConfig
	mode          MailMode
	testRecipient string
	logger        *slog.Logger
	sendMail      sendMailFunc
}

func NewMailRelay(cfg SMTPConfig, mode MailMode, testRecipient string, logger *slog.Logger) *MailRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailRelay{
		smtp:          cfg,
		mode:          mode,
		testRecipient: testRecipient,
		logger:        logger,
		sendMail:      smtp.SendMail,
	}
}

// Recipient is where a message addressed to "to" is really delivered.
func (r *MailRelay) Recipient(to string) string {
	if r.mode == MailTest && r.testRecipient != "" {
		return r.testRecipient
	}
	return to
}

// Send delivers m.
func (r *MailRelay) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.To == "" || m.Subject == "" {
		return errors.New("recipient and subject are required")
	}

	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("recipient and subject must not contain line breaks")
	}

	to := r.Recipient(m.To)

	if r.smtp.Host == "" {
		r.logger.Info("simulating email send", slog.String("to", to), slog.String("subject", m.Subject))
		return nil
	}
	if !r.smtp.Configured() {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", r.smtp.Username, r.smtp.Password, r.smtp.Host)

	from := r.smtp.From
	if from == "" {
		from = r.smtp.Username
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&msg, "<p>%s</p>\r\n", m.Message)

	addr := fmt.Sprintf("%s:%s", r.smtp.Host, r.smtp.Port)
	if err := r.sendMail(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	r.logger.Info("email sent", slog.String("to", to), slog.String("subject", m.Subject))
	return nil
}
