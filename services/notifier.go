package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/CrowderSoup/launchpad/launch"
)

// Mail is one outbound message. Message is HTML.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Mailer delivers mail or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// AlertSubject is the subject line of an overdue notification.
func AlertSubject(a launch.Alert) string {
	return fmt.Sprintf("[DELAY] Task Overdue: %s", a.TaskName)
}

// AlertBody is the HTML body of an overdue notification.
func AlertBody(a launch.Alert) string {
	return fmt.Sprintf("This is an automated notification from LaunchPad. The following task is overdue: "+
		"<strong>%s</strong> assigned to the <strong>%s</strong> department. "+
		"This may affect the project timeline.",
		html.EscapeString(a.TaskName), html.EscapeString(string(a.Department)))
}

// Dispatcher emails the assignee of an overdue task. Every call sends; there
// is no retry and no record of earlier sends.
type Dispatcher struct {
	mailer Mailer
	logger *slog.Logger
}

func NewDispatcher(mailer Mailer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{mailer: mailer, logger: logger}
}

// Notify sends the overdue mail for alert to its recipient.
func (d *Dispatcher) Notify(ctx context.Context, alert launch.Alert) error {
	if alert.RecipientEmail == "" {
		return fmt.Errorf("%w: alert %s has no recipient", launch.ErrNotification, alert.ID)
	}

	err := d.mailer.Send(ctx, Mail{
		To:      alert.RecipientEmail,
		Subject: AlertSubject(alert),
		Message: AlertBody(alert),
	})
	if err != nil {
		d.logger.Error("overdue notification failed",
			slog.String("task", alert.TaskName),
			slog.String("to", alert.RecipientEmail),
			slog.String("error", err.Error()))
		if errors.Is(err, launch.ErrNotification) {
			return err
		}
		return fmt.Errorf("%w: %w", launch.ErrNotification, err)
	}

	d.logger.Info("overdue notification sent", slog.String("task", alert.TaskName), slog.String("to", alert.RecipientEmail))
	return nil
}
