package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/CrowderSoup/launchpad/services"
)

// MailHandler exposes the mail boundary as the send-email endpoint.
type MailHandler struct {
	mailer services.Mailer
	logger *slog.Logger
}

func NewMailHandler(mailer services.Mailer, logger *slog.Logger) *MailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailHandler{mailer: mailer, logger: logger}
}

// SendEmail accepts {to, subject, message} and answers {success, message}.
func (h *MailHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var m services.Mail
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, services.MailResponse{Success: false, Message: "Invalid request format"})
		return
	}
	if m.To == "" || m.Subject == "" {
		writeJSON(w, http.StatusBadRequest, services.MailResponse{Success: false, Message: "Recipient and subject are required"})
		return
	}

	if err := h.mailer.Send(r.Context(), m); err != nil {
		h.logger.Error("email sending failed", slog.String("to", m.To), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, services.MailResponse{Success: false, Message: "Failed to send email"})
		return
	}

	writeJSON(w, http.StatusOK, services.MailResponse{Success: true, Message: "Email sent successfully"})
}
