package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MailResponse is the body the mail endpoint answers with.
type MailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HTTPMailer posts mail to a remote send-email endpoint.
type HTTPMailer struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPMailer targets endpoint. A nil client gets a 10 second timeout.
func NewHTTPMailer(endpoint string, client *http.Client) *HTTPMailer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPMailer{endpoint: endpoint, client: client}
}

// WithBearer sends token as the Authorization bearer on every request.
func (m *HTTPMailer) WithBearer(token string) *HTTPMailer {
	m.token = token
	return m
}

// Send fails on a non-2xx status, an unreadable body or success=false.
func (m *HTTPMailer) Send(ctx context.Context, mail Mail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("failed to marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	var result MailResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && result.Message != "" {
			return fmt.Errorf("mail endpoint returned %d: %s", resp.StatusCode, result.Message)
		}
		return fmt.Errorf("mail endpoint returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode mail response: %w", decodeErr)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Errorf("mail endpoint rejected message: %s", msg)
	}
	return nil
}
