// Package notify delivers pipeline failure alerts to stakeholders through
// an internal email relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// maxMessageLength bounds the error detail sent in a notification. Failure
// chains can embed whole response bodies; the relay rejects oversized payloads.
const maxMessageLength = 1000

// EmailNotifier sends one email per stakeholder through an HTTP email relay.
// It implements warden.Notifier. Per-recipient send failures are logged and
// do not prevent delivery to the remaining recipients.
type EmailNotifier struct {
	httpClient   *http.Client
	logger       *slog.Logger
	relayURL     string
	token        string
	sender       string
	stakeholders []string
}

// Config holds email notifier configuration
type Config struct {
	Logger *slog.Logger

	// RelayURL is the email relay's send endpoint
	RelayURL string
	// Token authenticates against the relay
	Token  string
	Sender string
	// Stakeholders are the recipient addresses, one send per address
	Stakeholders []string

	Timeout time.Duration
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg Config) *EmailNotifier {
	return &EmailNotifier{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		relayURL:     cfg.RelayURL,
		token:        cfg.Token,
		sender:       cfg.Sender,
		stakeholders: cfg.Stakeholders,
		logger:       cfg.Logger,
	}
}

// emailRequest is the relay's send payload
type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotifyFailure emails every stakeholder about a pipeline failure. The error
// detail is truncated to keep the payload within the relay's limits; the full
// error is already in the process logs.
func (n *EmailNotifier) NotifyFailure(ctx context.Context, failure error, job string, at time.Time) error {
	message := failure.Error()
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength]
	}

	subject := fmt.Sprintf("[log-warden] %s failed at %s", job, at.UTC().Format(time.RFC3339))
	body := fmt.Sprintf("The %s pipeline failed at %s.\n\nError: %s\n",
		job, at.UTC().Format(time.RFC3339), message)

	delivered := 0
	for _, recipient := range n.stakeholders {
		if err := n.send(ctx, recipient, subject, body); err != nil {
			n.logger.Error("failed to send failure notification",
				"recipient", recipient,
				"job", job,
				"error", err)
			continue
		}
		delivered++
	}

	n.logger.Info("failure notification sent",
		"job", job,
		"delivered", delivered,
		"stakeholders", len(n.stakeholders))

	if delivered == 0 && len(n.stakeholders) > 0 {
		return fmt.Errorf("failed to notify any of %d stakeholders", len(n.stakeholders))
	}
	return nil
}

func (n *EmailNotifier) send(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(emailRequest{
		From:    n.sender,
		To:      recipient,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.relayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned %s", resp.Status)
	}
	return nil
}

// NopNotifier discards notifications. Used when no relay is configured.
type NopNotifier struct {
	Logger *slog.Logger
}

// NotifyFailure logs the failure and drops it
func (n *NopNotifier) NotifyFailure(_ context.Context, failure error, job string, _ time.Time) error {
	if n.Logger != nil {
		n.Logger.Warn("notification relay not configured, dropping failure alert",
			"job", job,
			"error", failure)
	}
	return nil
}
