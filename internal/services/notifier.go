package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsweep/opsweep/internal/pkg/logger"
)

// Notifier delivers end-of-run summaries to an external sink. Delivery
// failures never fail the run; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// SlackNotifier posts run summaries to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *logger.Logger
}

// NewSlackNotifier creates a Slack notifier for the given webhook URL.
func NewSlackNotifier(webhookURL string, log *logger.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     log,
	}
}

// Notify posts one message to the webhook.
func (n *SlackNotifier) Notify(ctx context.Context, subject, body string) error {
	payload := map[string]string{
		"text": fmt.Sprintf("*%s*\n```%s```", subject, body),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopNotifier is used when no sink is configured.
type NoopNotifier struct{}

// Notify discards the message.
func (NoopNotifier) Notify(ctx context.Context, subject, body string) error {
	return nil
}
