package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookNotifier posts notifications as JSON to an incoming webhook.
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier with the given URL. An empty
// URL yields a notifier that always returns ErrNotConfigured.
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// webhookPayload is the wire shape posted to the hook.
type webhookPayload struct {
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Level    string            `json:"level"`
	TaskID   string            `json:"task_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (n *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	if n.webhookURL == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(webhookPayload{
		Title:    notification.Title,
		Message:  notification.Message,
		Level:    string(notification.Level),
		TaskID:   notification.TaskID,
		Metadata: notification.Metadata,
	})
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
