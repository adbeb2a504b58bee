package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SlackTransport posts notifications to an incoming-webhook URL. Webhooks
// ignore the recipient field; the channel is bound to the webhook itself.
type SlackTransport struct {
	webhookURL string
	client     *http.Client
}

func NewSlackTransport(webhookURL string, timeout time.Duration) *SlackTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackTransport{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (t *SlackTransport) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", n.Subject, n.Body),
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
