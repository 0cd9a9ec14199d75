package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookBroadcaster posts alerts as JSON to a generic HTTP endpoint.
type WebhookBroadcaster struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
}

var _ Broadcaster = (*WebhookBroadcaster)(nil)

// NewWebhookBroadcaster creates a generic webhook broadcaster.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookBroadcaster(url, secret string) *WebhookBroadcaster {
	return &WebhookBroadcaster{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

func (w *WebhookBroadcaster) Name() string { return "webhook" }

func (w *WebhookBroadcaster) Broadcast(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Event:     "budget_threshold_exceeded",
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Alert:     alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Azure-Budget-Guardian/1.0")

	if w.secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+computeHMAC(body, []byte(w.secret)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Alert     Alert  `json:"alert"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
