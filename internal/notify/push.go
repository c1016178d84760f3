package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// pushClient delivers push notifications through the push gateway's HTTP API.
type pushClient struct {
	url    string
	apiKey string
	client *http.Client
	logger zerolog.Logger
}

// NewPushClient creates a new push notification client.
func NewPushClient(url, apiKey string, timeout time.Duration, logger zerolog.Logger) Notifier {
	return &pushClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "push-client").Logger(),
	}
}

// Notify sends a push notification addressed by the recipient's email.
func (p *pushClient) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"email": msg.Recipient,
		"title": msg.Title,
		"body":  msg.Body,
		"url":   msg.URL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	return nil
}
