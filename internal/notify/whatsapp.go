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

// whatsAppClient delivers messages through a WhatsApp business API gateway.
type whatsAppClient struct {
	url    string
	token  string
	client *http.Client
	logger zerolog.Logger
}

// NewWhatsAppClient creates a new WhatsApp message client.
func NewWhatsAppClient(url, token string, timeout time.Duration, logger zerolog.Logger) Notifier {
	return &whatsAppClient{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "whatsapp-client").Logger(),
	}
}

// Notify sends a WhatsApp message to msg.Phone. Messages without a phone
// number (customer records hold emails only) are reported as not addressable
// so the dispatcher skips this channel instead of counting a failure.
// Title and body are collapsed into a single text message.
func (w *whatsAppClient) Notify(ctx context.Context, msg Message) error {
	if msg.Phone == "" {
		return ErrNotAddressable
	}

	text := msg.Title + "\n" + msg.Body
	if msg.URL != "" {
		text += "\n" + msg.URL
	}

	payload, err := json.Marshal(map[string]string{
		"to":   msg.Phone,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}

	return nil
}
