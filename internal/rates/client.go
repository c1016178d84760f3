package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Provider supplies the current USD→JPY exchange rate.
type Provider interface {
	USDJPY(ctx context.Context) (float64, error)
}

// client fetches rates from an exchange-rate HTTP API.
type client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new exchange-rate client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) Provider {
	return &client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "rates-client").Logger(),
	}
}

// USDJPY fetches the current USD→JPY rate.
func (c *client) USDJPY(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/latest?base=USD&symbols=JPY", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("exchange-rate request failed")
		return 0, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("exchange-rate service returned non-OK status")
		return 0, fmt.Errorf("exchange-rate service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode exchange-rate response: %w", err)
	}

	rate, ok := payload.Rates["JPY"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchange-rate response missing a usable JPY rate")
	}

	c.logger.Debug().Float64("usd_jpy", rate).Msg("fetched exchange rate")

	return rate, nil
}
