package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot captures an auction listing at the moment a bid request is
// created. The negotiation engine never re-reads the live listing.
type Snapshot struct {
	ProductID       string     `json:"productId"`
	Title           string     `json:"title"`
	PriceJpy        int64      `json:"price"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Image           string     `json:"image"`
	ShippingCostJpy *int64     `json:"shippingCost,omitempty"`
}

// Client fetches listing snapshots from the scraper service.
type Client interface {
	Fetch(ctx context.Context, listingURL string) (*Snapshot, error)
}

// httpClient is an HTTP-backed snapshot client with a bounded timeout so a
// slow scrape cannot stall the bid-creation path.
type httpClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient creates a new snapshot client against the scraper service.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) Client {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "listing-client").Logger(),
	}
}

// Fetch retrieves a snapshot of the listing behind listingURL.
func (c *httpClient) Fetch(ctx context.Context, listingURL string) (*Snapshot, error) {
	endpoint := fmt.Sprintf("%s/scrape?url=%s", c.baseURL, url.QueryEscape(listingURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("listing_url", listingURL).Msg("scrape request failed")
		return nil, fmt.Errorf("failed to fetch listing snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("listing_url", listingURL).
			Msg("scraper returned non-OK status")
		return nil, fmt.Errorf("scraper returned status %d", resp.StatusCode)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode listing snapshot: %w", err)
	}

	if snapshot.Title == "" || snapshot.PriceJpy <= 0 {
		return nil, fmt.Errorf("scraper returned an incomplete snapshot for %s", listingURL)
	}

	c.logger.Debug().
		Str("product_id", snapshot.ProductID).
		Int64("price_jpy", snapshot.PriceJpy).
		Msg("fetched listing snapshot")

	return &snapshot, nil
}
