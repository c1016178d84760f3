package pricing

import (
	"math"
	"testing"

	"bid-broker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		shipping int64
		rate     float64
		want     float64
	}{
		{
			name:     "typical listing",
			price:    50000,
			shipping: 2000,
			rate:     150,
			want:     450,
		},
		{
			name:     "smaller listing",
			price:    30000,
			shipping: 1000,
			rate:     150,
			want:     270, // (30000+1000+1350)/0.8/150 = 269.58
		},
		{
			name:     "free shipping",
			price:    10000,
			shipping: 0,
			rate:     150,
			want:     100,
		},
		{
			name:     "exact multiple stays put",
			price:    46650, // (46650+1350)/0.8/150 = 400
			shipping: 0,
			rate:     150,
			want:     400,
		},
		{
			name:     "one yen over an exact multiple rounds up",
			price:    46651,
			shipping: 0,
			rate:     150,
			want:     410,
		},
		{
			name:     "zero price still carries the surcharge",
			price:    0,
			shipping: 0,
			rate:     150,
			want:     20, // 1350/0.8/150 = 11.25
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quote(tt.price, tt.shipping, tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuote_InvalidInput(t *testing.T) {
	_, err := Quote(-1, 0, 150)
	assert.Error(t, err)

	_, err = Quote(1000, -1, 150)
	assert.Error(t, err)

	_, err = Quote(1000, 0, 0)
	assert.Error(t, err)

	_, err = Quote(1000, 0, -150)
	assert.Error(t, err)
}

// Every quote must be a positive multiple of $10 and must never round below
// the raw converted price.
func TestQuote_RoundingProperties(t *testing.T) {
	rates := []float64{110, 135.5, 150, 162.25}
	prices := []int64{0, 1, 999, 10000, 31337, 50000, 123456, 2500000}
	shippings := []int64{0, 150, 2000, 9999}

	for _, rate := range rates {
		for _, price := range prices {
			for _, shipping := range shippings {
				got, err := Quote(price, shipping, rate)
				require.NoError(t, err)

				assert.Greater(t, got, 0.0)
				assert.Zero(t, math.Mod(got, 10), "quote %v is not a multiple of 10", got)

				raw := float64(price+shipping+FOBCostJpy) / 0.8 / rate
				assert.GreaterOrEqual(t, got, raw, "quote %v rounded below raw price %v", got, raw)
				assert.Less(t, got-raw, 10.0, "quote %v overshoots raw price %v", got, raw)
			}
		}
	}
}

func TestFinalPrice(t *testing.T) {
	counter := 500.0
	customerCounter := 480.0

	tests := []struct {
		name string
		req  model.BidRequest
		want float64
	}{
		{
			name: "accepted admin counter prevails over customer proposal",
			req: model.BidRequest{
				MaxBid:                   450,
				CounterOffer:             &counter,
				CustomerCounterOffer:     &customerCounter,
				CustomerCounterOfferUsed: true,
			},
			want: 500,
		},
		{
			name: "accepted counter without a customer proposal",
			req: model.BidRequest{
				MaxBid:                   450,
				CounterOffer:             &counter,
				CustomerCounterOfferUsed: true,
			},
			want: 500,
		},
		{
			name: "accepted flag without a counter falls back to max bid",
			req: model.BidRequest{
				MaxBid:                   450,
				CustomerCounterOfferUsed: true,
			},
			want: 450,
		},
		{
			name: "pending customer proposal wins",
			req: model.BidRequest{
				MaxBid:               450,
				CounterOffer:         &counter,
				CustomerCounterOffer: &customerCounter,
			},
			want: 480,
		},
		{
			name: "admin counter without customer response",
			req: model.BidRequest{
				MaxBid:       450,
				CounterOffer: &counter,
			},
			want: 500,
		},
		{
			name: "plain approval settles at max bid",
			req: model.BidRequest{
				MaxBid: 450,
			},
			want: 450,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalPrice(&tt.req))
		})
	}
}
