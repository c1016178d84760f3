package pricing

import (
	"fmt"

	"bid-broker/internal/model"

	"github.com/shopspring/decimal"
)

// FOBCostJpy is the fixed freight-forwarding surcharge added to every quote.
const FOBCostJpy = 1350

var (
	marginDivisor = decimal.RequireFromString("0.8")
	ten           = decimal.NewFromInt(10)
)

// Quote computes the USD counter-offer price for a listing:
// listing price plus shipping plus the FOB surcharge, a 20% margin embedded
// in the divisor, converted at the given USD→JPY rate and rounded UP to the
// nearest $10. Rounding direction matters; the quoted price must never fall
// below the raw converted price.
func Quote(productPriceJpy, shippingCostJpy int64, usdJpyRate float64) (float64, error) {
	if productPriceJpy < 0 {
		return 0, fmt.Errorf("product price must not be negative, got %d", productPriceJpy)
	}
	if shippingCostJpy < 0 {
		return 0, fmt.Errorf("shipping cost must not be negative, got %d", shippingCostJpy)
	}
	if usdJpyRate <= 0 {
		return 0, fmt.Errorf("exchange rate must be positive, got %v", usdJpyRate)
	}

	totalJpy := decimal.NewFromInt(productPriceJpy + shippingCostJpy + FOBCostJpy)
	withMargin := totalJpy.Div(marginDivisor)
	usd := withMargin.Div(decimal.NewFromFloat(usdJpyRate))
	rounded := usd.Div(ten).Ceil().Mul(ten)

	result, _ := rounded.Float64()
	return result, nil
}

// FinalPrice resolves the price a won auction settles at.
//
// When the customer accepted the admin's counter-offer
// (customerCounterOfferUsed) the admin's number prevails even if the customer
// had previously proposed one of their own. Otherwise the customer's latest
// proposal wins, falling back to the admin's counter and finally the original
// maximum bid.
func FinalPrice(b *model.BidRequest) float64 {
	if b.CustomerCounterOfferUsed {
		if b.CounterOffer != nil {
			return *b.CounterOffer
		}
		return b.MaxBid
	}
	if b.CustomerCounterOffer != nil {
		return *b.CustomerCounterOffer
	}
	if b.CounterOffer != nil {
		return *b.CounterOffer
	}
	return b.MaxBid
}
