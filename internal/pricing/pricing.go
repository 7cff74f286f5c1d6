// Package pricing computes order amounts in integer minor units (cents).
// Keeping money integral avoids the rounding drift a float subtotal would
// accumulate across tax and shipping.
package pricing

// Rules are the business constants applied to every quote. They are loaded
// from configuration once at startup; order creation and cart totals share
// the same value.
type Rules struct {
	TaxRatePercent             int64
	FlatShippingCents          int64
	FreeShippingThresholdCents int64
}

// DefaultRules mirrors the configuration defaults: 10% tax, $10 flat
// shipping, free shipping above $100.
var DefaultRules = Rules{
	TaxRatePercent:             10,
	FlatShippingCents:          1000,
	FreeShippingThresholdCents: 10000,
}

// Quote is the full cost breakdown for a set of line items.
type Quote struct {
	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	ShippingCents int64 `json:"shippingCents"`
	TotalCents    int64 `json:"totalCents"`
}

// Tax applies the percentage rate with half-up rounding on the cent.
func (r Rules) Tax(subtotalCents int64) int64 {
	if subtotalCents <= 0 || r.TaxRatePercent <= 0 {
		return 0
	}
	return (subtotalCents*r.TaxRatePercent + 50) / 100
}

// Shipping is free strictly above the threshold, flat otherwise.
func (r Rules) Shipping(subtotalCents int64) int64 {
	if subtotalCents > r.FreeShippingThresholdCents {
		return 0
	}
	return r.FlatShippingCents
}

// QuoteFor builds the breakdown for a subtotal.
func (r Rules) QuoteFor(subtotalCents int64) Quote {
	tax := r.Tax(subtotalCents)
	shipping := r.Shipping(subtotalCents)
	return Quote{
		SubtotalCents: subtotalCents,
		TaxCents:      tax,
		ShippingCents: shipping,
		TotalCents:    subtotalCents + tax + shipping,
	}
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPriceCents int64, quantity int) int64 {
	return unitPriceCents * int64(quantity)
}
