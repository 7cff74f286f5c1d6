package pricing

import "testing"

func TestQuoteForFreeShippingOverThreshold(t *testing.T) {
	// productA $60 + productB $50, one of each: subtotal $110 clears the
	// $100 free-shipping threshold.
	quote := DefaultRules.QuoteFor(11000)

	if quote.SubtotalCents != 11000 {
		t.Fatalf("expected subtotal 11000, got %d", quote.SubtotalCents)
	}
	if quote.TaxCents != 1100 {
		t.Fatalf("expected tax 1100, got %d", quote.TaxCents)
	}
	if quote.ShippingCents != 0 {
		t.Fatalf("expected free shipping, got %d", quote.ShippingCents)
	}
	if quote.TotalCents != 12100 {
		t.Fatalf("expected total 12100, got %d", quote.TotalCents)
	}
}

func TestQuoteForFlatShippingUnderThreshold(t *testing.T) {
	// single $40 item: subtotal 4000, tax 400, flat shipping 1000.
	quote := DefaultRules.QuoteFor(4000)

	if quote.TaxCents != 400 {
		t.Fatalf("expected tax 400, got %d", quote.TaxCents)
	}
	if quote.ShippingCents != 1000 {
		t.Fatalf("expected shipping 1000, got %d", quote.ShippingCents)
	}
	if quote.TotalCents != 5400 {
		t.Fatalf("expected total 5400, got %d", quote.TotalCents)
	}
}

func TestQuoteForExactlyAtThresholdStillShips(t *testing.T) {
	// the threshold is strict: exactly $100 still pays shipping.
	quote := DefaultRules.QuoteFor(10000)
	if quote.ShippingCents != 1000 {
		t.Fatalf("expected flat shipping at threshold, got %d", quote.ShippingCents)
	}
}

func TestTaxRoundsHalfUp(t *testing.T) {
	tests := []struct {
		subtotal int64
		want     int64
	}{
		{0, 0},
		{1, 0},    // 0.1 cent rounds down
		{5, 1},    // 0.5 cent rounds up
		{99, 10},  // 9.9 cents rounds up
		{101, 10}, // 10.1 cents rounds down
		{4000, 400},
	}
	for _, tt := range tests {
		if got := DefaultRules.Tax(tt.subtotal); got != tt.want {
			t.Fatalf("Tax(%d) = %d, want %d", tt.subtotal, got, tt.want)
		}
	}
}

func TestQuoteForZeroSubtotal(t *testing.T) {
	quote := DefaultRules.QuoteFor(0)
	if quote.TaxCents != 0 {
		t.Fatalf("expected zero tax for empty subtotal, got %d", quote.TaxCents)
	}
	if quote.TotalCents != DefaultRules.FlatShippingCents {
		t.Fatalf("expected total to be flat shipping only, got %d", quote.TotalCents)
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(2599, 3); got != 7797 {
		t.Fatalf("expected 7797, got %d", got)
	}
}
