package handlers

import (
	"testing"

	"storefront-backend/internal/models"
)

func TestValidateSaleFieldsMissingSalePrice(t *testing.T) {
	err := validateSaleFields(10000, true, 0, false)
	if err == nil {
		t.Fatal("expected validation error when saleEnabled=true and salePriceCents is missing")
	}
}

func TestValidateSaleFieldsSalePriceGreaterOrEqualPrice(t *testing.T) {
	tests := []int64{10000, 12000}
	for _, salePrice := range tests {
		err := validateSaleFields(10000, true, salePrice, true)
		if err == nil {
			t.Fatalf("expected validation error for salePriceCents=%v", salePrice)
		}
	}
}

func TestEffectiveProductPriceUsesSalePriceWhenOnSale(t *testing.T) {
	if got := effectiveProductPriceCents(10000, true, 7500); got != 7500 {
		t.Fatalf("expected sale price 7500, got %v", got)
	}
	if got := effectiveProductPriceCents(10000, false, 7500); got != 10000 {
		t.Fatalf("expected regular price 10000 when sale disabled, got %v", got)
	}
}

func TestEffectiveUnitPricePrefersVariant(t *testing.T) {
	product := models.Product{PriceCents: 10000}
	variant := models.Variant{ID: "v1", PriceCents: 12000}

	if got := effectiveUnitPriceCents(product, &variant); got != 12000 {
		t.Fatalf("expected variant price 12000, got %v", got)
	}
	if got := effectiveUnitPriceCents(product, nil); got != 10000 {
		t.Fatalf("expected list price 10000, got %v", got)
	}
}

func TestEffectiveUnitPriceSaleUndercutsVariant(t *testing.T) {
	product := models.Product{PriceCents: 10000, SaleEnabled: true, SalePriceCents: 8000}
	variant := models.Variant{ID: "v1", PriceCents: 9000}

	if got := effectiveUnitPriceCents(product, &variant); got != 8000 {
		t.Fatalf("expected sale price 8000 to undercut variant, got %v", got)
	}
}

func TestResolveSaleUpdateDisableClearsSalePrice(t *testing.T) {
	disabled := false
	result, err := resolveSaleUpdate(10000, true, 8000, saleUpdateInput{SaleEnabled: &disabled})
	if err != nil {
		t.Fatalf("resolveSaleUpdate returned error: %v", err)
	}
	if result.SalePriceCents != 0 || !result.SetSalePrice {
		t.Fatalf("expected sale price cleared, got %+v", result)
	}
}

func TestResolveSaleUpdateRejectsSaleAbovePrice(t *testing.T) {
	enabled := true
	salePrice := int64(11000)
	_, err := resolveSaleUpdate(10000, false, 0, saleUpdateInput{SaleEnabled: &enabled, SalePriceCents: &salePrice})
	if err == nil {
		t.Fatal("expected error when sale price exceeds list price")
	}
}
