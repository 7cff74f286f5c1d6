package handlers

import (
	"fmt"

	"storefront-backend/internal/models"
)

type saleUpdateInput struct {
	PriceCents     *int64
	SaleEnabled    *bool
	SalePriceCents *int64
}

type saleUpdateResult struct {
	PriceCents     int64
	SaleEnabled    bool
	SalePriceCents int64
	SetSaleEnabled bool
	SetSalePrice   bool
}

func isProductOnSale(priceCents int64, saleEnabled bool, salePriceCents int64) bool {
	return saleEnabled && salePriceCents > 0 && salePriceCents < priceCents
}

func effectiveProductPriceCents(priceCents int64, saleEnabled bool, salePriceCents int64) int64 {
	if isProductOnSale(priceCents, saleEnabled, salePriceCents) {
		return salePriceCents
	}
	return priceCents
}

// effectiveUnitPriceCents resolves the unit price for an order or cart line:
// the variant price when a variant is selected, the sale price when the sale
// undercuts it, the list price otherwise.
func effectiveUnitPriceCents(product models.Product, variant *models.Variant) int64 {
	base := product.PriceCents
	if variant != nil {
		base = variant.PriceCents
	}
	if isProductOnSale(base, product.SaleEnabled, product.SalePriceCents) {
		return product.SalePriceCents
	}
	return base
}

func validateSaleFields(priceCents int64, saleEnabled bool, salePriceCents int64, salePriceSet bool) error {
	if !saleEnabled {
		return nil
	}
	if !salePriceSet {
		return fmt.Errorf("salePriceCents is required when saleEnabled is true")
	}
	if salePriceCents <= 0 {
		return fmt.Errorf("salePriceCents must be greater than 0")
	}
	if salePriceCents >= priceCents {
		return fmt.Errorf("salePriceCents must be less than priceCents")
	}
	return nil
}

func resolveSaleUpdate(existingPriceCents int64, existingSaleEnabled bool, existingSalePriceCents int64, input saleUpdateInput) (saleUpdateResult, error) {
	result := saleUpdateResult{
		PriceCents:     existingPriceCents,
		SaleEnabled:    existingSaleEnabled,
		SalePriceCents: existingSalePriceCents,
	}

	if input.PriceCents != nil {
		result.PriceCents = *input.PriceCents
	}

	salePriceSetForValidation := existingSalePriceCents > 0

	if input.SaleEnabled != nil {
		result.SaleEnabled = *input.SaleEnabled
		result.SetSaleEnabled = true
		if !*input.SaleEnabled {
			result.SalePriceCents = 0
			result.SetSalePrice = true
			salePriceSetForValidation = false
		}
	}

	if input.SalePriceCents != nil {
		result.SalePriceCents = *input.SalePriceCents
		result.SetSalePrice = true
		salePriceSetForValidation = true
	}

	if err := validateSaleFields(result.PriceCents, result.SaleEnabled, result.SalePriceCents, salePriceSetForValidation); err != nil {
		return saleUpdateResult{}, err
	}

	return result, nil
}
