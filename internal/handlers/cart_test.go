package handlers

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

func testProduct(id primitive.ObjectID, priceCents int64, stock int) models.Product {
	return models.Product{
		ID:         id,
		Name:       "Widget",
		PriceCents: priceCents,
		Stock:      stock,
		IsActive:   true,
	}
}

func TestReconcileCartItemsNoChanges(t *testing.T) {
	id := primitive.NewObjectID()
	products := map[primitive.ObjectID]models.Product{
		id: testProduct(id, 2500, 10),
	}
	items := []models.CartItem{
		{ProductID: id, Name: "Widget", PriceCents: 2500, Quantity: 2, AddedAt: time.Now()},
	}

	kept, changed := reconcileCartItems(items, products)

	if changed {
		t.Fatal("expected no changes for an up-to-date cart")
	}
	if len(kept) != 1 || kept[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", kept)
	}
}

func TestReconcileCartItemsClampsToStock(t *testing.T) {
	id := primitive.NewObjectID()
	products := map[primitive.ObjectID]models.Product{
		id: testProduct(id, 2500, 3),
	}
	items := []models.CartItem{
		{ProductID: id, Name: "Widget", PriceCents: 2500, Quantity: 5},
	}

	kept, changed := reconcileCartItems(items, products)

	if !changed {
		t.Fatal("expected a change when quantity exceeds stock")
	}
	if kept[0].Quantity != 3 {
		t.Fatalf("expected quantity clamped to 3, got %d", kept[0].Quantity)
	}
}

func TestReconcileCartItemsRefreshesPrice(t *testing.T) {
	id := primitive.NewObjectID()
	product := testProduct(id, 2000, 10)
	product.SaleEnabled = true
	product.SalePriceCents = 1500
	products := map[primitive.ObjectID]models.Product{id: product}

	items := []models.CartItem{
		{ProductID: id, Name: "Widget", PriceCents: 2000, Quantity: 1},
	}

	kept, changed := reconcileCartItems(items, products)

	if !changed {
		t.Fatal("expected a change when the live price differs")
	}
	if kept[0].PriceCents != 1500 {
		t.Fatalf("expected sale price 1500, got %d", kept[0].PriceCents)
	}
}

func TestReconcileCartItemsDropsGoneProducts(t *testing.T) {
	gone := primitive.NewObjectID()
	inactive := primitive.NewObjectID()
	soldOut := primitive.NewObjectID()

	inactiveProduct := testProduct(inactive, 1000, 5)
	inactiveProduct.IsActive = false
	products := map[primitive.ObjectID]models.Product{
		inactive: inactiveProduct,
		soldOut:  testProduct(soldOut, 1000, 0),
	}

	items := []models.CartItem{
		{ProductID: gone, Quantity: 1},
		{ProductID: inactive, Quantity: 1},
		{ProductID: soldOut, Quantity: 1},
	}

	kept, changed := reconcileCartItems(items, products)

	if !changed {
		t.Fatal("expected changes when products are unavailable")
	}
	if len(kept) != 0 {
		t.Fatalf("expected all items dropped, got %+v", kept)
	}
}

func TestReconcileCartItemsDropsMissingVariant(t *testing.T) {
	id := primitive.NewObjectID()
	product := testProduct(id, 1000, 5)
	product.Variants = []models.Variant{{ID: "v1", Name: "Small", PriceCents: 900, Stock: 2}}
	products := map[primitive.ObjectID]models.Product{id: product}

	items := []models.CartItem{
		{ProductID: id, VariantID: "v2", Quantity: 1},
		{ProductID: id, VariantID: "v1", PriceCents: 900, Name: "Widget - Small", Quantity: 4},
	}

	kept, changed := reconcileCartItems(items, products)

	if !changed {
		t.Fatal("expected changes")
	}
	if len(kept) != 1 {
		t.Fatalf("expected one surviving item, got %d", len(kept))
	}
	if kept[0].VariantID != "v1" || kept[0].Quantity != 2 {
		t.Fatalf("expected v1 clamped to variant stock 2, got %+v", kept[0])
	}
}

func TestCartSubtotalCents(t *testing.T) {
	items := []models.CartItem{
		{PriceCents: 2500, Quantity: 2},
		{PriceCents: 999, Quantity: 3},
	}

	if got := cartSubtotalCents(items); got != 7997 {
		t.Fatalf("expected subtotal 7997, got %d", got)
	}

	if got := cartSubtotalCents(nil); got != 0 {
		t.Fatalf("expected empty subtotal 0, got %d", got)
	}
}
