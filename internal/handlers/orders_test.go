package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

func validOrderRequest() OrderCreateRequest {
	return OrderCreateRequest{
		Items: []orderItemRequest{
			{ProductID: primitive.NewObjectID().Hex(), Quantity: 2},
		},
		ShippingAddress: orderAddressRequest{
			FullName:   "Ada Lovelace",
			Line1:      "12 Analytical Way",
			City:       "London",
			PostalCode: "N1 9GU",
			Country:    "GB",
		},
		PaymentMethod: "card",
	}
}

func TestBuildOrderFromRequest(t *testing.T) {
	req := validOrderRequest()

	order, err := buildOrderFromRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected payment status pending, got %s", order.PaymentStatus)
	}
	if len(order.Timeline) != 1 || order.Timeline[0].Status != models.OrderStatusPending {
		t.Fatalf("expected a single pending timeline entry, got %+v", order.Timeline)
	}
	if order.Items[0].PriceCents != 0 {
		t.Fatal("request prices must not be trusted; they are set in the transaction")
	}
	if order.BillingAddress != order.ShippingAddress {
		t.Fatal("billing address should default to the shipping address")
	}
}

func TestBuildOrderFromRequestExplicitBilling(t *testing.T) {
	req := validOrderRequest()
	req.BillingAddress = &orderAddressRequest{
		FullName:   "Ada Lovelace",
		Line1:      "1 Invoice Street",
		City:       "Manchester",
		PostalCode: "M1 1AE",
		Country:    "GB",
	}

	order, err := buildOrderFromRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.BillingAddress.Line1 != "1 Invoice Street" {
		t.Fatalf("expected explicit billing address, got %+v", order.BillingAddress)
	}
}

func TestBuildOrderFromRequestRejectsEmptyItems(t *testing.T) {
	req := validOrderRequest()
	req.Items = nil

	if _, err := buildOrderFromRequest(req); err == nil {
		t.Fatal("expected error for empty items")
	}
}

func TestBuildOrderFromRequestRejectsBadPaymentMethod(t *testing.T) {
	req := validOrderRequest()
	req.PaymentMethod = "barter"

	if _, err := buildOrderFromRequest(req); err == nil {
		t.Fatal("expected error for unknown payment method")
	}
}

func TestBuildOrderFromRequestRejectsBadProductID(t *testing.T) {
	req := validOrderRequest()
	req.Items[0].ProductID = "not-an-object-id"

	if _, err := buildOrderFromRequest(req); err == nil {
		t.Fatal("expected error for malformed productId")
	}
}

func TestBuildOrderFromRequestRejectsDuplicateLines(t *testing.T) {
	req := validOrderRequest()
	req.Items = append(req.Items, req.Items[0])

	if _, err := buildOrderFromRequest(req); err == nil {
		t.Fatal("expected error for duplicate order lines")
	}
}

func TestBuildOrderFromRequestAllowsSameProductDifferentVariant(t *testing.T) {
	req := validOrderRequest()
	second := req.Items[0]
	second.VariantID = "v2"
	req.Items = append(req.Items, second)

	if _, err := buildOrderFromRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRefundedCents(t *testing.T) {
	order := models.Order{
		Refunds: []models.Refund{
			{RefundID: "re_1", AmountCents: 500},
			{RefundID: "re_2", AmountCents: 250},
		},
	}

	if got := order.RefundedCents(); got != 750 {
		t.Fatalf("expected 750, got %d", got)
	}
}

func TestStockDecrementGuardsRemainingStock(t *testing.T) {
	productID := primitive.NewObjectID()

	filter, update := stockDecrement(productID, "", 3)

	stock, ok := filter["stock"].(bson.M)
	if !ok {
		t.Fatalf("expected stock condition in filter, got %v", filter)
	}
	if stock["$gte"] != 3 {
		t.Fatalf("expected $gte 3 guard, got %v", stock["$gte"])
	}

	inc := update["$inc"].(bson.M)
	if inc["stock"] != -3 {
		t.Fatalf("expected stock decrement of 3, got %v", inc["stock"])
	}
	if inc["sold"] != 3 {
		t.Fatalf("expected sold increment of 3, got %v", inc["sold"])
	}
}

func TestStockDecrementGuardsVariantStock(t *testing.T) {
	productID := primitive.NewObjectID()

	filter, update := stockDecrement(productID, "v-red", 2)

	elem, ok := filter["variants"].(bson.M)
	if !ok {
		t.Fatalf("expected variants condition in filter, got %v", filter)
	}
	match := elem["$elemMatch"].(bson.M)
	if match["id"] != "v-red" {
		t.Fatalf("expected variant id v-red, got %v", match["id"])
	}
	if match["stock"].(bson.M)["$gte"] != 2 {
		t.Fatalf("expected $gte 2 guard on variant stock, got %v", match["stock"])
	}

	inc := update["$inc"].(bson.M)
	if inc["variants.$.stock"] != -2 {
		t.Fatalf("expected variant stock decrement of 2, got %v", inc["variants.$.stock"])
	}
}

func TestOrderFailureResponseInsufficientStock(t *testing.T) {
	productID := primitive.NewObjectID()
	err := fmt.Errorf("transaction aborted: %w", outOfStockError{
		ProductID: productID,
		Available: 1,
		Requested: 4,
	})

	status, body := orderFailureResponse(err)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body["code"] != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", body["code"])
	}
	if body["productId"] != productID.Hex() {
		t.Fatalf("expected productId %s, got %v", productID.Hex(), body["productId"])
	}
	if body["available"] != 1 || body["requested"] != 4 {
		t.Fatalf("expected available 1 requested 4, got %v / %v", body["available"], body["requested"])
	}
}

func TestOrderFailureResponseProductNotFound(t *testing.T) {
	productID := primitive.NewObjectID()

	status, body := orderFailureResponse(productNotFoundError{ProductID: productID})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body["code"] != "PRODUCT_NOT_FOUND" {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %v", body["code"])
	}
}

func TestOrderFailureResponsePassesOtherErrorsThrough(t *testing.T) {
	status, body := orderFailureResponse(errors.New("network down"))
	if status != 0 || body != nil {
		t.Fatalf("expected zero status for a server fault, got %d / %v", status, body)
	}
}
