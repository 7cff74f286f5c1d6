package mailer

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

func TestOrderConfirmationBody(t *testing.T) {
	order := models.Order{
		ID: primitive.NewObjectID(),
		Items: []models.OrderItem{
			{Name: "Walnut Desk", Quantity: 2, PriceCents: 12550},
		},
		SubtotalCents: 25100,
		TaxCents:      2510,
		ShippingCents: 0,
		TotalCents:    27610,
	}

	body := orderConfirmationBody(order)

	if !strings.Contains(body, "2 x Walnut Desk - $125.50") {
		t.Fatalf("expected item line in body, got:\n%s", body)
	}
	if !strings.Contains(body, "Total: $276.10") {
		t.Fatalf("expected total line in body, got:\n%s", body)
	}
	if !strings.Contains(body, order.ID.Hex()) {
		t.Fatalf("expected order id in body, got:\n%s", body)
	}
}

func TestSendOrderConfirmationDisabledWithoutSMTP(t *testing.T) {
	m := New("", 0, "", "", "orders@storefront.local")

	if err := m.SendOrderConfirmation("shopper@example.com", models.Order{}); err != nil {
		t.Fatalf("expected disabled mailer to be a no-op, got %v", err)
	}
}
