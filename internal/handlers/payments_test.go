package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way stripe-cli does:
// t=<unix>,v1=hex(hmac-sha256(secret, "<unix>.<payload>")).
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookRequest(payload []byte, signature string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(string(payload)))
	if signature != "" {
		c.Request.Header.Set("Stripe-Signature", signature)
	}
	return recorder, c
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	recorder, c := newWebhookRequest(payload, "")
	HandleWebhook(nil, testWebhookSecret)(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	signature := signPayload(payload, "whsec_wrong_secret", time.Now())

	recorder, c := newWebhookRequest(payload, signature)
	HandleWebhook(nil, testWebhookSecret)(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleWebhookRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	signature := signPayload(payload, testWebhookSecret, time.Now())
	tampered := []byte(`{"id":"evt_2","type":"payment_intent.succeeded"}`)

	recorder, c := newWebhookRequest(tampered, signature)
	HandleWebhook(nil, testWebhookSecret)(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleWebhookRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	signature := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	recorder, c := newWebhookRequest(payload, signature)
	HandleWebhook(nil, testWebhookSecret)(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a replayed signature, got %d", recorder.Code)
	}
}

// The manual signature must round-trip through the library itself, otherwise
// the handler tests above prove nothing.
func TestSignPayloadMatchesConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded"}`)
	signature := signPayload(payload, testWebhookSecret, time.Now())

	event, err := webhook.ConstructEventWithOptions(payload, signature, testWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event id %q", event.ID)
	}
}

func TestOrderIDFromMetadata(t *testing.T) {
	if _, err := orderIDFromMetadata(""); err == nil {
		t.Fatal("expected error for missing orderId metadata")
	}
	if _, err := orderIDFromMetadata("nope"); err == nil {
		t.Fatal("expected error for malformed orderId metadata")
	}
	if _, err := orderIDFromMetadata("64f1c0a1b2c3d4e5f6a7b8c9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPaidOrderUpdateGuardsAgainstRedelivery(t *testing.T) {
	orderID := primitive.NewObjectID()
	now := time.Now()

	filter, update := paidOrderUpdate(orderID, "pi_123", now)

	// A redelivered success event finds paymentStatus already paid and
	// matches nothing, so the timeline gains exactly one confirmed entry.
	if filter["paymentStatus"] != models.PaymentStatusPending {
		t.Fatalf("expected pending paymentStatus guard, got %v", filter["paymentStatus"])
	}
	if filter["_id"] != orderID {
		t.Fatalf("expected filter on order %s, got %v", orderID.Hex(), filter["_id"])
	}

	set := update["$set"].(bson.M)
	if set["paymentStatus"] != models.PaymentStatusPaid {
		t.Fatalf("expected paymentStatus paid, got %v", set["paymentStatus"])
	}
	if set["status"] != models.OrderStatusConfirmed {
		t.Fatalf("expected status confirmed, got %v", set["status"])
	}
	if set["paymentIntentId"] != "pi_123" {
		t.Fatalf("expected paymentIntentId pi_123, got %v", set["paymentIntentId"])
	}

	entry, ok := update["$push"].(bson.M)["timeline"].(models.TimelineEntry)
	if !ok {
		t.Fatalf("expected a single timeline entry push, got %v", update["$push"])
	}
	if entry.Status != models.OrderStatusConfirmed {
		t.Fatalf("expected confirmed timeline entry, got %q", entry.Status)
	}
}

func TestPaidOrderUpdateWithoutPaymentIntent(t *testing.T) {
	filter, update := paidOrderUpdate(primitive.NewObjectID(), "", time.Now())

	if filter["paymentStatus"] != models.PaymentStatusPending {
		t.Fatalf("expected pending paymentStatus guard, got %v", filter["paymentStatus"])
	}
	set := update["$set"].(bson.M)
	if _, ok := set["paymentIntentId"]; ok {
		t.Fatal("expected paymentIntentId to stay untouched when the event carries none")
	}
}
