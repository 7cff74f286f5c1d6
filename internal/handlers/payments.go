package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
)

// PaymentConfig carries the Stripe credentials and redirect URLs.
type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSessionRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

const maxWebhookBodyBytes = 65536

// loadPayableOrder fetches an order that still awaits payment and belongs to
// the caller.
func loadPayableOrder(ctx context.Context, db *mongo.Database, orderIDHex string, principal middleware.Principal) (models.Order, int, string) {
	orderID, err := primitive.ObjectIDFromHex(orderIDHex)
	if err != nil {
		return models.Order{}, http.StatusBadRequest, "invalid orderId"
	}

	var order models.Order
	err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return models.Order{}, http.StatusNotFound, "order not found"
	}
	if err != nil {
		return models.Order{}, http.StatusInternalServerError, "db error"
	}

	if order.UserID != principal.UserID {
		return models.Order{}, http.StatusNotFound, "order not found"
	}
	if order.PaymentMethod != "card" {
		return models.Order{}, http.StatusBadRequest, "order is not paid by card"
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return models.Order{}, http.StatusBadRequest, "order payment is already settled"
	}
	if order.Status != models.OrderStatusPending {
		return models.Order{}, http.StatusBadRequest, "order can no longer be paid"
	}

	return order, 0, ""
}

// CreateCheckoutSession opens a Stripe Checkout session for a pending order.
// Line items come from the order snapshots, never from the client.
func CreateCheckoutSession(db *mongo.Database, cfg PaymentConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/create-checkout-session"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req CheckoutSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, status, msg := loadPayableOrder(ctx, db, req.OrderID, principal)
		if status != 0 {
			respondError(c, status, route, msg)
			return
		}

		stripe.Key = cfg.SecretKey

		lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+2)
		for _, item := range order.Items {
			name := item.Name
			if item.VariantName != "" {
				name = item.Name + " - " + item.VariantName
			}
			lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(item.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(int64(item.Quantity)),
			})
		}
		if order.TaxCents > 0 {
			lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(order.TaxCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Tax"),
					},
				},
				Quantity: stripe.Int64(1),
			})
		}
		if order.ShippingCents > 0 {
			lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(order.ShippingCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Shipping"),
					},
				},
				Quantity: stripe.Int64(1),
			})
		}

		params := &stripe.CheckoutSessionParams{
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  lineItems,
			SuccessURL: stripe.String(cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:  stripe.String(cfg.CancelURL),
			Metadata:   map[string]string{"orderId": order.ID.Hex()},
			PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
				Metadata: map[string]string{"orderId": order.ID.Hex()},
			},
		}

		created, err := session.New(params)
		if err != nil {
			log.Printf("[%s] checkout session failed for order %s: %v", route, order.ID.Hex(), err)
			respondError(c, http.StatusBadGateway, route, "failed to create checkout session")
			return
		}

		respondData(c, http.StatusCreated, gin.H{
			"sessionId": created.ID,
			"url":       created.URL,
		})
	}
}

// CreatePaymentIntent creates a PaymentIntent for clients that embed Stripe
// Elements instead of redirecting to Checkout.
func CreatePaymentIntent(db *mongo.Database, cfg PaymentConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/create-payment-intent"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req CheckoutSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, status, msg := loadPayableOrder(ctx, db, req.OrderID, principal)
		if status != 0 {
			respondError(c, status, route, msg)
			return
		}

		stripe.Key = cfg.SecretKey

		intent, err := paymentintent.New(&stripe.PaymentIntentParams{
			Amount:   stripe.Int64(order.TotalCents),
			Currency: stripe.String("usd"),
			Metadata: map[string]string{"orderId": order.ID.Hex()},
		})
		if err != nil {
			log.Printf("[%s] payment intent failed for order %s: %v", route, order.ID.Hex(), err)
			respondError(c, http.StatusBadGateway, route, "failed to create payment intent")
			return
		}

		if _, err := db.Collection("orders").UpdateByID(ctx, order.ID, bson.M{
			"$set": bson.M{"paymentIntentId": intent.ID, "updatedAt": time.Now()},
		}); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusCreated, gin.H{
			"paymentIntentId": intent.ID,
			"clientSecret":    intent.ClientSecret,
		})
	}
}

// HandleWebhook processes Stripe events. The signature check runs before any
// side effect; the order mutation and the replay-guard insert share one
// transaction; any processing failure answers 500 so Stripe redelivers.
func HandleWebhook(db *mongo.Database, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payments/webhook"
		defer handlePanic(c, route)

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "unreadable body")
			return
		}

		// Accounts pin their own API version; a major-version mismatch here
		// would reject every event, so only the signature is enforced.
		event, err := webhook.ConstructEventWithOptions(
			payload,
			c.GetHeader("Stripe-Signature"),
			webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
		)
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid signature")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		count, err := db.Collection("webhook_events").CountDocuments(ctx, bson.M{"eventId": event.ID})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			log.Printf("[%s] duplicate event %s acknowledged", route, event.ID)
			respondMessage(c, http.StatusOK, "event already processed")
			return
		}

		sess, err := db.Client().StartSession()
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer sess.EndSession(ctx)

		_, err = sess.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			orderID, err := applyWebhookEvent(sessCtx, db, event)
			if err != nil {
				return nil, err
			}

			record := models.WebhookEvent{
				EventID:     event.ID,
				Type:        string(event.Type),
				ReceivedAt:  time.Now(),
				ProcessedAt: time.Now(),
			}
			if orderID != nil {
				record.OrderID = orderID.Hex()
			}
			if _, err := db.Collection("webhook_events").InsertOne(sessCtx, record); err != nil {
				// A concurrent delivery won the unique index race; treat as done.
				if mongo.IsDuplicateKeyError(err) {
					return nil, nil
				}
				return nil, err
			}
			return nil, nil
		})
		if err != nil {
			log.Printf("[%s] event %s (%s) failed: %v", route, event.ID, event.Type, err)
			respondError(c, http.StatusInternalServerError, route, "event processing failed")
			return
		}

		respondMessage(c, http.StatusOK, "event processed")
	}
}

// applyWebhookEvent mutates the order the event refers to. Returns the order
// id for the replay-guard record, nil for events logged without a mutation.
func applyWebhookEvent(sessCtx mongo.SessionContext, db *mongo.Database, event stripe.Event) (*primitive.ObjectID, error) {
	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, err
		}
		return markOrderPaid(sessCtx, db, intent.Metadata["orderId"], intent.ID)

	case "checkout.session.completed":
		var checkout stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
			return nil, err
		}
		paymentIntentID := ""
		if checkout.PaymentIntent != nil {
			paymentIntentID = checkout.PaymentIntent.ID
		}
		return markOrderPaid(sessCtx, db, checkout.Metadata["orderId"], paymentIntentID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, err
		}
		reason := "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		return markOrderPaymentFailed(sessCtx, db, intent.Metadata["orderId"], intent.ID, reason)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, err
		}
		return markOrderRefunded(sessCtx, db, charge)

	default:
		// Subscription and other unrelated events are acknowledged and
		// recorded; the store has nothing to update for them.
		log.Printf("[STRIPE] event %s of type %s recorded without action", event.ID, event.Type)
		return nil, nil
	}
}

func orderIDFromMetadata(orderIDHex string) (primitive.ObjectID, error) {
	if orderIDHex == "" {
		return primitive.NilObjectID, errors.New("event carries no orderId metadata")
	}
	return primitive.ObjectIDFromHex(orderIDHex)
}

// paidOrderUpdate builds the guarded mutation for a captured payment. The
// paymentStatus condition in the filter keeps a redelivered success event
// from stacking a second confirmed entry on the timeline.
func paidOrderUpdate(orderID primitive.ObjectID, paymentIntentID string, now time.Time) (bson.M, bson.M) {
	set := bson.M{
		"status":        models.OrderStatusConfirmed,
		"paymentStatus": models.PaymentStatusPaid,
		"updatedAt":     now,
	}
	if paymentIntentID != "" {
		set["paymentIntentId"] = paymentIntentID
	}

	filter := bson.M{"_id": orderID, "paymentStatus": models.PaymentStatusPending}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"timeline": models.TimelineEntry{
			Status: models.OrderStatusConfirmed,
			Note:   "payment captured",
			At:     now,
		}},
	}
	return filter, update
}

func markOrderPaid(sessCtx mongo.SessionContext, db *mongo.Database, orderIDHex, paymentIntentID string) (*primitive.ObjectID, error) {
	orderID, err := orderIDFromMetadata(orderIDHex)
	if err != nil {
		return nil, err
	}

	filter, update := paidOrderUpdate(orderID, paymentIntentID, time.Now())
	res, err := db.Collection("orders").UpdateOne(sessCtx, filter, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		log.Printf("[STRIPE] order %s not in payable state, payment event ignored", orderID.Hex())
	}
	return &orderID, nil
}

func markOrderPaymentFailed(sessCtx mongo.SessionContext, db *mongo.Database, orderIDHex, paymentIntentID, reason string) (*primitive.ObjectID, error) {
	orderID, err := orderIDFromMetadata(orderIDHex)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	set := bson.M{
		"status":        models.OrderStatusPaymentFailed,
		"paymentStatus": models.PaymentStatusFailed,
		"updatedAt":     now,
	}
	if paymentIntentID != "" {
		set["paymentIntentId"] = paymentIntentID
	}

	_, err = db.Collection("orders").UpdateOne(
		sessCtx,
		bson.M{"_id": orderID, "paymentStatus": models.PaymentStatusPending},
		bson.M{
			"$set": set,
			"$push": bson.M{"timeline": models.TimelineEntry{
				Status: models.OrderStatusPaymentFailed,
				Note:   reason,
				At:     now,
			}},
		},
	)
	if err != nil {
		return nil, err
	}
	return &orderID, nil
}

func markOrderRefunded(sessCtx mongo.SessionContext, db *mongo.Database, charge stripe.Charge) (*primitive.ObjectID, error) {
	if charge.PaymentIntent == nil {
		return nil, errors.New("charge carries no payment intent")
	}

	var order models.Order
	err := db.Collection("orders").
		FindOne(sessCtx, bson.M{"paymentIntentId": charge.PaymentIntent.ID}).
		Decode(&order)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	refunds := make([]models.Refund, 0)
	if charge.Refunds != nil {
		for _, r := range charge.Refunds.Data {
			already := false
			for _, existing := range order.Refunds {
				if existing.RefundID == r.ID {
					already = true
					break
				}
			}
			if already {
				continue
			}
			refunds = append(refunds, models.Refund{
				RefundID:    r.ID,
				AmountCents: r.Amount,
				Currency:    string(r.Currency),
				Reason:      string(r.Reason),
				At:          now,
			})
		}
	}

	update := bson.M{
		"$set": bson.M{
			"paymentStatus": models.PaymentStatusRefunded,
			"updatedAt":     now,
		},
	}
	if len(refunds) > 0 {
		update["$push"] = bson.M{"refunds": bson.M{"$each": refunds}}
	}

	if _, err := db.Collection("orders").UpdateByID(sessCtx, order.ID, update); err != nil {
		return nil, err
	}
	return &order.ID, nil
}
