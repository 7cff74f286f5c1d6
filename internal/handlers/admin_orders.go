package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/refund"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/models"
)

type OrderStatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type RefundRequest struct {
	AmountCents int64  `json:"amountCents" binding:"required,min=1"`
	Reason      string `json:"reason"`
}

// orderTransitions is the fulfilment state machine. Cancellation from
// pending/confirmed goes through CancelOrder so stock is restored; it is not
// reachable from here.
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusConfirmed},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

func canTransition(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ListOrders returns all orders for the admin panel, newest first.
func ListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}
		if paymentStatus := strings.TrimSpace(c.Query("paymentStatus")); paymentStatus != "" {
			filter["paymentStatus"] = paymentStatus
		}
		if userIDParam := strings.TrimSpace(c.Query("userId")); userIDParam != "" {
			userID, err := primitive.ObjectIDFromHex(userIDParam)
			if err != nil {
				respondError(c, http.StatusBadRequest, route, "invalid userId")
				return
			}
			filter["userId"] = userID
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := findPageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, filter, opts)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		respondPage(c, orders, page, limit, total)
	}
}

// UpdateOrderStatus moves an order one step through fulfilment. The current
// status sits in the update filter, so a stale admin panel loses the race
// instead of skipping a step.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req OrderStatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if !canTransition(order.Status, req.Status) {
			respondError(c, http.StatusBadRequest, route, "invalid status transition from "+order.Status+" to "+req.Status)
			return
		}

		now := time.Now()
		var updated models.Order
		err = db.Collection("orders").
			FindOneAndUpdate(
				ctx,
				bson.M{"_id": orderID, "status": order.Status},
				bson.M{
					"$set": bson.M{"status": req.Status, "updatedAt": now},
					"$push": bson.M{"timeline": models.TimelineEntry{
						Status: req.Status,
						Note:   strings.TrimSpace(req.Note),
						At:     now,
					}},
				},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusConflict, route, "order status changed, update not applied")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] order %s moved %s -> %s", route, orderID.Hex(), order.Status, req.Status)
		respondData(c, http.StatusOK, updated)
	}
}

// InitiateRefund asks Stripe to refund part or all of a paid order. The
// refund is recorded when Stripe delivers the charge.refunded webhook, not
// here, so a lost response cannot double-book it.
func InitiateRefund(db *mongo.Database, stripeSecretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/orders/:id/refund"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if order.PaymentStatus != models.PaymentStatusPaid && order.PaymentStatus != models.PaymentStatusRefunded {
			respondError(c, http.StatusBadRequest, route, "order has no captured payment")
			return
		}
		if order.PaymentIntentID == "" {
			respondError(c, http.StatusBadRequest, route, "order has no payment intent")
			return
		}
		if order.RefundedCents()+req.AmountCents > order.TotalCents {
			respondError(c, http.StatusBadRequest, route, "refund exceeds amount paid")
			return
		}

		stripe.Key = stripeSecretKey

		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(order.PaymentIntentID),
			Amount:        stripe.Int64(req.AmountCents),
		}
		if strings.TrimSpace(req.Reason) != "" {
			params.Reason = stripe.String(req.Reason)
		}

		created, err := refund.New(params)
		if err != nil {
			log.Printf("[%s] stripe refund failed for order %s: %v", route, orderID.Hex(), err)
			respondError(c, http.StatusBadGateway, route, "refund request failed")
			return
		}

		log.Printf("[%s] refund %s initiated for order %s", route, created.ID, orderID.Hex())
		respondData(c, http.StatusAccepted, gin.H{
			"refundId":    created.ID,
			"amountCents": req.AmountCents,
			"status":      string(created.Status),
		})
	}
}
