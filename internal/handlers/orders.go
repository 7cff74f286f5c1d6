package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/internal/mailer"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
	"storefront-backend/internal/pricing"
)

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type orderAddressRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
	Phone      string `json:"phone"`
}

type OrderCreateRequest struct {
	Items           []orderItemRequest   `json:"items" binding:"required"`
	ShippingAddress orderAddressRequest  `json:"shippingAddress" binding:"required"`
	BillingAddress  *orderAddressRequest `json:"billingAddress"`
	PaymentMethod   string               `json:"paymentMethod" binding:"required"`
	ClearCart       bool                 `json:"clearCart"`
}

type OrderCancelRequest struct {
	Reason string `json:"reason"`
}

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available, %d requested", e.ProductID.Hex(), e.Available, e.Requested)
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found: " + e.ProductID.Hex()
}

func orderAddressOf(req orderAddressRequest) models.OrderAddress {
	return models.OrderAddress{
		FullName:   strings.TrimSpace(req.FullName),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		Phone:      strings.TrimSpace(req.Phone),
	}
}

// buildOrderFromRequest validates the request shape and produces an order
// skeleton. Prices are left zero; the transaction fills them from the live
// catalog so the client can never dictate what it pays.
func buildOrderFromRequest(req OrderCreateRequest) (models.Order, error) {
	if len(req.Items) == 0 {
		return models.Order{}, errors.New("at least one item is required")
	}

	if req.PaymentMethod != "card" && req.PaymentMethod != "cash_on_delivery" {
		return models.Order{}, errors.New("invalid payment method")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))

	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return models.Order{}, errors.New("invalid productId")
		}
		if item.Quantity <= 0 {
			return models.Order{}, errors.New("quantity must be greater than zero")
		}

		key := item.ProductID + "/" + item.VariantID
		if seen[key] {
			return models.Order{}, errors.New("duplicate order line for product " + item.ProductID)
		}
		seen[key] = true

		items = append(items, models.OrderItem{
			ProductID: productID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	now := time.Now()
	order := models.Order{
		Items:           items,
		ShippingAddress: orderAddressOf(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		Timeline: []models.TimelineEntry{
			{Status: models.OrderStatusPending, Note: "order placed", At: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.BillingAddress != nil {
		order.BillingAddress = orderAddressOf(*req.BillingAddress)
	} else {
		order.BillingAddress = order.ShippingAddress
	}

	return order, nil
}

// stockDecrement builds the guarded filter and update for reserving quantity
// units. The $gte condition re-checks remaining stock at write time, so a
// concurrent order racing past the earlier read matches nothing instead of
// driving stock negative.
func stockDecrement(productID primitive.ObjectID, variantID string, quantity int) (bson.M, bson.M) {
	if variantID != "" {
		filter := bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
			"variants":  bson.M{"$elemMatch": bson.M{"id": variantID, "stock": bson.M{"$gte": quantity}}},
		}
		return filter, bson.M{"$inc": bson.M{"variants.$.stock": -quantity, "sold": quantity}}
	}
	filter := bson.M{
		"_id":       productID,
		"isDeleted": bson.M{"$ne": true},
		"stock":     bson.M{"$gte": quantity},
	}
	return filter, bson.M{"$inc": bson.M{"stock": -quantity, "sold": quantity}}
}

// decrementStock reserves quantity units inside the transaction. A failed
// match aborts the whole order, so no partial decrement ever commits.
func decrementStock(sessCtx mongo.SessionContext, db *mongo.Database, product models.Product, variantID string, quantity int) error {
	filter, update := stockDecrement(product.ID, variantID, quantity)

	res, err := db.Collection("products").UpdateOne(sessCtx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		available := product.Stock
		if v := findVariant(product, variantID); v != nil {
			available = v.Stock
		}
		return outOfStockError{ProductID: product.ID, Available: available, Requested: quantity}
	}
	return nil
}

// restoreStock puts quantity units back when an order is cancelled.
func restoreStock(sessCtx mongo.SessionContext, db *mongo.Database, item models.OrderItem) error {
	var filter, update bson.M
	if item.VariantID != "" {
		filter = bson.M{"_id": item.ProductID, "variants.id": item.VariantID}
		update = bson.M{"$inc": bson.M{"variants.$.stock": item.Quantity, "sold": -item.Quantity}}
	} else {
		filter = bson.M{"_id": item.ProductID}
		update = bson.M{"$inc": bson.M{"stock": item.Quantity, "sold": -item.Quantity}}
	}

	_, err := db.Collection("products").UpdateOne(sessCtx, filter, update)
	return err
}

// orderFailureResponse maps the typed errors surfacing from the order
// transaction to coded client responses. Anything else is a server fault and
// returns a zero status.
func orderFailureResponse(err error) (int, gin.H) {
	var stockErr outOfStockError
	if errors.As(err, &stockErr) {
		return http.StatusBadRequest, gin.H{
			"success":   false,
			"code":      "INSUFFICIENT_STOCK",
			"message":   "insufficient stock",
			"productId": stockErr.ProductID.Hex(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}
	}
	var notFoundErr productNotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusBadRequest, gin.H{
			"success":   false,
			"code":      "PRODUCT_NOT_FOUND",
			"message":   "product not found",
			"productId": notFoundErr.ProductID.Hex(),
		}
	}
	return 0, nil
}

// CreateOrder places an order. Stock checks, stock decrements and the order
// insert run in one transaction; either everything commits or nothing does.
func CreateOrder(db *mongo.Database, rules pricing.Rules, mail *mailer.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req OrderCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		order, err := buildOrderFromRequest(req)
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		order.UserID = principal.UserID

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			pricedItems := make([]models.OrderItem, 0, len(order.Items))
			var subtotal int64

			for _, item := range order.Items {
				var product models.Product
				err := db.Collection("products").FindOne(
					sessCtx,
					bson.M{
						"_id":       item.ProductID,
						"isActive":  true,
						"isDeleted": bson.M{"$ne": true},
					},
				).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: item.ProductID}
				}
				if err != nil {
					return nil, err
				}

				var variant *models.Variant
				if item.VariantID != "" {
					variant = findVariant(product, item.VariantID)
					if variant == nil {
						return nil, productNotFoundError{ProductID: item.ProductID}
					}
				}

				if availableStock(product, variant) < item.Quantity {
					return nil, outOfStockError{
						ProductID: item.ProductID,
						Available: availableStock(product, variant),
						Requested: item.Quantity,
					}
				}

				unitPrice := effectiveUnitPriceCents(product, variant)
				priced := models.OrderItem{
					ProductID:  item.ProductID,
					Name:       product.Name,
					SKU:        product.SKU,
					VariantID:  item.VariantID,
					PriceCents: unitPrice,
					Quantity:   item.Quantity,
				}
				if variant != nil {
					priced.VariantName = variant.Name
				}
				pricedItems = append(pricedItems, priced)
				subtotal += pricing.LineTotal(unitPrice, item.Quantity)

				if err := decrementStock(sessCtx, db, product, item.VariantID, item.Quantity); err != nil {
					return nil, err
				}
			}

			quote := rules.QuoteFor(subtotal)
			order.Items = pricedItems
			order.SubtotalCents = quote.SubtotalCents
			order.TaxCents = quote.TaxCents
			order.ShippingCents = quote.ShippingCents
			order.TotalCents = quote.TotalCents

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}

			if req.ClearCart {
				if _, err := db.Collection("carts").UpdateOne(
					sessCtx,
					bson.M{"userId": principal.UserID},
					bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": time.Now()}},
				); err != nil {
					return nil, err
				}
			}

			return nil, nil
		})
		if err != nil {
			if status, body := orderFailureResponse(err); status != 0 {
				c.AbortWithStatusJSON(status, body)
				return
			}
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] order %s created for user %s", route, order.ID.Hex(), principal.UserID.Hex())

		// Confirmation email is best effort; the order stands either way.
		if mail != nil && principal.Email != "" {
			go func(email string, order models.Order) {
				if err := mail.SendOrderConfirmation(email, order); err != nil {
					log.Println("[MAIL] [ERROR] order confirmation failed:", err)
				}
			}(principal.Email, order)
		}

		respondData(c, http.StatusCreated, order)
	}
}

// ListMyOrders returns the caller's orders, newest first.
func ListMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		filter := bson.M{"userId": principal.UserID}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}

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

// GetOrder returns one order. Owners see their own; admins see any.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:id"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
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

		if order.UserID != principal.UserID && !principal.IsAdmin() {
			// 404 instead of 403 so order ids cannot be probed.
			respondError(c, http.StatusNotFound, route, "order not found")
			return
		}

		respondData(c, http.StatusOK, order)
	}
}

// CancelOrder cancels a pending or confirmed order and restores stock. The
// status guard lives in the update filter, so a concurrent transition (or a
// repeated cancel) matches nothing instead of double-restoring stock.
func CancelOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/:id/cancel"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req OrderCancelRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
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

		if order.UserID != principal.UserID && !principal.IsAdmin() {
			respondError(c, http.StatusNotFound, route, "order not found")
			return
		}

		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusConfirmed {
			respondError(c, http.StatusBadRequest, route, "order can no longer be cancelled")
			return
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var cancelled models.Order
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			now := time.Now()
			res := db.Collection("orders").FindOneAndUpdate(
				sessCtx,
				bson.M{
					"_id":    orderID,
					"status": bson.M{"$in": []string{models.OrderStatusPending, models.OrderStatusConfirmed}},
				},
				bson.M{
					"$set": bson.M{
						"status":       models.OrderStatusCancelled,
						"cancelReason": strings.TrimSpace(req.Reason),
						"updatedAt":    now,
					},
					"$push": bson.M{"timeline": models.TimelineEntry{
						Status: models.OrderStatusCancelled,
						Note:   strings.TrimSpace(req.Reason),
						At:     now,
					}},
				},
			)
			if err := res.Decode(&cancelled); err != nil {
				return nil, err
			}

			for _, item := range order.Items {
				if err := restoreStock(sessCtx, db, item); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusConflict, route, "order status changed, cancel not applied")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] order %s cancelled", route, orderID.Hex())
		respondMessage(c, http.StatusOK, "order cancelled")
	}
}
