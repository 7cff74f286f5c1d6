package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
	"storefront-backend/internal/pricing"
)

type CartAddRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Notes     string `json:"notes"`
}

type CartUpdateRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type cartResponse struct {
	Cart   models.Cart   `json:"cart"`
	Totals pricing.Quote `json:"totals"`
}

func findVariant(product models.Product, variantID string) *models.Variant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}

func availableStock(product models.Product, variant *models.Variant) int {
	if variant != nil {
		return variant.Stock
	}
	return product.Stock
}

// reconcileCartItems refreshes each item against the live catalog: sellable
// items get the current effective price and name, quantities are clamped to
// remaining stock, and items whose product disappeared or sold out are
// dropped. Returns the surviving items and whether anything changed.
func reconcileCartItems(items []models.CartItem, products map[primitive.ObjectID]models.Product) ([]models.CartItem, bool) {
	kept := make([]models.CartItem, 0, len(items))
	changed := false

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive || product.IsDeleted {
			changed = true
			continue
		}

		var variant *models.Variant
		if item.VariantID != "" {
			variant = findVariant(product, item.VariantID)
			if variant == nil {
				changed = true
				continue
			}
		}

		stock := availableStock(product, variant)
		if stock <= 0 {
			changed = true
			continue
		}

		if item.Quantity > stock {
			item.Quantity = stock
			changed = true
		}

		if price := effectiveUnitPriceCents(product, variant); price != item.PriceCents {
			item.PriceCents = price
			changed = true
		}

		name := product.Name
		if variant != nil {
			name = product.Name + " - " + variant.Name
		}
		if name != item.Name {
			item.Name = name
			changed = true
		}

		kept = append(kept, item)
	}

	return kept, changed
}

func cartSubtotalCents(items []models.CartItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += pricing.LineTotal(item.PriceCents, item.Quantity)
	}
	return subtotal
}

// loadOrCreateCart upserts the user's cart document.
func loadOrCreateCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Cart, error) {
	var cart models.Cart
	err := db.Collection("carts").FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if err == nil {
		return cart, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Cart{}, err
	}

	now := time.Now()
	cart = models.Cart{
		UserID:    userID,
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	result, err := db.Collection("carts").InsertOne(ctx, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = db.Collection("carts").FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
			return cart, err
		}
		return models.Cart{}, err
	}
	cart.ID = result.InsertedID.(primitive.ObjectID)
	return cart, nil
}

func respondCart(c *gin.Context, cart models.Cart, rules pricing.Rules) {
	respondData(c, http.StatusOK, cartResponse{
		Cart:   cart,
		Totals: rules.QuoteFor(cartSubtotalCents(cart.Items)),
	})
}

// GetCart returns the caller's cart reconciled against the live catalog.
func GetCart(db *mongo.Database, rules pricing.Rules) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/cart"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cart, err := loadOrCreateCart(ctx, db, principal.UserID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if len(cart.Items) > 0 {
			products, err := loadCartProducts(ctx, db, cart.Items)
			if err != nil {
				respondError(c, http.StatusInternalServerError, route, "db error")
				return
			}

			items, changed := reconcileCartItems(cart.Items, products)
			if changed {
				cart.Items = items
				cart.UpdatedAt = time.Now()
				if _, err := db.Collection("carts").UpdateByID(ctx, cart.ID, bson.M{
					"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
				}); err != nil {
					respondError(c, http.StatusInternalServerError, route, "db error")
					return
				}
			}
		}

		respondCart(c, cart, rules)
	}
}

func loadCartProducts(ctx context.Context, db *mongo.Database, items []models.CartItem) (map[primitive.ObjectID]models.Product, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make(map[primitive.ObjectID]models.Product, len(ids))
	for cursor.Next(ctx) {
		var product models.Product
		if err := cursor.Decode(&product); err != nil {
			return nil, err
		}
		products[product.ID] = product
	}
	return products, cursor.Err()
}

// AddCartItem adds a product (or variant) to the cart, merging quantities
// when the same line already exists.
func AddCartItem(db *mongo.Database, rules pricing.Rules) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req CartAddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").
			FindOne(ctx, bson.M{"_id": productID, "isActive": true, "isDeleted": bson.M{"$ne": true}}).
			Decode(&product)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var variant *models.Variant
		if req.VariantID != "" {
			variant = findVariant(product, req.VariantID)
			if variant == nil {
				respondError(c, http.StatusBadRequest, route, "variant not found")
				return
			}
		}

		cart, err := loadOrCreateCart(ctx, db, principal.UserID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		existing := -1
		for i, item := range cart.Items {
			if item.ProductID == productID && item.VariantID == req.VariantID {
				existing = i
				break
			}
		}

		quantity := req.Quantity
		if existing >= 0 {
			quantity += cart.Items[existing].Quantity
		}

		stock := availableStock(product, variant)
		if quantity > stock {
			respondCodedError(c, http.StatusBadRequest, route, "INSUFFICIENT_STOCK", "requested quantity exceeds available stock")
			return
		}

		name := product.Name
		if variant != nil {
			name = product.Name + " - " + variant.Name
		}

		if existing >= 0 {
			cart.Items[existing].Quantity = quantity
			cart.Items[existing].PriceCents = effectiveUnitPriceCents(product, variant)
			cart.Items[existing].Name = name
			if req.Notes != "" {
				cart.Items[existing].Notes = req.Notes
			}
		} else {
			cart.Items = append(cart.Items, models.CartItem{
				ProductID:  productID,
				VariantID:  req.VariantID,
				Name:       name,
				PriceCents: effectiveUnitPriceCents(product, variant),
				Quantity:   req.Quantity,
				Notes:      req.Notes,
				AddedAt:    time.Now(),
			})
		}

		cart.UpdatedAt = time.Now()
		if _, err := db.Collection("carts").UpdateByID(ctx, cart.ID, bson.M{
			"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
		}); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondCart(c, cart, rules)
	}
}

// UpdateCartItem sets the quantity of an existing line.
func UpdateCartItem(db *mongo.Database, rules pricing.Rules) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/cart/items/:productId"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}
		variantID := c.Query("variantId")

		var req CartUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var cart models.Cart
		err = db.Collection("carts").FindOne(ctx, bson.M{"userId": principal.UserID}).Decode(&cart)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "cart is empty")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		index := -1
		for i, item := range cart.Items {
			if item.ProductID == productID && item.VariantID == variantID {
				index = i
				break
			}
		}
		if index < 0 {
			respondError(c, http.StatusNotFound, route, "item not in cart")
			return
		}

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
		if err != nil {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}

		var variant *models.Variant
		if variantID != "" {
			variant = findVariant(product, variantID)
			if variant == nil {
				respondError(c, http.StatusBadRequest, route, "variant not found")
				return
			}
		}

		if req.Quantity > availableStock(product, variant) {
			respondCodedError(c, http.StatusBadRequest, route, "INSUFFICIENT_STOCK", "requested quantity exceeds available stock")
			return
		}

		cart.Items[index].Quantity = req.Quantity
		cart.UpdatedAt = time.Now()

		if _, err := db.Collection("carts").UpdateByID(ctx, cart.ID, bson.M{
			"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
		}); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondCart(c, cart, rules)
	}
}

// RemoveCartItem deletes one line from the cart.
func RemoveCartItem(db *mongo.Database, rules pricing.Rules) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/items/:productId"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}
		variantID := c.Query("variantId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var cart models.Cart
		err = db.Collection("carts").FindOne(ctx, bson.M{"userId": principal.UserID}).Decode(&cart)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "cart is empty")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		kept := make([]models.CartItem, 0, len(cart.Items))
		removed := false
		for _, item := range cart.Items {
			if item.ProductID == productID && item.VariantID == variantID {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		if !removed {
			respondError(c, http.StatusNotFound, route, "item not in cart")
			return
		}

		cart.Items = kept
		cart.UpdatedAt = time.Now()
		if _, err := db.Collection("carts").UpdateByID(ctx, cart.ID, bson.M{
			"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
		}); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondCart(c, cart, rules)
	}
}

// ClearCart empties the cart without deleting the document.
func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("carts").UpdateOne(
			ctx,
			bson.M{"userId": principal.UserID},
			bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": time.Now()}},
		); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondMessage(c, http.StatusOK, "cart cleared")
	}
}
