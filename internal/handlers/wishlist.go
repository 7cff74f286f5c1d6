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
)

type WishlistAddRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Notes     string `json:"notes"`
}

func loadOrCreateWishlist(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Wishlist, error) {
	var wishlist models.Wishlist
	err := db.Collection("wishlists").FindOne(ctx, bson.M{"userId": userID}).Decode(&wishlist)
	if err == nil {
		return wishlist, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Wishlist{}, err
	}

	now := time.Now()
	wishlist = models.Wishlist{
		UserID:    userID,
		Items:     []models.WishlistItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	result, err := db.Collection("wishlists").InsertOne(ctx, wishlist)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = db.Collection("wishlists").FindOne(ctx, bson.M{"userId": userID}).Decode(&wishlist)
			return wishlist, err
		}
		return models.Wishlist{}, err
	}
	wishlist.ID = result.InsertedID.(primitive.ObjectID)
	return wishlist, nil
}

func GetWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/wishlist"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		wishlist, err := loadOrCreateWishlist(ctx, db, principal.UserID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusOK, wishlist)
	}
}

func AddWishlistItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/wishlist"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req WishlistAddRequest
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

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{
			"_id":       productID,
			"isActive":  true,
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}

		wishlist, err := loadOrCreateWishlist(ctx, db, principal.UserID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		for _, item := range wishlist.Items {
			if item.ProductID == productID {
				respondError(c, http.StatusBadRequest, route, "product already in wishlist")
				return
			}
		}

		wishlist.Items = append(wishlist.Items, models.WishlistItem{
			ProductID: productID,
			Notes:     req.Notes,
			AddedAt:   time.Now(),
		})
		wishlist.UpdatedAt = time.Now()

		if _, err := db.Collection("wishlists").UpdateByID(ctx, wishlist.ID, bson.M{
			"$set": bson.M{"items": wishlist.Items, "updatedAt": wishlist.UpdatedAt},
		}); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusCreated, wishlist)
	}
}

// wishlistItemFilter matches the user's wishlist only when the product is in
// it, so a pull against an absent item matches nothing.
func wishlistItemFilter(userID, productID primitive.ObjectID) bson.M {
	return bson.M{"userId": userID, "items.productId": productID}
}

func RemoveWishlistItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/wishlist/:productId"
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

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// The filter requires the item to be present; the $set alone would
		// always bump ModifiedCount, so absence is detected via MatchedCount.
		result, err := db.Collection("wishlists").UpdateOne(
			ctx,
			wishlistItemFilter(principal.UserID, productID),
			bson.M{
				"$pull": bson.M{"items": bson.M{"productId": productID}},
				"$set":  bson.M{"updatedAt": time.Now()},
			},
		)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondError(c, http.StatusNotFound, route, "item not in wishlist")
			return
		}

		respondMessage(c, http.StatusOK, "item removed")
	}
}
