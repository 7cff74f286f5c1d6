package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
)

// ListUsers returns users for the admin panel, with optional role and
// deleted filters. Password hashes never leave the handler.
func ListUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/users"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if role := strings.TrimSpace(c.Query("role")); role != "" {
			filter["role"] = role
		}
		switch c.Query("deleted") {
		case "true":
			filter["isDeleted"] = true
		case "false", "":
			filter["isDeleted"] = bson.M{"$ne": true}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("users").CountDocuments(ctx, filter)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := findPageOptions(page, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("users").Find(ctx, filter, opts)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		users := make([]models.User, 0)
		if err := cursor.All(ctx, &users); err != nil {
			respondError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		summaries := make([]gin.H, 0, len(users))
		for _, user := range users {
			summaries = append(summaries, gin.H{
				"id":            user.ID.Hex(),
				"email":         user.Email,
				"name":          user.Name,
				"role":          user.Role,
				"emailVerified": user.EmailVerified,
				"isDeleted":     user.IsDeleted,
				"createdAt":     user.CreatedAt,
			})
		}

		respondPage(c, summaries, page, limit, total)
	}
}

// DeleteUser removes a user account entirely. Refused while the user still
// has orders in flight; completed history keeps the account soft-deleted
// instead, preserving order ownership.
func DeleteUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/users/:id"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		userID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		if userID == principal.UserID {
			respondError(c, http.StatusBadRequest, route, "admins cannot delete their own account")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		activeStatuses := []string{
			models.OrderStatusPending,
			models.OrderStatusConfirmed,
			models.OrderStatusProcessing,
			models.OrderStatusShipped,
		}
		active, err := db.Collection("orders").CountDocuments(ctx, bson.M{
			"userId": userID,
			"status": bson.M{"$in": activeStatuses},
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if active > 0 {
			respondError(c, http.StatusBadRequest, route, "user has orders in progress")
			return
		}

		anyOrders, err := db.Collection("orders").CountDocuments(ctx, bson.M{"userId": userID})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if anyOrders > 0 {
			now := time.Now()
			result, err := db.Collection("users").UpdateOne(
				ctx,
				bson.M{"_id": userID},
				bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
			)
			if err != nil {
				respondError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if result.MatchedCount == 0 {
				respondError(c, http.StatusNotFound, route, "user not found")
				return
			}
		} else {
			result, err := db.Collection("users").DeleteOne(ctx, bson.M{"_id": userID})
			if err != nil {
				respondError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if result.DeletedCount == 0 {
				respondError(c, http.StatusNotFound, route, "user not found")
				return
			}
		}

		if _, err := db.Collection("refresh_tokens").UpdateMany(
			ctx,
			bson.M{"userId": userID, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true}},
		); err != nil {
			log.Printf("[%s] refresh token revocation failed for %s: %v", route, userID.Hex(), err)
		}

		respondMessage(c, http.StatusOK, "user deleted")
	}
}
