package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
)

var productSortFields = map[string]string{
	"price":     "priceCents",
	"name":      "name",
	"rating":    "averageRating",
	"createdAt": "createdAt",
	"sold":      "sold",
}

// buildProductFilter translates the public query params into a Mongo filter.
// Split out so the translation is testable without a database.
func buildProductFilter(q productQuery) bson.M {
	filter := bson.M{
		"isActive":  bson.M{"$ne": false},
		"isDeleted": bson.M{"$ne": true},
	}

	if q.CategoryID != nil {
		filter["categoryId"] = *q.CategoryID
	}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": q.Search, "$options": "i"}
	}

	price := bson.M{}
	if q.MinPriceCents != nil {
		price["$gte"] = *q.MinPriceCents
	}
	if q.MaxPriceCents != nil {
		price["$lte"] = *q.MaxPriceCents
	}
	if len(price) > 0 {
		filter["priceCents"] = price
	}

	if q.InStock {
		filter["stock"] = bson.M{"$gt": 0}
	}
	if q.MinRating != nil {
		filter["averageRating"] = bson.M{"$gte": *q.MinRating}
	}

	return filter
}

type productQuery struct {
	CategoryID    *primitive.ObjectID
	Search        string
	MinPriceCents *int64
	MaxPriceCents *int64
	InStock       bool
	MinRating     *float64
	SortField     string
	SortOrder     int
}

func parseProductQuery(c *gin.Context) (productQuery, error) {
	q := productQuery{SortField: "createdAt", SortOrder: -1}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		id, err := primitive.ObjectIDFromHex(category)
		if err != nil {
			return q, errInvalidPagination
		}
		q.CategoryID = &id
	}

	q.Search = strings.TrimSpace(c.Query("search"))

	if v := strings.TrimSpace(c.Query("minPrice")); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil || cents < 0 {
			return q, errInvalidPagination
		}
		q.MinPriceCents = &cents
	}
	if v := strings.TrimSpace(c.Query("maxPrice")); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil || cents < 0 {
			return q, errInvalidPagination
		}
		q.MaxPriceCents = &cents
	}

	q.InStock = strings.TrimSpace(c.Query("inStock")) == "true"

	if v := strings.TrimSpace(c.Query("rating")); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			return q, errInvalidPagination
		}
		q.MinRating = &rating
	}

	if sortBy := strings.TrimSpace(c.Query("sortBy")); sortBy != "" {
		field, ok := productSortFields[sortBy]
		if !ok {
			return q, errInvalidPagination
		}
		q.SortField = field
	}
	if strings.TrimSpace(c.Query("sortOrder")) == "asc" {
		q.SortOrder = 1
	}

	return q, nil
}

func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		query, err := parseProductQuery(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid query params")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := buildProductFilter(query)
		findOptions := options.Find().
			SetSort(bson.D{{Key: query.SortField, Value: query.SortOrder}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection("products").Find(ctx, filter, findOptions)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products := make([]models.Product, 0)
		if err := cursor.All(ctx, &products); err != nil {
			respondError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		log.Printf("[%s] returning %d products", route, len(products))
		respondPage(c, products, page, limit, total)
	}
}

func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusOK, product)
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// AddReview appends one review per user and recomputes the stored average.
func AddReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/products/:id/reviews"
		defer handlePanic(c, route)

		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		for _, review := range product.Reviews {
			if review.UserID == principal.UserID {
				respondError(c, http.StatusBadRequest, route, "product already reviewed")
				return
			}
		}

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": principal.UserID}).Decode(&user); err != nil {
			respondError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		review := models.Review{
			UserID:    principal.UserID,
			UserName:  user.Name,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: time.Now(),
		}

		reviews := append(product.Reviews, review)
		average, count := averageRating(reviews)

		_, err = db.Collection("products").UpdateByID(ctx, productID, bson.M{
			"$push": bson.M{"reviews": review},
			"$set": bson.M{
				"averageRating": average,
				"ratingCount":   count,
				"updatedAt":     time.Now(),
			},
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] review added for product %s", route, productID.Hex())
		respondData(c, http.StatusCreated, review)
	}
}

func averageRating(reviews []models.Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews)
}
