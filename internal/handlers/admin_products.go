package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/models"
)

var (
	errEmptyVariantName = errors.New("variant name cannot be empty")
	errDuplicateVariant = errors.New("duplicate variant name")
	errNegativeVariant  = errors.New("variant price and stock cannot be negative")
)

type variantRequest struct {
	Name       string `json:"name" binding:"required"`
	PriceCents int64  `json:"priceCents" binding:"required,min=0"`
	Stock      int    `json:"stock" binding:"min=0"`
}

type ProductCreateRequest struct {
	Name           string           `json:"name" binding:"required"`
	SKU            string           `json:"sku"`
	Description    string           `json:"description"`
	PriceCents     int64            `json:"priceCents" binding:"required,min=0"`
	SaleEnabled    bool             `json:"saleEnabled"`
	SalePriceCents int64            `json:"salePriceCents"`
	CategoryID     string           `json:"categoryId"`
	Brand          string           `json:"brand"`
	Stock          int              `json:"stock" binding:"min=0"`
	Variants       []variantRequest `json:"variants"`
	IsActive       *bool            `json:"isActive"`
}

// ProductUpdateRequest is the allow-listed update set. Fields omitted from
// the payload are left untouched.
type ProductUpdateRequest struct {
	Name           *string           `json:"name"`
	SKU            *string           `json:"sku"`
	Description    *string           `json:"description"`
	PriceCents     *int64            `json:"priceCents"`
	SaleEnabled    *bool             `json:"saleEnabled"`
	SalePriceCents *int64            `json:"salePriceCents"`
	CategoryID     *string           `json:"categoryId"`
	Brand          *string           `json:"brand"`
	Stock          *int              `json:"stock"`
	Variants       *[]variantRequest `json:"variants"`
	IsActive       *bool             `json:"isActive"`
}

func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
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

		respondPage(c, products, page, limit, total)
	}
}

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/products"
		defer handlePanic(c, route)

		var req ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		salePriceSet := req.SalePriceCents > 0
		if err := validateSaleFields(req.PriceCents, req.SaleEnabled, req.SalePriceCents, salePriceSet); err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var categoryID *primitive.ObjectID
		if trimmed := strings.TrimSpace(req.CategoryID); trimmed != "" {
			id, err := primitive.ObjectIDFromHex(trimmed)
			if err != nil {
				respondError(c, http.StatusBadRequest, route, "invalid categoryId")
				return
			}
			count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": id})
			if err != nil {
				respondError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if count == 0 {
				respondError(c, http.StatusBadRequest, route, "category not found")
				return
			}
			categoryID = &id
		}

		variants, err := buildVariants(req.Variants)
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		now := time.Now()
		product := models.Product{
			Name:           strings.TrimSpace(req.Name),
			SKU:            strings.TrimSpace(req.SKU),
			Description:    strings.TrimSpace(req.Description),
			PriceCents:     req.PriceCents,
			SaleEnabled:    req.SaleEnabled,
			SalePriceCents: req.SalePriceCents,
			CategoryID:     categoryID,
			Brand:          strings.TrimSpace(req.Brand),
			Stock:          req.Stock,
			Variants:       variants,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		product.ID = res.InsertedID.(primitive.ObjectID)

		log.Printf("[%s] product created: %s", route, product.ID.Hex())
		respondData(c, http.StatusCreated, product)
	}
}

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/products/:id"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&existing)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		update := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.SKU != nil {
			update["sku"] = strings.TrimSpace(*req.SKU)
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Brand != nil {
			update["brand"] = strings.TrimSpace(*req.Brand)
		}
		if req.Stock != nil {
			if *req.Stock < 0 {
				respondError(c, http.StatusBadRequest, route, "stock cannot be negative")
				return
			}
			update["stock"] = *req.Stock
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}

		if req.PriceCents != nil && *req.PriceCents < 0 {
			respondError(c, http.StatusBadRequest, route, "priceCents cannot be negative")
			return
		}

		sale, err := resolveSaleUpdate(existing.PriceCents, existing.SaleEnabled, existing.SalePriceCents, saleUpdateInput{
			PriceCents:     req.PriceCents,
			SaleEnabled:    req.SaleEnabled,
			SalePriceCents: req.SalePriceCents,
		})
		if err != nil {
			respondError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if req.PriceCents != nil {
			update["priceCents"] = sale.PriceCents
		}
		if sale.SetSaleEnabled {
			update["saleEnabled"] = sale.SaleEnabled
		}
		if sale.SetSalePrice {
			update["salePriceCents"] = sale.SalePriceCents
		}

		if req.CategoryID != nil {
			trimmed := strings.TrimSpace(*req.CategoryID)
			if trimmed == "" {
				update["categoryId"] = nil
			} else {
				id, err := primitive.ObjectIDFromHex(trimmed)
				if err != nil {
					respondError(c, http.StatusBadRequest, route, "invalid categoryId")
					return
				}
				count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": id})
				if err != nil {
					respondError(c, http.StatusInternalServerError, route, "db error")
					return
				}
				if count == 0 {
					respondError(c, http.StatusBadRequest, route, "category not found")
					return
				}
				update["categoryId"] = id
			}
		}

		if req.Variants != nil {
			variants, err := buildVariants(*req.Variants)
			if err != nil {
				respondError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			update["variants"] = variants
		}

		if len(update) == 0 {
			respondError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now()

		var updated models.Product
		err = db.Collection("products").
			FindOneAndUpdate(
				ctx,
				bson.M{"_id": productID},
				bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusOK, updated)
	}
}

// DeleteProduct soft-deletes so existing order snapshots keep a referent.
func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/products/:id"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("products").UpdateOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}, bson.M{
			"$set": bson.M{
				"isDeleted": true,
				"isActive":  false,
				"deletedAt": now,
				"updatedAt": now,
			},
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondError(c, http.StatusNotFound, route, "product not found")
			return
		}

		log.Printf("[%s] product soft-deleted: %s", route, productID.Hex())
		respondMessage(c, http.StatusOK, "product deleted")
	}
}

func buildVariants(reqs []variantRequest) ([]models.Variant, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	variants := make([]models.Variant, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, v := range reqs {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return nil, errEmptyVariantName
		}
		if seen[strings.ToLower(name)] {
			return nil, errDuplicateVariant
		}
		seen[strings.ToLower(name)] = true
		if v.PriceCents < 0 || v.Stock < 0 {
			return nil, errNegativeVariant
		}
		variants = append(variants, models.Variant{
			ID:         uuid.NewString(),
			Name:       name,
			PriceCents: v.PriceCents,
			Stock:      v.Stock,
		})
	}
	return variants, nil
}
