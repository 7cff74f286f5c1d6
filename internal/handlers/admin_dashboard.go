package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/models"
)

const lowStockThreshold = 5

type dashboardCounts struct {
	Users         int64 `json:"users"`
	Products      int64 `json:"products"`
	Orders        int64 `json:"orders"`
	PendingOrders int64 `json:"pendingOrders"`
}

type revenuePoint struct {
	Day          string `bson:"_id" json:"day"`
	RevenueCents int64  `bson:"revenueCents" json:"revenueCents"`
	Orders       int64  `bson:"orders" json:"orders"`
}

type categorySales struct {
	CategoryID   interface{} `bson:"_id" json:"categoryId"`
	CategoryName string      `bson:"categoryName" json:"categoryName"`
	UnitsSold    int64       `bson:"unitsSold" json:"unitsSold"`
	RevenueCents int64       `bson:"revenueCents" json:"revenueCents"`
}

// GetDashboard assembles the admin landing page numbers: entity counts, paid
// revenue per day over the last 30 days, sales grouped by category, products
// running low and the most recent orders.
func GetDashboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/dashboard"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		counts, err := collectCounts(ctx, db)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		revenue, err := revenueByDay(ctx, db, 30)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		byCategory, err := salesByCategory(ctx, db)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		lowStock, err := lowStockProducts(ctx, db)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		recent, err := recentOrders(ctx, db, 10)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusOK, gin.H{
			"counts":          counts,
			"revenueByDay":    revenue,
			"salesByCategory": byCategory,
			"lowStock":        lowStock,
			"recentOrders":    recent,
		})
	}
}

func collectCounts(ctx context.Context, db *mongo.Database) (dashboardCounts, error) {
	var counts dashboardCounts
	var err error

	counts.Users, err = db.Collection("users").CountDocuments(ctx, bson.M{"isDeleted": bson.M{"$ne": true}})
	if err != nil {
		return counts, err
	}
	counts.Products, err = db.Collection("products").CountDocuments(ctx, bson.M{"isDeleted": bson.M{"$ne": true}})
	if err != nil {
		return counts, err
	}
	counts.Orders, err = db.Collection("orders").CountDocuments(ctx, bson.M{})
	if err != nil {
		return counts, err
	}
	counts.PendingOrders, err = db.Collection("orders").CountDocuments(ctx, bson.M{"status": models.OrderStatusPending})
	return counts, err
}

func revenueByDay(ctx context.Context, db *mongo.Database, days int) ([]revenuePoint, error) {
	since := time.Now().AddDate(0, 0, -days)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"paymentStatus": models.PaymentStatusPaid,
			"createdAt":     bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$createdAt",
			}},
			"revenueCents": bson.M{"$sum": "$totalCents"},
			"orders":       bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	points := make([]revenuePoint, 0)
	if err := cursor.All(ctx, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func salesByCategory(ctx context.Context, db *mongo.Database) ([]categorySales, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"paymentStatus": models.PaymentStatusPaid}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "products",
			"localField":   "items.productId",
			"foreignField": "_id",
			"as":           "product",
		}}},
		{{Key: "$unwind", Value: "$product"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "categories",
			"localField":   "product.categoryId",
			"foreignField": "_id",
			"as":           "category",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$category", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$product.categoryId",
			"categoryName": bson.M{"$first": bson.M{"$ifNull": []interface{}{"$category.name", "uncategorized"}}},
			"unitsSold":    bson.M{"$sum": "$items.quantity"},
			"revenueCents": bson.M{"$sum": bson.M{"$multiply": []interface{}{"$items.priceCents", "$items.quantity"}}},
		}}},
		{{Key: "$sort", Value: bson.M{"revenueCents": -1}}},
	}

	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sales := make([]categorySales, 0)
	if err := cursor.All(ctx, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func lowStockProducts(ctx context.Context, db *mongo.Database) ([]models.Product, error) {
	filter := bson.M{
		"isActive":  true,
		"isDeleted": bson.M{"$ne": true},
		"$or": []bson.M{
			{"variants": bson.M{"$size": 0}, "stock": bson.M{"$lte": lowStockThreshold}},
			{"variants": bson.M{"$exists": false}, "stock": bson.M{"$lte": lowStockThreshold}},
			{"variants.stock": bson.M{"$lte": lowStockThreshold}},
		},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "stock", Value: 1}}).
		SetLimit(20)

	cursor, err := db.Collection("products").Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func recentOrders(ctx context.Context, db *mongo.Database, limit int64) ([]models.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := db.Collection("orders").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
