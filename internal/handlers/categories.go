package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/models"
)

type CategoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parentId"`
	IsActive *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
	IsActive *bool   `json:"isActive"`
}

var errCategoryCycle = errors.New("category cannot be its own ancestor")

// childPath derives the materialized path and level for a category placed
// under parent (nil for roots). The path includes the category's own id.
func childPath(id primitive.ObjectID, parent *models.Category) ([]primitive.ObjectID, int) {
	if parent == nil {
		return []primitive.ObjectID{id}, 0
	}
	path := make([]primitive.ObjectID, 0, len(parent.Path)+1)
	path = append(path, parent.Path...)
	path = append(path, id)
	return path, parent.Level + 1
}

// wouldCycle reports whether moving category id under parent would make it
// its own ancestor.
func wouldCycle(id primitive.ObjectID, parent *models.Category) bool {
	if parent == nil {
		return false
	}
	for _, ancestor := range parent.Path {
		if ancestor == id {
			return true
		}
	}
	return false
}

// GetCategories lists active categories ordered so parents come before their
// children, which lets the SPA assemble the tree in one pass.
func GetCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/categories"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{
			{Key: "level", Value: 1},
			{Key: "name", Value: 1},
		})

		cursor, err := db.Collection("categories").Find(ctx, bson.M{"isActive": true}, opts)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		categories := make([]models.Category, 0)
		if err := cursor.All(ctx, &categories); err != nil {
			respondError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		log.Printf("[%s] returning %d categories", route, len(categories))
		respondData(c, http.StatusOK, categories)
	}
}

func GetAllCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/categories"
		defer handlePanic(c, route)

		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{
			{Key: "level", Value: 1},
			{Key: "name", Value: 1},
		})

		cursor, err := db.Collection("categories").Find(ctx, filter, opts)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		categories := make([]models.Category, 0)
		if err := cursor.All(ctx, &categories); err != nil {
			respondError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		respondData(c, http.StatusOK, categories)
	}
}

func CreateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/categories"
		defer handlePanic(c, route)

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var parent *models.Category
		if trimmed := strings.TrimSpace(req.ParentID); trimmed != "" {
			parentID, err := primitive.ObjectIDFromHex(trimmed)
			if err != nil {
				respondError(c, http.StatusBadRequest, route, "invalid parentId")
				return
			}
			var found models.Category
			if err := db.Collection("categories").FindOne(ctx, bson.M{"_id": parentID}).Decode(&found); err != nil {
				respondError(c, http.StatusBadRequest, route, "parent category not found")
				return
			}
			parent = &found
		}

		count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"name": name})
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondError(c, http.StatusConflict, route, "category already exists")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		id := primitive.NewObjectID()
		path, level := childPath(id, parent)

		category := models.Category{
			ID:        id,
			Name:      name,
			Path:      path,
			Level:     level,
			IsActive:  isActive,
			CreatedAt: time.Now(),
		}
		if parent != nil {
			category.ParentID = &parent.ID
		}

		if _, err := db.Collection("categories").InsertOne(ctx, category); err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondData(c, http.StatusCreated, category)
	}
}

func UpdateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/categories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		update := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}

		if req.ParentID != nil {
			var parent *models.Category
			if trimmed := strings.TrimSpace(*req.ParentID); trimmed != "" {
				parentID, err := primitive.ObjectIDFromHex(trimmed)
				if err != nil {
					respondError(c, http.StatusBadRequest, route, "invalid parentId")
					return
				}
				var found models.Category
				if err := db.Collection("categories").FindOne(ctx, bson.M{"_id": parentID}).Decode(&found); err != nil {
					respondError(c, http.StatusBadRequest, route, "parent category not found")
					return
				}
				parent = &found
			}

			if wouldCycle(id, parent) {
				respondError(c, http.StatusBadRequest, route, errCategoryCycle.Error())
				return
			}

			path, level := childPath(id, parent)
			update["path"] = path
			update["level"] = level
			if parent != nil {
				update["parentId"] = parent.ID
			} else {
				update["parentId"] = nil
			}
		}

		if len(update) == 0 {
			respondError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		var updated models.Category
		err = db.Collection("categories").
			FindOneAndUpdate(
				ctx,
				bson.M{"_id": id},
				bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)
		if err == mongo.ErrNoDocuments {
			respondError(c, http.StatusNotFound, route, "category not found")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		// Reparenting invalidates descendant paths; rebuild them.
		if _, ok := update["path"]; ok {
			if err := rebuildDescendantPaths(ctx, db, updated); err != nil {
				log.Printf("[%s] descendant path rebuild failed: %v", route, err)
			}
		}

		respondData(c, http.StatusOK, updated)
	}
}

// DeleteCategory soft-deletes by deactivation, matching product soft-delete.
func DeleteCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/categories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := db.Collection("categories").UpdateOne(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isActive": false}},
		)
		if err != nil {
			respondError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondError(c, http.StatusNotFound, route, "category not found")
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func rebuildDescendantPaths(ctx context.Context, db *mongo.Database, root models.Category) error {
	cursor, err := db.Collection("categories").Find(ctx, bson.M{"parentId": root.ID})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var children []models.Category
	if err := cursor.All(ctx, &children); err != nil {
		return err
	}

	for _, child := range children {
		path, level := childPath(child.ID, &root)
		if _, err := db.Collection("categories").UpdateByID(ctx, child.ID, bson.M{
			"$set": bson.M{"path": path, "level": level},
		}); err != nil {
			return err
		}
		child.Path = path
		child.Level = level
		if err := rebuildDescendantPaths(ctx, db, child); err != nil {
			return err
		}
	}
	return nil
}
