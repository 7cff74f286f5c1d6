package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is hierarchical: Path is the materialized list of ancestor ids
// from the root down to (and including) this category, Level is its depth
// starting at 0 for roots.
type Category struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	ParentID  *primitive.ObjectID  `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Path      []primitive.ObjectID `bson:"path" json:"path"`
	Level     int                  `bson:"level" json:"level"`
	IsActive  bool                 `bson:"isActive" json:"isActive"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
}
