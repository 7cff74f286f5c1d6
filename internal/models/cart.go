package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem holds a price snapshot taken when the item was added. The snapshot
// may drift from the live product price; cart reads reconcile it.
type CartItem struct {
	ProductID  primitive.ObjectID `bson:"productId" json:"productId"`
	VariantID  string             `bson:"variantId,omitempty" json:"variantId,omitempty"`
	Name       string             `bson:"name" json:"name"`
	PriceCents int64              `bson:"priceCents" json:"priceCents"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	AddedAt    time.Time          `bson:"addedAt" json:"addedAt"`
}

// Cart is one document per user, created lazily on first access.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
