package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Variant is a product sub-option with its own price and stock.
type Variant struct {
	ID         string `bson:"id" json:"id"`
	Name       string `bson:"name" json:"name"`
	PriceCents int64  `bson:"priceCents" json:"priceCents"`
	Stock      int    `bson:"stock" json:"stock"`
}

// Review is a customer rating embedded in the product document. One review
// per user; the product's averageRating is recomputed on every write.
type Review struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	UserName  string             `bson:"userName" json:"userName"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Product struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"name" json:"name"`
	SKU            string              `bson:"sku,omitempty" json:"sku,omitempty"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	PriceCents     int64               `bson:"priceCents" json:"priceCents"`
	SaleEnabled    bool                `bson:"saleEnabled" json:"saleEnabled"`
	SalePriceCents int64               `bson:"salePriceCents" json:"salePriceCents"`
	CategoryID     *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Brand          string              `bson:"brand,omitempty" json:"brand,omitempty"`
	ImagePath      string              `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Stock          int                 `bson:"stock" json:"stock"`
	Sold           int                 `bson:"sold" json:"sold"`
	Variants       []Variant           `bson:"variants,omitempty" json:"variants,omitempty"`
	Reviews        []Review            `bson:"reviews,omitempty" json:"reviews,omitempty"`
	AverageRating  float64             `bson:"averageRating" json:"averageRating"`
	RatingCount    int                 `bson:"ratingCount" json:"ratingCount"`
	IsActive       bool                `bson:"isActive" json:"isActive"`
	IsDeleted      bool                `bson:"isDeleted" json:"-"`
	DeletedAt      *time.Time          `bson:"deletedAt,omitempty" json:"-"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// InStock reports whether any sellable stock remains, counting variants when
// the product has them.
func (p Product) InStock() bool {
	if len(p.Variants) == 0 {
		return p.Stock > 0
	}
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}
