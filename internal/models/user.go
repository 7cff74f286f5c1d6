package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Address represents a single address entry embedded in a user document.
type Address struct {
	ID        string `bson:"id" json:"id"`
	Title     string `bson:"title" json:"title"`
	FullName  string `bson:"fullName" json:"fullName"`
	Line1     string `bson:"line1" json:"line1"`
	Line2     string `bson:"line2,omitempty" json:"line2,omitempty"`
	City      string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country   string `bson:"country" json:"country"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
	IsDefault bool   `bson:"isDefault" json:"isDefault"`
}

// User represents the application account. Admins are users with the admin
// role; there is no separate admin collection.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"passwordHash,omitempty" json:"-"`
	Name          string             `bson:"name" json:"name"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role          string             `bson:"role" json:"role"`
	EmailVerified bool               `bson:"emailVerified" json:"emailVerified"`
	PhoneVerified bool               `bson:"phoneVerified" json:"phoneVerified"`
	GoogleID      string             `bson:"googleId,omitempty" json:"-"`
	Addresses     []Address          `bson:"addresses" json:"addresses"`
	IsDeleted     bool               `bson:"isDeleted" json:"-"`
	DeletedAt     *time.Time         `bson:"deletedAt,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
