package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken is the server-side record of one refresh credential. Only a
// SHA-256 hash of the token is stored, so a leaked collection cannot mint
// sessions. Rotation revokes the old record and points it at its successor.
type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	TokenHash string             `bson:"tokenHash" json:"tokenHash"`
	Revoked   bool               `bson:"revoked" json:"revoked"`

	// ReplacedByToken is set on rotation; a revoked token presented again
	// identifies the chain to invalidate.
	ReplacedByToken *primitive.ObjectID `bson:"replacedByToken,omitempty" json:"replacedByToken,omitempty"`

	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
