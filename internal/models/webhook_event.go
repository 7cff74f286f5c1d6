package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookEvent marks a processor event as handled. The unique eventId index
// makes redelivered events no-ops instead of re-applying their mutation.
type WebhookEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     string             `bson:"eventId" json:"eventId"`
	Type        string             `bson:"type" json:"type"`
	OrderID     string             `bson:"orderId,omitempty" json:"orderId,omitempty"`
	ReceivedAt  time.Time          `bson:"receivedAt" json:"receivedAt"`
	ProcessedAt time.Time          `bson:"processedAt" json:"processedAt"`
}
