package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order status values.
const (
	OrderStatusPending       = "pending"
	OrderStatusConfirmed     = "confirmed"
	OrderStatusProcessing    = "processing"
	OrderStatusShipped       = "shipped"
	OrderStatusDelivered     = "delivered"
	OrderStatusCancelled     = "cancelled"
	OrderStatusPaymentFailed = "payment_failed"
)

// Payment status values.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// OrderItem is a snapshot of the product at purchase time. Name, SKU and unit
// price never change after the order is created.
type OrderItem struct {
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	Name        string             `bson:"name" json:"name"`
	SKU         string             `bson:"sku,omitempty" json:"sku,omitempty"`
	VariantID   string             `bson:"variantId,omitempty" json:"variantId,omitempty"`
	VariantName string             `bson:"variantName,omitempty" json:"variantName,omitempty"`
	PriceCents  int64              `bson:"priceCents" json:"priceCents"`
	Quantity    int                `bson:"quantity" json:"quantity"`
}

// OrderAddress is the address snapshot captured at checkout.
type OrderAddress struct {
	FullName   string `bson:"fullName" json:"fullName"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// TimelineEntry records a single status transition.
type TimelineEntry struct {
	Status string    `bson:"status" json:"status"`
	Note   string    `bson:"note,omitempty" json:"note,omitempty"`
	At     time.Time `bson:"at" json:"at"`
}

// Refund records one processor refund applied to this order.
type Refund struct {
	RefundID    string    `bson:"refundId" json:"refundId"`
	AmountCents int64     `bson:"amountCents" json:"amountCents"`
	Currency    string    `bson:"currency" json:"currency"`
	Reason      string    `bson:"reason,omitempty" json:"reason,omitempty"`
	At          time.Time `bson:"at" json:"at"`
}

// Order defines the persisted order document. Orders are never deleted; they
// only move through statuses.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress OrderAddress       `bson:"shippingAddress" json:"shippingAddress"`
	BillingAddress  OrderAddress       `bson:"billingAddress" json:"billingAddress"`
	SubtotalCents   int64              `bson:"subtotalCents" json:"subtotalCents"`
	TaxCents        int64              `bson:"taxCents" json:"taxCents"`
	ShippingCents   int64              `bson:"shippingCents" json:"shippingCents"`
	TotalCents      int64              `bson:"totalCents" json:"totalCents"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentIntentID string             `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	Status          string             `bson:"status" json:"status"`
	PaymentStatus   string             `bson:"paymentStatus" json:"paymentStatus"`
	Timeline        []TimelineEntry    `bson:"timeline" json:"timeline"`
	Refunds         []Refund           `bson:"refunds,omitempty" json:"refunds,omitempty"`
	CancelReason    string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RefundedCents sums all refunds recorded so far.
func (o Order) RefundedCents() int64 {
	var total int64
	for _, r := range o.Refunds {
		total += r.AmountCents
	}
	return total
}
