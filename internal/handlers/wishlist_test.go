package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWishlistItemFilterRequiresItemPresence(t *testing.T) {
	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()

	filter := wishlistItemFilter(userID, productID)

	if got := filter["userId"]; got != userID {
		t.Fatalf("expected filter to scope to userId %s, got %v", userID.Hex(), got)
	}
	// Without this condition a removal of an absent item still matches the
	// wishlist document and the timestamp $set reports it as modified.
	if got := filter["items.productId"]; got != productID {
		t.Fatalf("expected filter to require items.productId %s, got %v", productID.Hex(), got)
	}
}
