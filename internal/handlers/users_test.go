package handlers

import (
	"testing"

	"storefront-backend/internal/models"
)

func testAddresses() []models.Address {
	return []models.Address{
		{ID: "a-1", Title: "Home", IsDefault: true},
		{ID: "a-2", Title: "Work"},
		{ID: "a-3", Title: "Parents"},
	}
}

func TestRemoveAddressPromotesNewDefault(t *testing.T) {
	remaining, found := removeAddress(testAddresses(), "a-1")
	if !found {
		t.Fatal("expected address a-1 to be found")
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 addresses left, got %d", len(remaining))
	}
	if !remaining[0].IsDefault {
		t.Fatal("expected the first remaining address to become the default")
	}
}

func TestRemoveAddressKeepsExistingDefault(t *testing.T) {
	remaining, found := removeAddress(testAddresses(), "a-2")
	if !found {
		t.Fatal("expected address a-2 to be found")
	}

	defaults := 0
	for _, addr := range remaining {
		if addr.IsDefault {
			defaults++
			if addr.ID != "a-1" {
				t.Fatalf("expected a-1 to stay default, got %s", addr.ID)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestRemoveAddressUnknownID(t *testing.T) {
	remaining, found := removeAddress(testAddresses(), "a-9")
	if found {
		t.Fatal("expected unknown address id to report not found")
	}
	if len(remaining) != 3 {
		t.Fatalf("expected list unchanged, got %d entries", len(remaining))
	}
}

func TestRemoveAddressLastOne(t *testing.T) {
	remaining, found := removeAddress([]models.Address{{ID: "a-1", IsDefault: true}}, "a-1")
	if !found {
		t.Fatal("expected address a-1 to be found")
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(remaining))
	}
}
