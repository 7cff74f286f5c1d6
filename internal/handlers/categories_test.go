package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

func TestChildPathRoot(t *testing.T) {
	id := primitive.NewObjectID()

	path, level := childPath(id, nil)

	if level != 0 {
		t.Fatalf("expected level 0 for root, got %d", level)
	}
	if len(path) != 1 || path[0] != id {
		t.Fatalf("expected path [self], got %v", path)
	}
}

func TestChildPathNested(t *testing.T) {
	rootID := primitive.NewObjectID()
	midID := primitive.NewObjectID()
	leafID := primitive.NewObjectID()

	mid := models.Category{
		ID:    midID,
		Path:  []primitive.ObjectID{rootID, midID},
		Level: 1,
	}

	path, level := childPath(leafID, &mid)

	if level != 2 {
		t.Fatalf("expected level 2, got %d", level)
	}
	want := []primitive.ObjectID{rootID, midID, leafID}
	if len(path) != len(want) {
		t.Fatalf("expected path length %d, got %d", len(want), len(path))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d] = %v, want %v", i, path[i], want[i])
		}
	}
}

func TestChildPathDoesNotAliasParent(t *testing.T) {
	rootID := primitive.NewObjectID()
	parent := models.Category{
		ID:    rootID,
		Path:  []primitive.ObjectID{rootID},
		Level: 0,
	}

	childID := primitive.NewObjectID()
	path, _ := childPath(childID, &parent)
	path[0] = primitive.NewObjectID()

	if parent.Path[0] != rootID {
		t.Fatal("mutating the child path must not touch the parent path")
	}
}

func TestWouldCycle(t *testing.T) {
	rootID := primitive.NewObjectID()
	midID := primitive.NewObjectID()

	mid := models.Category{
		ID:    midID,
		Path:  []primitive.ObjectID{rootID, midID},
		Level: 1,
	}

	if !wouldCycle(rootID, &mid) {
		t.Fatal("moving an ancestor under its descendant must be a cycle")
	}
	if wouldCycle(primitive.NewObjectID(), &mid) {
		t.Fatal("unrelated category must not be a cycle")
	}
	if wouldCycle(rootID, nil) {
		t.Fatal("moving to root is never a cycle")
	}
}
