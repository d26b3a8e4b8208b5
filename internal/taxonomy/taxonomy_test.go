package taxonomy

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestNewStore_SeedsDefaults(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if doc.Version != 1 {
		t.Errorf("Expected seeded version 1, got %d", doc.Version)
	}
	if !doc.HasTag("ai") {
		t.Error("Expected seed taxonomy to contain 'ai'")
	}
}

func TestSave_IncrementsVersion(t *testing.T) {
	store := newTestStore(t)

	doc, _ := store.Load()
	doc.Categories["technology"] = append(doc.Categories["technology"], "quantum")
	if err := store.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, _ := store.Load()
	if reloaded.Version != 2 {
		t.Errorf("Expected version 2 after save, got %d", reloaded.Version)
	}
	if !reloaded.HasTag("quantum") {
		t.Error("Saved tag missing after reload")
	}
}

func TestSave_ConflictOnStaleVersion(t *testing.T) {
	store := newTestStore(t)

	first, _ := store.Load()
	second, _ := store.Load()

	if err := store.Save(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	err := store.Save(second)
	if !errors.Is(err, ErrWriteConflict) {
		t.Errorf("Expected ErrWriteConflict for stale document, got %v", err)
	}
}

func TestPropose(t *testing.T) {
	store := newTestStore(t)

	added, err := store.Propose("robotics")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if !added {
		t.Error("Expected new tag to be proposed")
	}

	// Second proposal of the same tag is a no-op
	added, err = store.Propose("robotics")
	if err != nil {
		t.Fatalf("Second propose failed: %v", err)
	}
	if added {
		t.Error("Expected duplicate proposal to be skipped")
	}

	// Canonical tags are never proposed
	added, _ = store.Propose("ai")
	if added {
		t.Error("Canonical tag should not be proposed")
	}
}

func TestAncestors(t *testing.T) {
	doc := DefaultDocument()

	chain := doc.Ancestors("neural_network")
	if len(chain) != 2 || chain[0] != "ai" || chain[1] != "technology" {
		t.Errorf("Expected [ai technology], got %v", chain)
	}

	if got := doc.Ancestors("unknown_tag"); len(got) != 0 {
		t.Errorf("Expected no ancestors for unknown tag, got %v", got)
	}
}
