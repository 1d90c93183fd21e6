package store

import (
	"fmt"
	"testing"
	"time"
)

func indexedIdentity(id, name string, embedding []float32) Identity {
	return Identity{ID: id, Name: name, Embedding: embedding, EnrolledAt: time.Now()}
}

func TestIdentityIndexSearch(t *testing.T) {
	idx := NewIdentityIndex()
	idx.Rebuild([]Identity{
		indexedIdentity("near", "Near", []float32{0.1, 0.1}),
		indexedIdentity("mid", "Mid", []float32{0.5, 0.5}),
		indexedIdentity("far", "Far", []float32{2, 2}),
	})

	neighbors := idx.Search([]float32{0, 0}, 2, "")
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors; want 2", len(neighbors))
	}
	if neighbors[0].IdentityID != "near" {
		t.Errorf("nearest = %q; want near", neighbors[0].IdentityID)
	}
	if neighbors[1].IdentityID != "mid" {
		t.Errorf("second = %q; want mid", neighbors[1].IdentityID)
	}
	if neighbors[0].Distance >= neighbors[1].Distance {
		t.Errorf("results not sorted by distance: %v", neighbors)
	}
	if neighbors[0].Name != "Near" {
		t.Errorf("neighbor name = %q; want Near", neighbors[0].Name)
	}
}

func TestIdentityIndexExcludes(t *testing.T) {
	idx := NewIdentityIndex()
	idx.Rebuild([]Identity{
		indexedIdentity("self", "Self", []float32{0, 0}),
		indexedIdentity("other", "Other", []float32{0.2, 0}),
	})

	neighbors := idx.Search([]float32{0, 0}, 5, "self")
	for _, n := range neighbors {
		if n.IdentityID == "self" {
			t.Fatal("excluded identity returned")
		}
	}
	if len(neighbors) != 1 || neighbors[0].IdentityID != "other" {
		t.Errorf("neighbors = %v; want only other", neighbors)
	}
}

func TestIdentityIndexAdd(t *testing.T) {
	idx := NewIdentityIndex()
	if idx.Len() != 0 {
		t.Fatalf("new index has %d entries", idx.Len())
	}

	// Add works on an index that was never rebuilt.
	idx.Add(indexedIdentity("jane", "Jane Doe", []float32{0.3, 0.4}))
	if idx.Len() != 1 {
		t.Fatalf("Len = %d; want 1", idx.Len())
	}

	neighbors := idx.Search([]float32{0.3, 0.4}, 1, "")
	if len(neighbors) != 1 || neighbors[0].IdentityID != "jane" {
		t.Fatalf("neighbors = %v; want jane", neighbors)
	}
	if neighbors[0].Distance != 0 {
		t.Errorf("self distance = %v; want 0", neighbors[0].Distance)
	}
}

func TestIdentityIndexSkipsEmptyEmbeddings(t *testing.T) {
	idx := NewIdentityIndex()
	idx.Rebuild([]Identity{
		indexedIdentity("empty", "Empty", nil),
		indexedIdentity("real", "Real", []float32{0.1}),
	})

	if idx.Len() != 1 {
		t.Errorf("Len = %d; want 1", idx.Len())
	}

	idx.Add(indexedIdentity("also-empty", "Also", nil))
	if idx.Len() != 1 {
		t.Errorf("Len after empty Add = %d; want 1", idx.Len())
	}
}

func TestIdentityIndexEmptySearch(t *testing.T) {
	idx := NewIdentityIndex()
	if got := idx.Search([]float32{1}, 3, ""); got != nil {
		t.Errorf("search on empty index = %v; want nil", got)
	}
}

func TestIdentityIndexRebuildReplaces(t *testing.T) {
	idx := NewIdentityIndex()
	for i := 0; i < 10; i++ {
		idx.Add(indexedIdentity(fmt.Sprintf("old-%d", i), "Old", []float32{float32(i)}))
	}

	idx.Rebuild([]Identity{indexedIdentity("new", "New", []float32{42})})

	if idx.Len() != 1 {
		t.Fatalf("Len after rebuild = %d; want 1", idx.Len())
	}
	neighbors := idx.Search([]float32{42}, 5, "")
	if len(neighbors) != 1 || neighbors[0].IdentityID != "new" {
		t.Errorf("neighbors = %v; want only new", neighbors)
	}
}

func TestFillDailyCounts(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	sparse := []DayCount{
		{Day: "2025-03-14", Count: 2},
		{Day: "2025-03-12", Count: 1},
	}

	filled := FillDailyCounts(sparse, now, 4)
	want := []DayCount{
		{Day: "2025-03-11", Count: 0},
		{Day: "2025-03-12", Count: 1},
		{Day: "2025-03-13", Count: 0},
		{Day: "2025-03-14", Count: 2},
	}
	if len(filled) != len(want) {
		t.Fatalf("got %d entries; want %d", len(filled), len(want))
	}
	for i := range want {
		if filled[i] != want[i] {
			t.Errorf("filled[%d] = %v; want %v", i, filled[i], want[i])
		}
	}
}
