package facematch

import (
	"errors"
	"path/filepath"
	"testing"
)

func testGallery(t *testing.T) *Gallery {
	t.Helper()
	g := NewGallery(0.6)
	refs := []Reference{
		{ID: "alice.jpg", Label: "Alice", Embedding: []float32{0, 0, 0}},
		{ID: "bob.jpg", Label: "Bob", Embedding: []float32{1, 0, 0}},
		{ID: "carol.png", Label: "Carol", Embedding: []float32{0, 1, 0}},
	}
	for _, ref := range refs {
		if err := g.Add(ref); err != nil {
			t.Fatalf("Add(%s) error = %v", ref.ID, err)
		}
	}
	return g
}

func TestGallery_Match(t *testing.T) {
	g := testGallery(t)

	tests := []struct {
		name      string
		query     []float32
		wantLabel string
		wantOK    bool
	}{
		{name: "exact", query: []float32{0, 0, 0}, wantLabel: "Alice", wantOK: true},
		{name: "nearest wins", query: []float32{0.7, 0, 0}, wantLabel: "Bob", wantOK: true},
		{name: "within tolerance", query: []float32{0, 1, 0.5}, wantLabel: "Carol", wantOK: true},
		{name: "too far", query: []float32{0, 0, 5}, wantOK: false},
		{name: "wrong dimension", query: []float32{0, 0}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := g.Match(tt.query)
			if ok != tt.wantOK {
				t.Fatalf("Match(%v) ok = %v, want %v (match %+v)", tt.query, ok, tt.wantOK, m)
			}
			if ok && m.Label != tt.wantLabel {
				t.Errorf("Match(%v) label = %q, want %q", tt.query, m.Label, tt.wantLabel)
			}
		})
	}
}

func TestGallery_ToleranceIsInclusive(t *testing.T) {
	g := NewGallery(0.5)
	if err := g.Add(Reference{ID: "alice.jpg", Label: "Alice", Embedding: []float32{0, 0}}); err != nil {
		t.Fatal(err)
	}

	if m, ok := g.Match([]float32{0.5, 0}); !ok || m.Distance != 0.5 {
		t.Errorf("Match() at tolerance = %+v, %v; want match at 0.5", m, ok)
	}
	if _, ok := g.Match([]float32{0.5, 0.01}); ok {
		t.Error("Match() just beyond tolerance returned a match")
	}
}

func TestGallery_MatchEmpty(t *testing.T) {
	if _, ok := NewGallery(0).Match([]float32{1, 2, 3}); ok {
		t.Error("Match() on empty gallery returned a match")
	}
}

func TestGallery_Add(t *testing.T) {
	g := testGallery(t)

	err := g.Add(Reference{ID: "dave.jpg", Label: "Dave", Embedding: []float32{1, 2}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add() with wrong dimension error = %v, want ErrDimensionMismatch", err)
	}
	if err := g.Add(Reference{ID: "eve.jpg", Label: "Eve"}); err == nil {
		t.Error("Add() with empty embedding succeeded")
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}

	got := g.Labels()
	want := []string{"Alice", "Bob", "Carol"}
	if len(got) != len(want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Labels()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGallery_DefaultTolerance(t *testing.T) {
	if got := NewGallery(0).Tolerance(); got != 0.6 {
		t.Errorf("Tolerance() = %v, want 0.6", got)
	}
}

func TestGallery_SaveLoad(t *testing.T) {
	g := testGallery(t)
	path := filepath.Join(t.TempDir(), "gallery.hnsw")

	if err := g.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadGallery(path, 0)
	if err != nil {
		t.Fatalf("LoadGallery() error = %v", err)
	}
	if loaded.Len() != 3 {
		t.Errorf("Len() = %d, want 3", loaded.Len())
	}
	if loaded.Tolerance() != 0.6 {
		t.Errorf("Tolerance() = %v, want stored 0.6", loaded.Tolerance())
	}

	m, ok := loaded.Match([]float32{0.9, 0.1, 0})
	if !ok || m.Label != "Bob" {
		t.Errorf("Match() after load = %+v, %v; want Bob", m, ok)
	}

	stricter, err := LoadGallery(path, 0.1)
	if err != nil {
		t.Fatalf("LoadGallery(0.1) error = %v", err)
	}
	if _, ok := stricter.Match([]float32{0.8, 0, 0}); ok {
		t.Error("Match() beyond overridden tolerance returned a match")
	}
}

func TestLoadGallery_Missing(t *testing.T) {
	if _, err := LoadGallery(filepath.Join(t.TempDir(), "none.hnsw"), 0); err == nil {
		t.Error("LoadGallery() of missing file succeeded")
	}
}
