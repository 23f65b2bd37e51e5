package annotate

import (
	"errors"
	"testing"

	"firnline/api/internal/classify"
)

func vertsEqual(a []Vertex, b []Vertex) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplitAtInteriorPoint(t *testing.T) {
	reg := classify.Default()
	f := mustFeature(t, classify.BedUnspecified, []Vertex{{0, 0}, {2, 0}, {4, 0}, {6, 0}})

	a, b, err := Split(reg, f, 3, 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !vertsEqual(a.Vertices, []Vertex{{0, 0}, {2, 0}, {3, 0}}) {
		t.Fatalf("childA vertices %v", a.Vertices)
	}
	if !vertsEqual(b.Vertices, []Vertex{{3, 0}, {4, 0}, {6, 0}}) {
		t.Fatalf("childB vertices %v", b.Vertices)
	}
}

func TestSplitChildrenInheritKind(t *testing.T) {
	reg := classify.Default()
	f := mustFeature(t, classify.TemperateIce, []Vertex{{0, 0}, {4, 2}, {8, 1}})

	a, b, err := Split(reg, f, 2, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	entry, _ := reg.Lookup(classify.TemperateIce)
	for _, child := range []*Feature{a, b} {
		if child.Kind != classify.TemperateIce {
			t.Fatalf("child kind %s", child.Kind)
		}
		if child.Name != entry.Name || child.Color != entry.Color {
			t.Fatalf("child display fields not derived: %q %q", child.Name, child.Color)
		}
		if child.ID == f.ID {
			t.Fatal("child must be a new feature, not the parent")
		}
	}
}

func TestSplitDecreasingFeature(t *testing.T) {
	reg := classify.Default()
	f := mustFeature(t, classify.BedCold, []Vertex{{9, 0}, {6, 0}, {3, 0}})

	a, b, err := Split(reg, f, 5, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// Traversal runs right to left, so "before the cut" means x > 5.
	if !vertsEqual(a.Vertices, []Vertex{{9, 0}, {6, 0}, {5, 1}}) {
		t.Fatalf("childA vertices %v", a.Vertices)
	}
	if !vertsEqual(b.Vertices, []Vertex{{5, 1}, {3, 0}}) {
		t.Fatalf("childB vertices %v", b.Vertices)
	}
}

func TestSplitReconstructsOriginalVertices(t *testing.T) {
	reg := classify.Default()
	original := []Vertex{{0, 0}, {1, 3}, {5, 2}, {7, 8}, {9, 1}}
	f := mustFeature(t, classify.Hyperbola, original)

	a, b, err := Split(reg, f, 4, 4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// Children concatenated at the (duplicated) cut point reproduce the
	// original vertex sequence.
	rejoined := append(append([]Vertex{}, a.Vertices[:len(a.Vertices)-1]...), b.Vertices[1:]...)
	if !vertsEqual(rejoined, original) {
		t.Fatalf("rejoined %v, want %v", rejoined, original)
	}
	if a.Vertices[len(a.Vertices)-1] != (Vertex{4, 4}) || b.Vertices[0] != (Vertex{4, 4}) {
		t.Fatal("cut point must terminate childA and start childB")
	}
}

func TestSplitOutsideSpanIsRejected(t *testing.T) {
	reg := classify.Default()
	f := mustFeature(t, classify.BedUnspecified, []Vertex{{0, 0}, {2, 0}, {4, 0}})

	if _, _, err := Split(reg, f, 10, 0); !errors.Is(err, ErrDegenerateSplit) {
		t.Fatalf("expected ErrDegenerateSplit, got %v", err)
	}
	if _, _, err := Split(reg, f, -1, 0); !errors.Is(err, ErrDegenerateSplit) {
		t.Fatalf("expected ErrDegenerateSplit, got %v", err)
	}
}
