package annotate

import (
	"testing"

	"firnline/api/internal/classify"
)

func mustFeature(t *testing.T, kind classify.Kind, vertices []Vertex) *Feature {
	t.Helper()
	f, err := NewFeature(classify.Default(), kind, vertices)
	if err != nil {
		t.Fatalf("NewFeature: %v", err)
	}
	return f
}

func TestValidateMonotonicIncreasing(t *testing.T) {
	f := mustFeature(t, classify.BedUnspecified, []Vertex{{0, 0}, {5, 0}})
	if issues := Validate(f); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidateFlagsOverhang(t *testing.T) {
	f := mustFeature(t, classify.BedUnspecified, []Vertex{{0, 0}, {5, 0}, {3, 0}})
	issues := Validate(f)
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	if issues[0].Vertex != 2 {
		t.Fatalf("expected issue at vertex 2, got %d", issues[0].Vertex)
	}
	if got := issues[0].String(); got != "overhang at vertex 2" {
		t.Fatalf("issue message %q", got)
	}
}

func TestValidateDecreasingDirection(t *testing.T) {
	f := mustFeature(t, classify.TemperateIce, []Vertex{{10, 1}, {6, 2}, {2, 3}})
	if issues := Validate(f); len(issues) != 0 {
		t.Fatalf("expected no issues for decreasing traversal, got %v", issues)
	}

	f = mustFeature(t, classify.TemperateIce, []Vertex{{10, 1}, {12, 2}, {2, 3}})
	issues := Validate(f)
	if len(issues) != 1 || issues[0].Vertex != 1 {
		t.Fatalf("expected one issue at vertex 1, got %v", issues)
	}
}

func TestValidateZeroLengthStepsAllowed(t *testing.T) {
	f := mustFeature(t, classify.BedCold, []Vertex{{0, 0}, {0, 5}, {4, 5}})
	if issues := Validate(f); len(issues) != 0 {
		t.Fatalf("vertical step should not be an overhang, got %v", issues)
	}
}

func TestValidateClosedSpanFlagsAllMovement(t *testing.T) {
	// First and last x equal: any horizontal movement goes against the
	// (zero) net displacement.
	f := mustFeature(t, classify.BedCold, []Vertex{{3, 0}, {7, 1}, {3, 2}})
	issues := Validate(f)
	if len(issues) != 2 {
		t.Fatalf("expected two issues, got %v", issues)
	}
}

func TestValidateTrivialFeatures(t *testing.T) {
	single := mustFeature(t, classify.Crevasse, []Vertex{{1, 1}})
	if issues := Validate(single); issues != nil {
		t.Fatalf("single vertex should be valid, got %v", issues)
	}
	empty := mustFeature(t, classify.Crevasse, nil)
	if issues := Validate(empty); issues != nil {
		t.Fatalf("empty feature should be valid, got %v", issues)
	}
}

func TestValidateIsPure(t *testing.T) {
	f := mustFeature(t, classify.BedUnspecified, []Vertex{{0, 0}, {5, 0}, {3, 0}})
	_ = Validate(f)
	if f.Issues != nil {
		t.Fatal("Validate must not store issues on the feature")
	}
	f.Revalidate()
	if len(f.Issues) != 1 {
		t.Fatalf("Revalidate should store issues, got %v", f.Issues)
	}
}
