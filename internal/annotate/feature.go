// Package annotate implements the in-session annotation model: drawn
// polyline features, the annotation set holding them, the monotonic-traversal
// validator, and the split operator.
package annotate

import (
	"firnline/api/internal/classify"
	"firnline/api/internal/util"
)

// Vertex is one point of a polyline in display coordinate space.
type Vertex struct {
	X float64
	Y float64
}

// Feature is one digitized polyline. Vertex order is meaningful: it defines
// the traversal direction the validator checks. Name and Color are always
// derived from Kind through the registry, never set independently.
type Feature struct {
	ID       string
	Kind     classify.Kind
	Name     string
	Color    string
	Vertices []Vertex

	// Issues holds the result of the most recent validation. It is
	// recomputed on demand, not invalidated automatically on mutation.
	Issues []Issue
}

// NewFeature is the single creation path for features: it resolves the kind
// against the registry so name and color can never drift from it. Both drawn
// and imported features go through here.
func NewFeature(reg *classify.Registry, kind classify.Kind, vertices []Vertex) (*Feature, error) {
	entry, err := reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	verts := make([]Vertex, len(vertices))
	copy(verts, vertices)
	return &Feature{
		ID:       util.NewID("ft"),
		Kind:     kind,
		Name:     entry.Name,
		Color:    entry.Color,
		Vertices: verts,
	}, nil
}

// Reclassify atomically switches the feature to a new kind, re-deriving name
// and color. Vertices and issues are untouched; callers that want fresh
// issues must revalidate explicitly.
func (f *Feature) Reclassify(reg *classify.Registry, kind classify.Kind) error {
	entry, err := reg.Lookup(kind)
	if err != nil {
		return err
	}
	f.Kind = kind
	f.Name = entry.Name
	f.Color = entry.Color
	return nil
}

// SetVertices replaces the feature's vertex sequence (vertex-move edits from
// the drawing surface arrive as the full updated sequence).
func (f *Feature) SetVertices(vertices []Vertex) {
	verts := make([]Vertex, len(vertices))
	copy(verts, vertices)
	f.Vertices = verts
}

// Revalidate recomputes and stores the feature's issues.
func (f *Feature) Revalidate() {
	f.Issues = Validate(f)
}
