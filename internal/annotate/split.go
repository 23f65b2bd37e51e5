package annotate

import (
	"errors"

	"firnline/api/internal/classify"
)

// ErrDegenerateSplit is returned when every vertex of the feature lies on one
// side of the cut, which would leave one child as a single point.
var ErrDegenerateSplit = errors.New("split point outside feature span")

// Split decomposes a feature into two at the cut point (splitX, splitY).
// Vertices are partitioned by their side of splitX along the feature's
// traversal direction, and the cut point is inserted as the boundary vertex
// of both children so the two polylines stay contiguous with the original.
// Both children inherit the parent's kind (name and color re-derived through
// the registry). The caller is responsible for replacing the parent in the
// annotation set and revalidating the children.
func Split(reg *classify.Registry, f *Feature, splitX, splitY float64) (*Feature, *Feature, error) {
	dir := sign(f.Vertices[len(f.Vertices)-1].X - f.Vertices[0].X)
	if dir == 0 {
		dir = 1
	}

	var before, after []Vertex
	for _, v := range f.Vertices {
		if float64(dir)*(v.X-splitX) < 0 {
			before = append(before, v)
		} else {
			after = append(after, v)
		}
	}
	if len(before) == 0 || len(after) == 0 {
		return nil, nil, ErrDegenerateSplit
	}

	cut := Vertex{X: splitX, Y: splitY}
	childA, err := NewFeature(reg, f.Kind, append(before, cut))
	if err != nil {
		return nil, nil, err
	}
	childB, err := NewFeature(reg, f.Kind, append([]Vertex{cut}, after...))
	if err != nil {
		return nil, nil, err
	}
	return childA, childB, nil
}
