package annotate

import "fmt"

// Issue flags a vertex that moves against the feature's traversal direction
// (an "overhang": the layer doubles back on itself along the horizontal
// axis, which a real subsurface interface cannot do).
type Issue struct {
	Vertex int
}

func (i Issue) String() string {
	return fmt.Sprintf("overhang at vertex %d", i.Vertex)
}

// Validate checks the monotonic-traversal invariant: every consecutive vertex
// pair must move in the same horizontal direction as the first-to-last
// displacement. Zero-length horizontal steps are allowed. Features with fewer
// than two vertices are trivially valid.
//
// Validate is pure with respect to the feature's vertices; it neither reads
// nor writes f.Issues. Callers re-invoke it after vertex-affecting mutations.
func Validate(f *Feature) []Issue {
	if len(f.Vertices) < 2 {
		return nil
	}

	dir := sign(f.Vertices[len(f.Vertices)-1].X - f.Vertices[0].X)

	var issues []Issue
	for i := 1; i < len(f.Vertices); i++ {
		step := sign(f.Vertices[i].X - f.Vertices[i-1].X)
		if step != 0 && step != dir {
			issues = append(issues, Issue{Vertex: i})
		}
	}
	return issues
}

// IssueStrings renders issues the way they are persisted and displayed.
func IssueStrings(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
