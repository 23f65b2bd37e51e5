// Package document defines the persisted annotation document exchanged with
// the backend and converts it to and from the in-session annotation set.
//
// Geometry in a persisted document is GeoJSON LineStrings in canonical
// (unscaled) pixel space; the session works in display space, which differs
// by the radargram's horizontal stretch factor (xscale).
package document

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"firnline/api/internal/annotate"
	"firnline/api/internal/classify"
	"firnline/api/internal/radar"
)

// SchemaVersion is the current persisted-document schema. Documents written
// before kinds were persisted carry no version at all; import treats those as
// legacy and falls back to name-based kind lookup.
const SchemaVersion = 2

// Document is the wire and storage format for one full annotation session on
// one radargram.
type Document struct {
	SchemaVersion int                        `json:"schema_version,omitempty"`
	DateModified  string                     `json:"date_modified"`
	Width         int                        `json:"width"`
	Height        int                        `json:"height"`
	Difficulty    *radar.Difficulty          `json:"difficulty"`
	Comment       *string                    `json:"comment"`
	RadarKey      string                     `json:"radar_key"`
	Features      *geojson.FeatureCollection `json:"features"`

	// User is stamped by the backend on submission, never by the client.
	User string `json:"user,omitempty"`
}

// SchemaMismatchError rejects a document whose identity fields disagree with
// the session's radargram. The whole import is aborted; no partial state
// change happens.
type SchemaMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("document %s %q does not match radargram %s %q", e.Field, e.Got, e.Field, e.Want)
}

// ImportReport collects per-feature problems that did not abort the import.
type ImportReport struct {
	Skipped []string
}

// Export flattens the annotation set into a persisted document, transforming
// every vertex from display to canonical space (x divided by xscale) and
// stamping the modification instant.
func Export(set *annotate.Set, meta *radar.Meta, now time.Time) *Document {
	xscale := meta.EffectiveXScale()
	fc := geojson.NewFeatureCollection()
	for _, f := range set.Features() {
		line := make(orb.LineString, len(f.Vertices))
		for i, v := range f.Vertices {
			line[i] = orb.Point{v.X / xscale, v.Y}
		}
		gf := geojson.NewFeature(line)
		gf.Properties["kind"] = string(f.Kind)
		gf.Properties["name"] = f.Name
		gf.Properties["color"] = f.Color
		issues := annotate.IssueStrings(f.Issues)
		if issues == nil {
			issues = []string{}
		}
		gf.Properties["issues"] = issues
		fc.Append(gf)
	}

	return &Document{
		SchemaVersion: SchemaVersion,
		DateModified:  now.UTC().Format(time.RFC3339),
		Width:         meta.Width,
		Height:        meta.Height,
		Difficulty:    meta.Difficulty,
		Comment:       meta.Comment,
		RadarKey:      meta.RadarKey,
		Features:      fc,
	}
}

// Import rebuilds session features from a persisted document. It first
// asserts that the document belongs to the session's radargram (radar key and
// canonical dimensions must match exactly); on mismatch it fails without
// producing anything, so the caller's annotation set stays untouched.
//
// Non-LineString geometry is skipped and reported, import continues with the
// remaining features. A feature without a persisted kind (legacy documents)
// is resolved by display name against the registry; if that fails too the
// feature is skipped and reported. Accepted features go through the normal
// creation path, so name/color are re-derived and issues recomputed.
func Import(doc *Document, meta *radar.Meta, reg *classify.Registry) ([]*annotate.Feature, *ImportReport, error) {
	if err := checkIdentity(doc, meta); err != nil {
		return nil, nil, err
	}

	xscale := meta.EffectiveXScale()
	report := &ImportReport{}
	var features []*annotate.Feature

	if doc.Features == nil {
		return features, report, nil
	}

	for i, gf := range doc.Features.Features {
		line, ok := gf.Geometry.(orb.LineString)
		if !ok {
			geomType := "missing"
			if gf.Geometry != nil {
				geomType = gf.Geometry.GeoJSONType()
			}
			report.Skipped = append(report.Skipped, fmt.Sprintf("feature %d: unsupported geometry %s", i, geomType))
			continue
		}

		kind, ok := resolveKind(gf.Properties, reg)
		if !ok {
			report.Skipped = append(report.Skipped, fmt.Sprintf("feature %d: unresolvable classification", i))
			continue
		}

		vertices := make([]annotate.Vertex, len(line))
		for j, pt := range line {
			vertices[j] = annotate.Vertex{X: pt.X() * xscale, Y: pt.Y()}
		}

		feature, err := annotate.NewFeature(reg, kind, vertices)
		if err != nil {
			report.Skipped = append(report.Skipped, fmt.Sprintf("feature %d: %v", i, err))
			continue
		}
		feature.Revalidate()
		features = append(features, feature)
	}

	return features, report, nil
}

func checkIdentity(doc *Document, meta *radar.Meta) error {
	if doc.RadarKey != meta.RadarKey {
		return &SchemaMismatchError{Field: "radar_key", Want: meta.RadarKey, Got: doc.RadarKey}
	}
	if doc.Width != meta.Width {
		return &SchemaMismatchError{Field: "width", Want: fmt.Sprint(meta.Width), Got: fmt.Sprint(doc.Width)}
	}
	if doc.Height != meta.Height {
		return &SchemaMismatchError{Field: "height", Want: fmt.Sprint(meta.Height), Got: fmt.Sprint(doc.Height)}
	}
	return nil
}

func resolveKind(props geojson.Properties, reg *classify.Registry) (classify.Kind, bool) {
	if raw, ok := props["kind"].(string); ok && raw != "" {
		kind := classify.Kind(raw)
		if reg.Has(kind) {
			return kind, true
		}
		return "", false
	}
	// Legacy document: the kind was never persisted, only the display name.
	if name, ok := props["name"].(string); ok {
		return reg.KindForName(name)
	}
	return "", false
}

// ValidateShape checks the structural requirements the backend enforces on a
// submitted document before accepting it.
func ValidateShape(doc *Document) error {
	if doc.DateModified == "" {
		return fmt.Errorf("date_modified is required")
	}
	if _, err := time.Parse(time.RFC3339, doc.DateModified); err != nil {
		return fmt.Errorf("date_modified must be an RFC 3339 timestamp")
	}
	if doc.RadarKey == "" {
		return fmt.Errorf("radar_key is required")
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return fmt.Errorf("width and height are required")
	}
	if doc.Features == nil {
		return fmt.Errorf("features collection is required")
	}
	return nil
}
