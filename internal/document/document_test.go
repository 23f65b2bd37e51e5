package document

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"firnline/api/internal/annotate"
	"firnline/api/internal/classify"
	"firnline/api/internal/radar"
)

func testMeta(xscale float64) *radar.Meta {
	return &radar.Meta{
		RadarKey: "dronbreen-20200226-DAT_0086_A1_1",
		Width:    4000,
		Height:   900,
		XScale:   xscale,
	}
}

func buildSet(t *testing.T, reg *classify.Registry, kind classify.Kind, vertices []annotate.Vertex) *annotate.Set {
	t.Helper()
	f, err := annotate.NewFeature(reg, kind, vertices)
	if err != nil {
		t.Fatal(err)
	}
	f.Revalidate()
	set := annotate.NewSet()
	set.Add(f)
	return set
}

func TestExportImportRoundTrip(t *testing.T) {
	reg := classify.Default()
	for _, xscale := range []float64{1, 5, 0.3} {
		meta := testMeta(xscale)
		vertices := []annotate.Vertex{{X: 0, Y: 10}, {X: 120, Y: 42.5}, {X: 360, Y: 77}}
		set := buildSet(t, reg, classify.BedUnspecified, vertices)

		doc := Export(set, meta, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		// Serialize and parse again so the wire format is part of the loop.
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		var parsed Document
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}

		features, report, err := Import(&parsed, meta, reg)
		if err != nil {
			t.Fatalf("xscale %v: %v", xscale, err)
		}
		if len(report.Skipped) != 0 {
			t.Fatalf("xscale %v: unexpected skips %v", xscale, report.Skipped)
		}
		if len(features) != 1 {
			t.Fatalf("xscale %v: got %d features", xscale, len(features))
		}
		got := features[0]
		if got.Kind != classify.BedUnspecified {
			t.Errorf("xscale %v: kind = %q", xscale, got.Kind)
		}
		for i, v := range got.Vertices {
			if math.Abs(v.X-vertices[i].X) > 1e-9 || math.Abs(v.Y-vertices[i].Y) > 1e-9 {
				t.Errorf("xscale %v: vertex %d = %+v, want %+v", xscale, i, v, vertices[i])
			}
		}
	}
}

func TestExportStampsDocument(t *testing.T) {
	reg := classify.Default()
	meta := testMeta(2)
	diff := radar.DifficultyHard
	meta.Difficulty = &diff
	set := buildSet(t, reg, classify.TemperateIce, []annotate.Vertex{{X: 10, Y: 1}, {X: 20, Y: 2}})

	now := time.Date(2026, 8, 26, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	doc := Export(set, meta, now)

	if doc.SchemaVersion != SchemaVersion {
		t.Errorf("schema_version = %d", doc.SchemaVersion)
	}
	if doc.DateModified != "2026-08-26T07:30:00Z" {
		t.Errorf("date_modified = %q", doc.DateModified)
	}
	if doc.RadarKey != meta.RadarKey || doc.Width != 4000 || doc.Height != 900 {
		t.Errorf("identity fields wrong: %+v", doc)
	}
	if doc.Difficulty == nil || *doc.Difficulty != radar.DifficultyHard {
		t.Errorf("difficulty not carried: %v", doc.Difficulty)
	}

	props := doc.Features.Features[0].Properties
	if props["kind"] != string(classify.TemperateIce) {
		t.Errorf("kind property = %v", props["kind"])
	}
	if props["name"] != "Temperate ice" {
		t.Errorf("name property = %v", props["name"])
	}
	line := doc.Features.Features[0].Geometry.(orb.LineString)
	if line[0].X() != 5 || line[1].X() != 10 {
		t.Errorf("x not divided by xscale: %v", line)
	}
}

func TestImportRejectsMismatchAtomically(t *testing.T) {
	reg := classify.Default()
	meta := testMeta(1)

	doc := Export(buildSet(t, reg, classify.BedCold, []annotate.Vertex{{X: 0, Y: 0}, {X: 1, Y: 1}}), meta, time.Now())
	doc.Width = 9999

	features, report, err := Import(doc, meta, reg)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if mismatch.Field != "width" {
		t.Errorf("field = %q", mismatch.Field)
	}
	if features != nil || report != nil {
		t.Error("mismatch must not produce partial results")
	}

	doc.Width = meta.Width
	doc.RadarKey = "etonbreen-20240503-DAT_0011_A1_1"
	if _, _, err := Import(doc, meta, reg); err == nil {
		t.Error("expected radar_key mismatch error")
	}
}

func TestImportSkipsAndReports(t *testing.T) {
	reg := classify.Default()
	meta := testMeta(1)

	fc := geojson.NewFeatureCollection()

	good := geojson.NewFeature(orb.LineString{{0, 0}, {5, 5}})
	good.Properties["kind"] = string(classify.WaterTable)
	fc.Append(good)

	point := geojson.NewFeature(orb.Point{1, 2})
	point.Properties["kind"] = string(classify.WaterTable)
	fc.Append(point)

	unknown := geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}})
	unknown.Properties["kind"] = "lava_tube"
	fc.Append(unknown)

	doc := &Document{
		SchemaVersion: SchemaVersion,
		DateModified:  time.Now().UTC().Format(time.RFC3339),
		Width:         meta.Width,
		Height:        meta.Height,
		RadarKey:      meta.RadarKey,
		Features:      fc,
	}

	features, report, err := Import(doc, meta, reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 1 {
		t.Fatalf("got %d features, want 1", len(features))
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("skipped = %v", report.Skipped)
	}
}

func TestImportLegacyNameFallback(t *testing.T) {
	reg := classify.Default()
	meta := testMeta(1)

	fc := geojson.NewFeatureCollection()
	legacy := geojson.NewFeature(orb.LineString{{0, 10}, {8, 12}})
	legacy.Properties["name"] = "Glacier bed"
	fc.Append(legacy)

	doc := &Document{
		DateModified: time.Now().UTC().Format(time.RFC3339),
		Width:        meta.Width,
		Height:       meta.Height,
		RadarKey:     meta.RadarKey,
		Features:     fc,
	}

	features, report, err := Import(doc, meta, reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("skipped = %v", report.Skipped)
	}
	if len(features) != 1 || features[0].Kind != classify.BedUnspecified {
		t.Fatalf("legacy name not resolved: %+v", features)
	}
}

func TestImportRevalidates(t *testing.T) {
	reg := classify.Default()
	meta := testMeta(1)

	fc := geojson.NewFeatureCollection()
	overhang := geojson.NewFeature(orb.LineString{{0, 0}, {5, 0}, {3, 0}})
	overhang.Properties["kind"] = string(classify.BedUnspecified)
	fc.Append(overhang)

	doc := &Document{
		DateModified: time.Now().UTC().Format(time.RFC3339),
		Width:        meta.Width,
		Height:       meta.Height,
		RadarKey:     meta.RadarKey,
		Features:     fc,
	}

	features, _, err := Import(doc, meta, reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(features[0].Issues) != 1 {
		t.Fatalf("issues = %v", features[0].Issues)
	}
}

func TestValidateShape(t *testing.T) {
	good := &Document{
		DateModified: "2026-08-26T07:30:00Z",
		Width:        100,
		Height:       50,
		RadarKey:     "dronbreen-20200226-DAT_0086_A1_1",
		Features:     geojson.NewFeatureCollection(),
	}
	if err := ValidateShape(good); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Document){
		"missing date":  func(d *Document) { d.DateModified = "" },
		"bad date":      func(d *Document) { d.DateModified = "yesterday" },
		"missing key":   func(d *Document) { d.RadarKey = "" },
		"zero width":    func(d *Document) { d.Width = 0 },
		"nil features":  func(d *Document) { d.Features = nil },
	} {
		doc := *good
		mutate(&doc)
		if err := ValidateShape(&doc); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
