package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"firnline/api/internal/store"
)

type fakeSubmissionStore struct {
	all    []store.Submission
	latest []store.Submission
}

func (f *fakeSubmissionStore) ListAllSubmissions(ctx context.Context) ([]store.Submission, error) {
	return f.all, nil
}

func (f *fakeSubmissionStore) ListLatestSubmissions(ctx context.Context) ([]store.Submission, error) {
	return f.latest, nil
}

func docWithLine(t *testing.T, kind string) []byte {
	t.Helper()
	payload := []byte(`{
		"radar_key": "dronbreen-20200226-DAT_0086_A1_1",
		"width": 100, "height": 50,
		"date_modified": "2026-03-01T12:00:00Z",
		"features": {"type": "FeatureCollection", "features": [{
			"type": "Feature",
			"geometry": {"type": "LineString", "coordinates": [[0, 10], [50, 12]]},
			"properties": {"kind": "` + kind + `"}
		}]}
	}`)
	return payload
}

func TestSubmissionsZip(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(&fakeSubmissionStore{all: []store.Submission{
		{Username: "ada", RadarKey: "dronbreen-20200226-DAT_0086_A1_1", DateModified: when, Document: []byte(`{"a": 1}`)},
		{Username: "grace", RadarKey: "etonbreen-20240503-DAT_0011_A1_1", DateModified: when, Document: []byte(`{"b": 2}`)},
	}})

	var buf bytes.Buffer
	if err := svc.SubmissionsZip(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d", len(zr.File))
	}

	want := "submitted/ada/dronbreen-20200226-DAT_0086_A1_1/digitized-dronbreen-20200226-DAT_0086_A1_1-2026_03_01T12_00_00Z.json"
	if zr.File[0].Name != want {
		t.Errorf("entry name = %q, want %q", zr.File[0].Name, want)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"a": 1}` {
		t.Errorf("payload = %s", data)
	}
}

func TestInterpretationsZip(t *testing.T) {
	svc := NewService(&fakeSubmissionStore{latest: []store.Submission{
		{Username: "ada", RadarKey: "dronbreen-20200226-DAT_0086_A1_1", Document: docWithLine(t, "bed_unspecified")},
		{Username: "grace", RadarKey: "dronbreen-20200226-DAT_0086_A1_1", Document: docWithLine(t, "temperate_ice")},
		{Username: "bad", RadarKey: "x", Document: []byte(`not json`)},
	}})

	var buf bytes.Buffer
	if err := svc.InterpretationsZip(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "interpretations.geojson" {
		t.Fatalf("unexpected entries: %v", zr.File)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	users := map[string]bool{}
	for _, f := range fc.Features {
		user, _ := f.Properties["user"].(string)
		users[user] = true
		if f.Properties["radar_key"] != "dronbreen-20200226-DAT_0086_A1_1" {
			t.Errorf("radar_key = %v", f.Properties["radar_key"])
		}
	}
	if !users["ada"] || !users["grace"] {
		t.Errorf("users = %v", users)
	}
}

func TestDownloadName(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	got := DownloadName("submissions", now)
	if got != "submissions-20260301T123045.zip" {
		t.Errorf("name = %q", got)
	}
}
