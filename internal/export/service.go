// Package export builds the admin downloads: the raw submissions archive
// and the aggregated interpretations GeoJSON.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"firnline/api/internal/store"
)

// SubmissionStore is the slice of the data store the exporter needs.
type SubmissionStore interface {
	ListAllSubmissions(ctx context.Context) ([]store.Submission, error)
	ListLatestSubmissions(ctx context.Context) ([]store.Submission, error)
}

type Service struct {
	store SubmissionStore
}

func NewService(store SubmissionStore) *Service {
	return &Service{store: store}
}

// SubmissionFilename names a stored document the way the archive lays out
// submissions on disk.
func SubmissionFilename(radarKey string, dateModified time.Time) string {
	stamp := strings.NewReplacer(":", "_", "-", "_").Replace(dateModified.UTC().Format(time.RFC3339))
	return fmt.Sprintf("digitized-%s-%s.json", radarKey, stamp)
}

// SubmissionsZip streams a zip of every stored submission, one JSON entry
// per submission under submitted/<user>/<radar_key>/.
func (s *Service) SubmissionsZip(ctx context.Context, w io.Writer) error {
	subs, err := s.store.ListAllSubmissions(ctx)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, sub := range subs {
		name := path.Join("submitted", sub.Username, sub.RadarKey,
			SubmissionFilename(sub.RadarKey, sub.DateModified))
		entry, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := entry.Write(sub.Document); err != nil {
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// InterpretationsZip streams a zip holding one GeoJSON FeatureCollection
// that flattens every user's latest submission per radargram. Each line
// carries user, radar_key and kind properties for downstream analysis.
func (s *Service) InterpretationsZip(ctx context.Context, w io.Writer) error {
	subs, err := s.store.ListLatestSubmissions(ctx)
	if err != nil {
		return err
	}

	merged := geojson.NewFeatureCollection()
	for _, sub := range subs {
		var doc struct {
			Features *geojson.FeatureCollection `json:"features"`
		}
		if err := json.Unmarshal(sub.Document, &doc); err != nil || doc.Features == nil {
			continue
		}
		for _, f := range doc.Features.Features {
			line, ok := f.Geometry.(orb.LineString)
			if !ok {
				continue
			}
			out := geojson.NewFeature(line)
			out.Properties["user"] = sub.Username
			out.Properties["radar_key"] = sub.RadarKey
			if kind, ok := f.Properties["kind"]; ok {
				out.Properties["kind"] = kind
			}
			merged.Append(out)
		}
	}

	payload, err := merged.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal interpretations: %w", err)
	}

	zw := zip.NewWriter(w)
	entry, err := zw.Create("interpretations.geojson")
	if err != nil {
		return fmt.Errorf("create interpretations entry: %w", err)
	}
	if _, err := entry.Write(payload); err != nil {
		return fmt.Errorf("write interpretations entry: %w", err)
	}
	return zw.Close()
}

// DownloadName stamps an export filename with the current instant.
func DownloadName(prefix string, now time.Time) string {
	stamp := strings.NewReplacer("-", "", ":", "").Replace(now.Format("2006-01-02T15:04:05"))
	return fmt.Sprintf("%s-%s.zip", prefix, stamp)
}
