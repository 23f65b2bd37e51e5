// Package radar holds radargram metadata: the per-radargram constants a
// digitizing session needs (dimensions, horizontal display scale) and, on the
// server side, the catalog of all processed radargrams.
package radar

import "fmt"

// Difficulty is the contributor's judgement of how hard a radargram is to
// interpret. It is nullable on a session until the user picks one.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty validates a difficulty value from the wire or the UI.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s), nil
	}
	return "", fmt.Errorf("invalid difficulty %q", s)
}

// Bounds is the geographic extent of a radargram's survey track.
type Bounds struct {
	MinLat float64 `json:"minlat"`
	MaxLat float64 `json:"maxlat"`
	MinLon float64 `json:"minlon"`
	MaxLon float64 `json:"maxlon"`
}

// Tile describes one raster tile of the rendered radargram. Filepaths maps a
// rendering style ("classic", "abslog") to the tile's object path.
type Tile struct {
	Filepaths map[string]string `json:"filepaths"`
	MinX      int               `json:"minx"`
	MaxX      int               `json:"maxx"`
	MinY      int               `json:"miny"`
	MaxY      int               `json:"maxy"`
}

// Meta is the per-radargram metadata produced by the offline processing
// pipeline. The session treats everything except Difficulty and Comment as
// immutable.
type Meta struct {
	RadarKey string  `json:"radar_key"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	XScale   float64 `json:"xscale"`

	Difficulty *Difficulty `json:"difficulty,omitempty"`
	Comment    *string     `json:"comment,omitempty"`

	// Display metadata consumed by the map/overview UI, passed through.
	Thumbnail        string  `json:"thumbnail,omitempty"`
	Length           float64 `json:"length,omitempty"`
	LengthKmRounded  float64 `json:"length_km_rounded,omitempty"`
	MaxDepth         float64 `json:"max_depth,omitempty"`
	Antenna          string  `json:"antenna,omitempty"`
	DepthResolutionM float64 `json:"depth_resolution_m,omitempty"`
	Bounds           *Bounds `json:"bounds,omitempty"`
	Tiles            []Tile  `json:"tiles,omitempty"`
}

// EffectiveXScale returns the display-to-canonical horizontal scale factor,
// defaulting to 1 when the pipeline wrote none.
func (m *Meta) EffectiveXScale() float64 {
	if m.XScale == 0 {
		return 1
	}
	return m.XScale
}

// Glacier returns the glacier portion of the radar key
// ("dronbreen-20220329-DAT_0236_A1_2" -> "dronbreen").
func (m *Meta) Glacier() string {
	return GlacierOf(m.RadarKey)
}
