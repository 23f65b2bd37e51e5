// Package classify holds the registry of annotation kinds a digitized layer
// can be classified as. Every kind maps to a display name and a color; the
// mapping is total — an unregistered kind is a programming or data error.
package classify

import "fmt"

// Kind identifies one classification of a digitized layer.
type Kind string

const (
	BedUnspecified   Kind = "bed_unspecified"
	BedCold          Kind = "bed_cold"
	BedMissing       Kind = "bed_missing"
	TemperateIce     Kind = "temperate_ice"
	FirnIceInterface Kind = "firn_ice_interface"
	WaterTable       Kind = "water_table"
	Crevasse         Kind = "crevasse"
	Hyperbola        Kind = "hyperbola"
)

// Entry is the display metadata for a kind.
type Entry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// UnknownKindError is returned when a kind is not present in the registry.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown classification kind %q", string(e.Kind))
}

// Registry is the kind -> {name, color} mapping. It is open to extension via
// Register but lookups against unregistered kinds fail loudly.
type Registry struct {
	entries map[Kind]Entry
	order   []Kind
}

// Default returns a registry populated with the kinds the platform ships.
// The first four carry the display names of the original deployment and
// anchor the legacy name-based lookup for documents written before kinds
// were persisted.
func Default() *Registry {
	r := &Registry{entries: map[Kind]Entry{}}
	r.Register(BedUnspecified, Entry{Name: "Glacier bed", Color: "#d95f02"})
	r.Register(BedCold, Entry{Name: "Cold glacier bed", Color: "#1f78b4"})
	r.Register(BedMissing, Entry{Name: "Glacier bed missing", Color: "#e31a1c"})
	r.Register(TemperateIce, Entry{Name: "Temperate ice", Color: "#33a02c"})
	r.Register(FirnIceInterface, Entry{Name: "Firn-ice interface", Color: "#6a3d9a"})
	r.Register(WaterTable, Entry{Name: "Water table", Color: "#00b8d4"})
	r.Register(Crevasse, Entry{Name: "Crevasse", Color: "#ff7f00"})
	r.Register(Hyperbola, Entry{Name: "Hyperbola", Color: "#b15928"})
	return r
}

// Register adds or replaces a kind. Registration order is preserved so that
// UIs can present kinds in a stable order.
func (r *Registry) Register(kind Kind, entry Entry) {
	if _, exists := r.entries[kind]; !exists {
		r.order = append(r.order, kind)
	}
	r.entries[kind] = entry
}

// Lookup resolves a kind to its display entry.
func (r *Registry) Lookup(kind Kind) (Entry, error) {
	entry, ok := r.entries[kind]
	if !ok {
		return Entry{}, &UnknownKindError{Kind: kind}
	}
	return entry, nil
}

// Has reports whether the kind is registered.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.entries[kind]
	return ok
}

// KindForName resolves a display name back to its kind. Documents written
// before the kind was persisted only carry the name; import uses this as a
// fallback.
func (r *Registry) KindForName(name string) (Kind, bool) {
	for _, kind := range r.order {
		if r.entries[kind].Name == name {
			return kind, true
		}
	}
	return "", false
}

// Kinds returns all registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}
