package radar

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// RequiredSubmissions is how many distinct contributors must digitize a
// radargram before it counts as finished. Kept as a function of the key in
// case some radargrams ever need a different threshold.
func RequiredSubmissions(radarKey string) int {
	return 9
}

// Radargram is one catalog entry: the typed metadata the engine needs plus
// the raw document as the processing pipeline wrote it, served verbatim to
// clients that want fields the server does not interpret.
type Radargram struct {
	Meta Meta
	Raw  map[string]any
}

// Catalog is the set of all processed radargrams, loaded from meta.json
// files under a directory tree. It is read-mostly; Reload swaps the whole
// index atomically under the lock.
type Catalog struct {
	dir string

	mu   sync.RWMutex
	byKey map[string]*Radargram
}

func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, byKey: map[string]*Radargram{}}
}

// Reload scans the catalog directory for meta.json files and rebuilds the
// index. A malformed file fails the whole reload so a partial catalog never
// replaces a good one.
func (c *Catalog) Reload() error {
	byKey := map[string]*Radargram{}

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "meta.json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if meta.RadarKey == "" {
			return fmt.Errorf("parse %s: missing radar_key", path)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		byKey[meta.RadarKey] = &Radargram{Meta: meta, Raw: raw}
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.byKey = byKey
	c.mu.Unlock()
	return nil
}

// Get returns the radargram for a key, or nil if the catalog has none.
func (c *Catalog) Get(radarKey string) *Radargram {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKey[radarKey]
}

// Keys returns all radargram keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.byKey))
	for key := range c.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ByGlacier groups all radargram keys by their glacier key, each group
// sorted.
func (c *Catalog) ByGlacier() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := map[string][]string{}
	for key := range c.byKey {
		glacier := GlacierOf(key)
		groups[glacier] = append(groups[glacier], key)
	}
	for _, keys := range groups {
		sort.Strings(keys)
	}
	return groups
}

// Len reports the number of radargrams in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
