package search

import "strings"

// CatalogScan is the fallback searcher: a linear substring match over the
// in-memory radargram records. Always healthy; slow is fine at this scale.
type CatalogScan struct {
	load func() []Record
}

// NewCatalogScan builds a scanner over a record source. load is called per
// query so results follow catalog reloads and fresh submission counts.
func NewCatalogScan(load func() []Record) *CatalogScan {
	return &CatalogScan{load: load}
}

func (c *CatalogScan) Healthy() bool { return true }

func (c *CatalogScan) Search(q Query) ([]Record, int, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	var matches []Record
	for _, rec := range c.load() {
		if text == "" ||
			strings.Contains(strings.ToLower(rec.RadarKey), text) ||
			strings.Contains(strings.ToLower(rec.Glacier), text) ||
			strings.Contains(strings.ToLower(rec.NiceName), text) {
			matches = append(matches, rec)
		}
	}

	total := len(matches)
	offset := q.Offset
	if offset > total {
		offset = total
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}
