package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to the
// catalog scan.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise scans the catalog.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to catalog scan: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: catalog scan error: %v", err)
		return Response{Results: []Record{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Reindex pushes the current radargram records to Meilisearch
// (fire-and-forget). Called at startup and after each accepted submission so
// submitter counts stay fresh.
func (s *Service) Reindex(records []Record) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexRecords(records); err != nil {
			log.Printf("search: reindex radargrams: %v", err)
		}
	}()
}

func nonNil(r []Record) []Record {
	if r == nil {
		return []Record{}
	}
	return r
}
