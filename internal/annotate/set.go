package annotate

// Set is the annotation set for one radargram session: the features currently
// drawn, in insertion order. Insertion order has no bearing on validity but
// keeps serialization stable. Exactly one Set exists per open session; a load
// replaces it wholesale, never merges.
//
// The set is confined to the session's event goroutine (all mutation happens
// synchronously in response to user actions), so it carries no locking.
type Set struct {
	features []*Feature
}

// NewSet returns an empty annotation set.
func NewSet() *Set {
	return &Set{}
}

// Add appends a feature.
func (s *Set) Add(f *Feature) {
	s.features = append(s.features, f)
}

// Get returns the feature with the given id, or nil.
func (s *Set) Get(id string) *Feature {
	if i := s.indexOf(id); i >= 0 {
		return s.features[i]
	}
	return nil
}

// Remove deletes the feature with the given id, reporting whether it existed.
func (s *Set) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.features = append(s.features[:i], s.features[i+1:]...)
	return true
}

// ReplaceWith swaps the feature with the given id for the replacements,
// keeping the replacements at the original position so serialization order
// stays stable across a split.
func (s *Set) ReplaceWith(id string, replacements ...*Feature) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	tail := make([]*Feature, len(s.features[i+1:]))
	copy(tail, s.features[i+1:])
	s.features = append(s.features[:i], replacements...)
	s.features = append(s.features, tail...)
	return true
}

// ReplaceAll discards the current contents in favor of the given features.
func (s *Set) ReplaceAll(features []*Feature) {
	s.features = make([]*Feature, len(features))
	copy(s.features, features)
}

// Features returns the features in insertion order. The slice is a copy; the
// features themselves are shared.
func (s *Set) Features() []*Feature {
	out := make([]*Feature, len(s.features))
	copy(out, s.features)
	return out
}

// Len returns the number of features.
func (s *Set) Len() int {
	return len(s.features)
}

func (s *Set) indexOf(id string) int {
	for i, f := range s.features {
		if f.ID == id {
			return i
		}
	}
	return -1
}
