package record

import "encoding/json"

// item is one slot of the store in serialization order. Either id names a
// record, or raw holds an element that could not be keyed and is written
// back untouched.
type item struct {
	id  string
	raw json.RawMessage
}

// Store is the in-memory collection of records keyed by id.
// It is owned by a single run and is not safe for concurrent mutation of
// its index; distinct records may be mutated concurrently.
type Store struct {
	byID  map[string]*Record
	items []item
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Record)}
}

// Get returns the record for id.
func (s *Store) Get(id string) (*Record, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// GetOrCreate returns the record for id, creating it with defaults when
// absent. The second result reports whether the record was created.
func (s *Store) GetOrCreate(id string) (*Record, bool) {
	if r, ok := s.byID[id]; ok {
		r.EnsureDefaults()
		return r, false
	}
	r := New(id)
	s.add(r)
	return r, true
}

// Records returns the records in store order.
func (s *Store) Records() []*Record {
	out := make([]*Record, 0, len(s.byID))
	for _, it := range s.items {
		if it.raw == nil {
			out = append(out, s.byID[it.id])
		}
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.byID)
}

// Passthrough returns the number of stored elements kept verbatim because
// they are not keyable records.
func (s *Store) Passthrough() int {
	return len(s.items) - len(s.byID)
}

func (s *Store) add(r *Record) bool {
	if _, ok := s.byID[r.ID]; ok {
		return false
	}
	s.byID[r.ID] = r
	s.items = append(s.items, item{id: r.ID})
	return true
}

func (s *Store) addRaw(raw json.RawMessage) {
	s.items = append(s.items, item{raw: raw})
}
