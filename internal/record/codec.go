package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNotArray is returned by Load when the top-level value is not an array.
var ErrNotArray = errors.New("store is not a JSON array")

var knownFields = map[string]bool{
	"id":          true,
	"satname":     true,
	"status":      true,
	"decayed":     true,
	"failCount":   true,
	"lastChecked": true,
	"location":    true,
	"history":     true,
}

// Load parses a serialized store. It never fails hard: on a parse error or
// a non-array top level it returns an empty Store together with the reason,
// which callers report as a warning. Elements without a string id, and
// repeated ids after the first, are kept verbatim but not indexed.
func Load(data []byte) (*Store, error) {
	s := NewStore()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return s, ErrNotArray
		}
		return s, fmt.Errorf("parsing store: %w", err)
	}
	if elems == nil {
		return s, ErrNotArray
	}

	for _, raw := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			s.addRaw(raw)
			continue
		}
		r, ok := EnsureDefaults(fields)
		if !ok || !s.add(r) {
			s.addRaw(raw)
		}
	}
	return s, nil
}

// EnsureDefaults builds a Record from a stored object, decoding each field
// independently. Missing or wrong-shaped fields take their defaults. It
// reports false when the object has no string id.
func EnsureDefaults(fields map[string]json.RawMessage) (*Record, bool) {
	var id string
	if !isString(fields["id"]) {
		return nil, false
	}
	if err := json.Unmarshal(fields["id"], &id); err != nil {
		return nil, false
	}

	r := New(id)

	if isString(fields["satname"]) {
		var name string
		if err := json.Unmarshal(fields["satname"], &name); err == nil {
			r.SatName = &name
		}
	}
	if v, ok := number(fields["status"]); ok && v == float64(StatusActive) {
		r.Status = StatusActive
	}
	if v, ok := boolean(fields["decayed"]); ok {
		r.Decayed = v
	}
	if v, ok := number(fields["failCount"]); ok && v > 0 && v < math.MaxInt32 {
		r.FailCount = int(v)
	}
	if v, ok := number(fields["lastChecked"]); ok && v > 0 && v < math.MaxInt64 {
		r.LastChecked = int64(v)
	}
	if raw, ok := fields["location"]; ok {
		var loc Location
		if err := loc.UnmarshalJSON(raw); err == nil {
			r.Location = loc
		}
	}
	r.History = decodeHistory(fields["history"])

	for k, v := range fields {
		if knownFields[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return r, true
}

// EnsureDefaults normalises an in-memory record so every field holds a
// valid value. It is idempotent.
func (r *Record) EnsureDefaults() {
	if r.Status != StatusActive {
		r.Status = StatusInactive
	}
	if r.FailCount < 0 {
		r.FailCount = 0
	}
	if r.LastChecked < 0 {
		r.LastChecked = 0
	}
	r.History = r.History.trim()
}

func decodeHistory(raw json.RawMessage) History {
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		// Elements of mixed shape: fall back to a per-element pass.
		var loose []json.RawMessage
		if err := json.Unmarshal(raw, &loose); err != nil {
			return History{}
		}
		elems = make([]map[string]json.RawMessage, 0, len(loose))
		for _, e := range loose {
			var m map[string]json.RawMessage
			if json.Unmarshal(e, &m) == nil {
				elems = append(elems, m)
			}
		}
	}

	h := make(History, 0, HistoryCap)
	for _, e := range elems {
		if len(h) == HistoryCap {
			break
		}
		lat, latOK := number(e["lat"])
		lon, lonOK := number(e["lon"])
		t, tOK := number(e["t"])
		if !latOK || !lonOK || !tOK {
			continue
		}
		h = append(h, Point{Lat: lat, Lon: lon, T: int64(t)})
	}
	return h
}

// MarshalJSON writes every field in a fixed order followed by any extra
// fields sorted by key.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("record %q field %s: %w", r.ID, key, err)
		}
		buf.Write(b)
		return nil
	}

	history := r.History
	if history == nil {
		history = History{}
	}
	fields := []struct {
		key string
		v   any
	}{
		{"id", r.ID},
		{"satname", r.SatName},
		{"status", int(r.Status)},
		{"decayed", r.Decayed},
		{"failCount", r.FailCount},
		{"lastChecked", r.LastChecked},
		{"location", r.Location},
		{"history", history},
	}
	for _, f := range fields {
		if err := write(f.key, f.v); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var compact bytes.Buffer
		if err := json.Compact(&compact, r.Extra[k]); err != nil {
			return nil, fmt.Errorf("record %q field %s: %w", r.ID, k, err)
		}
		if err := write(k, json.RawMessage(compact.Bytes())); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal serializes the store as a JSON array terminated by a newline.
// Output is deterministic for a given store.
func Marshal(s *Store, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range s.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if it.raw != nil {
			if err := json.Compact(&buf, it.raw); err != nil {
				return nil, fmt.Errorf("passthrough element %d: %w", i, err)
			}
			continue
		}
		b, err := s.byID[it.id].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')

	if indent {
		var out bytes.Buffer
		if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
			return nil, fmt.Errorf("indenting store: %w", err)
		}
		buf = out
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func boolean(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
