package record

import (
	"encoding/json"
	"fmt"
)

// SentinelCoordinate is the lat/lon value persisted for an unlocated record.
const SentinelCoordinate = 999

// Status is the tracked state of a satellite.
type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// Location is either a known {lat, lon} fix or Unlocated.
// The zero value is Unlocated.
type Location struct {
	lat     float64
	lon     float64
	located bool
}

// Unlocated is the "no valid location" variant.
var Unlocated = Location{}

// Located returns a Location holding a real fix.
func Located(lat, lon float64) Location {
	return Location{lat: lat, lon: lon, located: true}
}

// Coordinates returns the fix and whether the location is known.
func (l Location) Coordinates() (lat, lon float64, ok bool) {
	return l.lat, l.lon, l.located
}

// IsLocated reports whether l holds a real fix.
func (l Location) IsLocated() bool {
	return l.located
}

type wireLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MarshalJSON writes the sentinel {999, 999} for Unlocated.
func (l Location) MarshalJSON() ([]byte, error) {
	if !l.located {
		return json.Marshal(wireLocation{Lat: SentinelCoordinate, Lon: SentinelCoordinate})
	}
	return json.Marshal(wireLocation{Lat: l.lat, Lon: l.lon})
}

// UnmarshalJSON accepts {lat, lon}; the sentinel pair decodes as Unlocated.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("location: not an object")
	}
	lat, latOK := number(raw["lat"])
	lon, lonOK := number(raw["lon"])
	if !latOK || !lonOK || (lat == SentinelCoordinate && lon == SentinelCoordinate) {
		*l = Unlocated
		return nil
	}
	*l = Located(lat, lon)
	return nil
}

// Point is one observed position in a record's history.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	T   int64   `json:"t"`
}

// Record is the persisted state of one satellite.
type Record struct {
	ID          string
	SatName     *string
	Status      Status
	Decayed     bool
	FailCount   int
	LastChecked int64
	Location    Location
	History     History

	// Extra holds unknown top-level fields from the stored file.
	Extra map[string]json.RawMessage
}

// New returns a record for id with every field at its default.
func New(id string) *Record {
	return &Record{
		ID:       id,
		Status:   StatusInactive,
		Location: Unlocated,
		History:  History{},
	}
}

// Name returns the satellite name, or "" when it has never been resolved.
func (r *Record) Name() string {
	if r.SatName == nil {
		return ""
	}
	return *r.SatName
}
