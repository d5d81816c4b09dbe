// Package merge applies one fetch outcome to a satellite record.
//
// Every attempt stamps lastChecked. Failures accumulate failCount and, once
// it reaches DecayThreshold, demote the record to inactive and unlocated on
// every further failing step. A success resets the failure state, records
// the newest sample as the current location and prepends it to history.
package merge

import (
	"time"

	"github.com/star/sattrack/internal/record"
)

// DecayThreshold is the consecutive failure count at which a record decays.
const DecayThreshold = 3

// Result describes what Apply did to a record.
type Result struct {
	Kind Kind

	// Decayed is set when this attempt moved the record into decay.
	Decayed bool
	// Recovered is set when a decayed record became active again.
	Recovered bool

	// Point is the history point added on success.
	Point *record.Point
}

// Success reports whether the attempt took the success path.
func (r Result) Success() bool {
	return r.Kind == KindSuccess
}

// Apply merges out into rec. rec must already carry defaults.
func Apply(rec *record.Record, now time.Time, out Outcome) Result {
	rec.LastChecked = now.Unix()
	failCount := rec.FailCount

	kind, sample := out.Classify()
	if kind != KindSuccess {
		if kind == KindEmptyOrInvalid {
			setName(rec, out.observation.Name)
		}
		wasDecayed := rec.Decayed
		rec.FailCount = failCount + 1
		if rec.FailCount >= DecayThreshold {
			rec.Status = record.StatusInactive
			rec.Decayed = true
			rec.Location = record.Unlocated
		}
		return Result{Kind: kind, Decayed: rec.Decayed && !wasDecayed}
	}

	ts := now.Unix()
	if sample.Timestamp != nil {
		ts = *sample.Timestamp
	}
	pt := record.Point{Lat: *sample.Lat, Lon: *sample.Lon, T: ts}

	wasDecayed := rec.Decayed
	rec.History = rec.History.Prepend(pt)
	rec.Location = record.Located(pt.Lat, pt.Lon)
	rec.Status = record.StatusActive
	rec.Decayed = false
	rec.FailCount = 0
	setName(rec, out.observation.Name)

	return Result{Kind: KindSuccess, Recovered: wasDecayed, Point: &pt}
}

// setName records a reported name; an absent name never clears a known one.
func setName(rec *record.Record, name *string) {
	if name == nil {
		return
	}
	n := *name
	rec.SatName = &n
}
