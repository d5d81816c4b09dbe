// Package transform turns stored records into map geometry: normalized
// longitudes, visibility and antimeridian-aware trail segments.
package transform

import (
	"math"

	"github.com/star/sattrack/internal/record"
)

// LatLon is a [lat, lon] pair, the form map polylines take directly.
type LatLon [2]float64

// Segment is a polyline that never crosses the antimeridian.
type Segment []LatLon

// NormalizeLon wraps lon into (-180, 180]. -180 maps to 180.
func NormalizeLon(lon float64) float64 {
	x := math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
	if x == -180 {
		x = 180
	}
	return x
}

// Visible reports whether r should be drawn: active with a finite,
// in-range location.
func Visible(r *record.Record) bool {
	if r.Status != record.StatusActive {
		return false
	}
	lat, lon, ok := r.Location.Coordinates()
	if !ok || !finite(lat) || !finite(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// TrailSegments builds polylines from a newest-first history. Points are
// emitted oldest first. A step that crosses ±180 is cut at the boundary
// with an interpolated latitude and continues on the opposite edge.
// Fewer than two points yield no segments.
func TrailSegments(h record.History) []Segment {
	if len(h) < 2 {
		return nil
	}

	pts := make([]LatLon, len(h))
	for i, p := range h {
		pts[len(h)-1-i] = LatLon{p.Lat, NormalizeLon(p.Lon)}
	}

	var segments []Segment
	seg := Segment{pts[0]}

	for i := 1; i < len(pts); i++ {
		lat1, lon1 := pts[i-1][0], pts[i-1][1]
		lat2, lon2 := pts[i][0], pts[i][1]

		// Unwrap so the step takes the short way round.
		if lon2-lon1 > 180 {
			lon2 -= 360
		} else if lon2-lon1 < -180 {
			lon2 += 360
		}

		var boundary float64
		switch {
		case lon2 > 180:
			boundary = 180
		case lon2 < -180:
			boundary = -180
		default:
			seg = append(seg, LatLon{lat2, NormalizeLon(lon2)})
			continue
		}

		t := (boundary - lon1) / (lon2 - lon1)
		latAtBoundary := lat1 + t*(lat2-lat1)

		seg = append(seg, LatLon{latAtBoundary, boundary})
		segments = append(segments, seg)

		seg = Segment{
			{latAtBoundary, -boundary},
			{lat2, NormalizeLon(lon2 - math.Copysign(360, boundary))},
		}
	}

	if len(seg) > 1 {
		segments = append(segments, seg)
	}
	return segments
}

var trailColors = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	"#8F4639", "#9106CD", "#CD06A4", "#CD0642", "#42CD06",
	"#06CD91",
}

// TrailColor picks a stable palette color for a satellite id.
func TrailColor(id string) string {
	var hash uint32
	for _, c := range []byte(id) {
		hash = hash*31 + uint32(c)
	}
	return trailColors[hash%uint32(len(trailColors))]
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
