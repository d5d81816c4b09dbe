package n2yo

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/star/sattrack/internal/merge"
)

// Response is the body of a positions lookup.
//
//	{"info":{"satname":"SPACE STATION","satid":25544,"transactionscount":0},
//	 "positions":[{"satlatitude":-39.9,"satlongitude":158.3,"sataltitude":417.2,
//	   "azimuth":254.5,"elevation":-69.3,"ra":44.8,"dec":-43.4,
//	   "timestamp":1521354418,"eclipsed":false}]}
//
// Only the top level must be an object. Every field below it is read on its
// own and a wrong-shaped one counts as absent, so the merge engine decides
// what counts as a usable fix.
type Response struct {
	Info      Info       `json:"info"`
	Positions []Position `json:"positions"`
	Error     string     `json:"error,omitempty"`
}

// Info describes the satellite.
type Info struct {
	SatName json.RawMessage `json:"satname"`
	SatID   json.RawMessage `json:"satid"`
}

// Position is one predicted position sample.
type Position struct {
	SatLatitude  json.RawMessage `json:"satlatitude"`
	SatLongitude json.RawMessage `json:"satlongitude"`
	SatAltitude  json.RawMessage `json:"sataltitude"`
	Timestamp    json.RawMessage `json:"timestamp"`
}

var errNotObject = errors.New("response is not a JSON object")

// UnmarshalJSON decodes a response leniently.
func (r *Response) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	if top == nil {
		return errNotObject
	}

	*r = Response{}

	var info map[string]json.RawMessage
	if json.Unmarshal(top["info"], &info) == nil {
		r.Info = Info{SatName: info["satname"], SatID: info["satid"]}
	}

	var elems []json.RawMessage
	if json.Unmarshal(top["positions"], &elems) == nil {
		r.Positions = make([]Position, len(elems))
		for i, e := range elems {
			var p map[string]json.RawMessage
			if json.Unmarshal(e, &p) != nil {
				continue // not an object: no coordinates
			}
			r.Positions[i] = Position{
				SatLatitude:  p["satlatitude"],
				SatLongitude: p["satlongitude"],
				SatAltitude:  p["sataltitude"],
				Timestamp:    p["timestamp"],
			}
		}
	}

	var msg string
	if json.Unmarshal(top["error"], &msg) == nil {
		r.Error = msg
	}

	return nil
}

// Name returns the satellite name when the service reported one as a string.
func (r *Response) Name() *string {
	raw := bytes.TrimSpace(r.Info.SatName)
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return nil
	}
	return &name
}

// Observation converts the response for the merge engine.
func (r *Response) Observation() merge.Observation {
	obs := merge.Observation{
		Name:    r.Name(),
		Samples: make([]merge.Sample, 0, len(r.Positions)),
	}
	for _, p := range r.Positions {
		s := merge.Sample{
			Lat: number(p.SatLatitude),
			Lon: number(p.SatLongitude),
		}
		if ts := number(p.Timestamp); ts != nil && *ts >= math.MinInt64 && *ts < math.MaxInt64 {
			v := int64(*ts)
			s.Timestamp = &v
		}
		obs.Samples = append(obs.Samples, s)
	}
	return obs
}

func number(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
