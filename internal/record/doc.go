// Package record defines the persisted per-satellite state and its JSON
// codec.
//
// A store file is a JSON array of objects:
//
//	[{"id":"25544","satname":"SPACE STATION","status":1,"decayed":false,
//	  "failCount":0,"lastChecked":1700000000,"location":{"lat":10,"lon":20},
//	  "history":[{"lat":10,"lon":20,"t":1700000000}]}]
//
// An unlocated record is written with the sentinel location {999, 999} and a
// satellite that was never resolved carries "satname": null. Records from
// older or partial files are backfilled with defaults on load.
package record
